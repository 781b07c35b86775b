package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/routebook/internal/audit"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/sequencer"
)

// validIdentifier matches SQL identifiers accepted by row_count.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertions[%d] %s: expected %s, got %s", e.Index, e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the harness state and
// the trace and returns one message per failure.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertClientState:
			err = h.assertClientState(ctx, i, a)
		case AssertClientAbsent:
			err = h.assertClientAbsent(ctx, i, a)
		case AssertStreetOrder:
			err = h.assertStreetOrder(ctx, i, a)
		case AssertAuditCount, AssertAuditContains:
			err = h.assertAudit(ctx, i, a)
		case AssertRowCount:
			err = h.assertRowCount(ctx, i, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, i, a)
		case AssertInvariants:
			err = h.assertInvariants(ctx, i)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func (h *Harness) assertClientState(ctx context.Context, i int, a Assertion) error {
	id, err := h.ref(a.Client)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}
	c, err := h.query.ClientByID(ctx, id)
	if err != nil {
		return fmt.Errorf("assertions[%d]: load client %d: %w", i, id, err)
	}
	if c == nil {
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("client %d", id), Actual: "no such client"}
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var actual map[string]any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return err
	}
	expected, err := h.resolve(a.Expect)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}

	if diffs := matchSubset(actual, expected.(map[string]any)); len(diffs) > 0 {
		return &AssertionError{Index: i, Type: a.Type, Expected: "client " + a.Client + " to match", Actual: strings.Join(diffs, "; ")}
	}
	return nil
}

func (h *Harness) assertClientAbsent(ctx context.Context, i int, a Assertion) error {
	id, err := h.ref(a.Client)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}
	exists, err := h.clientExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("client %d to be gone", id), Actual: "it exists"}
	}
	return nil
}

func (h *Harness) assertStreetOrder(ctx context.Context, i int, a Assertion) error {
	street, err := h.ref(a.Street)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}
	want := make([]int64, len(a.Clients))
	for j, c := range a.Clients {
		if want[j], err = h.ref(c); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	got, err := sequencer.Positions(ctx, h.store, street)
	if err != nil {
		return err
	}
	if len(got) == 0 && len(want) == 0 {
		return nil
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertAudit(ctx context.Context, i int, a Assertion) error {
	id, err := h.ref(a.Client)
	if err != nil {
		return fmt.Errorf("assertions[%d]: %w", i, err)
	}
	entries, err := audit.Recent(ctx, h.store, id)
	if err != nil {
		return err
	}

	if a.Type == AssertAuditCount {
		if len(entries) != a.Count {
			return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("%d entries", a.Count), Actual: fmt.Sprintf("%d", len(entries))}
		}
		return nil
	}

	texts := make([]string, len(entries))
	for j, e := range entries {
		if strings.Contains(e.Description, a.Text) {
			return nil
		}
		texts[j] = e.Description
	}
	return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("an entry containing %q", a.Text), Actual: fmt.Sprintf("%q", texts)}
}

func (h *Harness) assertRowCount(ctx context.Context, i int, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("assertions[%d]: invalid table name %q: must match pattern %s", i, a.Table, validIdentifier.String())
	}
	var n int
	if err := h.store.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.Table).Scan(&n); err != nil {
		return fmt.Errorf("assertions[%d]: count %s: %w", i, a.Table, err)
	}
	if n != a.Count {
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table), Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, i int, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Action == a.Action && (a.Outcome == "" || ev.Outcome == a.Outcome) {
			n++
		}
	}
	if n != a.Count {
		what := a.Action
		if a.Outcome != "" {
			what += " " + a.Outcome
		}
		return &AssertionError{Index: i, Type: a.Type, Expected: fmt.Sprintf("%d x %s", a.Count, what), Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}

// assertInvariants checks every client's totals and every street's route.
func (h *Harness) assertInvariants(ctx context.Context, i int) error {
	clients, err := h.query.AllClients(ctx)
	if err != nil {
		return err
	}

	var problems []string
	streets := map[int64][]int{}
	for _, c := range clients {
		if c.Paid < 0 || c.Paid > c.Owed {
			problems = append(problems, fmt.Sprintf("client %d: paid %d outside 0..%d", c.ID, c.Paid, c.Owed))
		}
		if want := model.DeriveStatus(c.Owed, c.Paid); c.Status != want {
			problems = append(problems, fmt.Sprintf("client %d: status %s, want %s", c.ID, c.Status, want))
		}
		if c.Status == model.StatusSettled && c.NextChargeDate != "" {
			problems = append(problems, fmt.Sprintf("client %d: settled with next charge %s", c.ID, c.NextChargeDate))
		}
		if c.StreetID == nil {
			if c.VisitOrder != 0 {
				problems = append(problems, fmt.Sprintf("client %d: unassigned at position %d", c.ID, c.VisitOrder))
			}
			continue
		}
		streets[*c.StreetID] = append(streets[*c.StreetID], c.VisitOrder)
	}

	for street, positions := range streets {
		sort.Ints(positions)
		for j, p := range positions {
			if p != j+1 {
				problems = append(problems, fmt.Sprintf("street %d: positions %v are not 1..%d", street, positions, len(positions)))
				break
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &AssertionError{Index: i, Type: AssertInvariants, Expected: "a consistent book", Actual: strings.Join(problems, "; ")}
	}
	return nil
}

// matchSubset compares the expected keys against actual. A key missing
// from actual matches an expected null or empty string, mirroring the
// omitted empty fields of the JSON form.
func matchSubset(actual, expected map[string]any) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []string
	for _, k := range keys {
		want := expected[k]
		got, ok := actual[k]
		if !ok {
			if want == nil || want == "" {
				continue
			}
			diffs = append(diffs, fmt.Sprintf("%s: missing, want %v", k, want))
			continue
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			diffs = append(diffs, fmt.Sprintf("%s: got %v, want %v", k, got, want))
		}
	}
	return diffs
}

// normalize folds the numeric types produced by YAML, JSON and the ledger
// into int64 where the value is integral.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < math.MaxInt64 {
			return int64(n)
		}
		return n
	case []any:
		out := make([]any, len(n))
		for i, x := range n {
			out[i] = normalize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, x := range n {
			out[k] = normalize(x)
		}
		return out
	default:
		return v
	}
}
