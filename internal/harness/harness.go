package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/config"
	"github.com/roach88/routebook/internal/ledger"
	"github.com/roach88/routebook/internal/logging"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/query"
	"github.com/roach88/routebook/internal/schema"
	"github.com/roach88/routebook/internal/sequencer"
	"github.com/roach88/routebook/internal/store"
)

// Harness executes the steps of one scenario against its own database.
type Harness struct {
	store     *store.Store
	ledger    *ledger.Ledger
	sequencer *sequencer.Sequencer
	query     *query.Reader
	clock     *clock.Fixed
	logger    *slog.Logger

	// refs maps "as" names to the ids their steps produced.
	refs map[string]int64
}

// Run executes a scenario in a fresh temporary database and returns the
// trace with any failed checks.
//
// An error means the scenario itself is broken (a setup step failed, an
// argument is malformed, a reference is unbound). Operation failures in the
// flow are recorded in the trace and judged against the step's expect
// clause.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	start, err := scenario.start()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "routebook-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default().Database
	cfg.Path = filepath.Join(dir, "scenario.db")
	cfg.Durability = config.DurabilityNormal

	logger := logging.Discard()
	st, err := store.Open(ctx, cfg, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	clk := clock.NewFixed(start)
	if err := schema.New(st, schema.WithClock(clk), schema.WithLogger(logger)).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate scenario store: %w", err)
	}

	reader := query.New(st,
		query.WithClock(clk),
		query.WithLocation(time.UTC),
		query.WithLogger(logger),
	)
	h := &Harness{
		store: st,
		ledger: ledger.New(st,
			ledger.WithClock(clk),
			ledger.WithLogger(logger),
			ledger.WithInvalidator(reader),
		),
		sequencer: sequencer.New(st, sequencer.WithClock(clk), sequencer.WithLogger(logger)),
		query:     reader,
		clock:     clk,
		logger:    logger,
		refs:      make(map[string]int64),
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, PhaseSetup, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Action, err)
		}
		if ev.Outcome != OutcomeOK && ev.Outcome != OutcomeNoop {
			return nil, fmt.Errorf("setup[%d] %s: %s: %s", i, step.Action, ev.Outcome, ev.Error)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, PhaseFlow, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Action, err)
		}
		msgs, err := h.checkExpect(step, ev)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Action, err)
		}
		for _, msg := range msgs {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Action, msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and appends its trace event.
func (h *Harness) execute(ctx context.Context, phase string, step Step, result *Result) (TraceEvent, error) {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return TraceEvent{}, fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
	}

	resolved, err := h.resolve(step.Args)
	if err != nil {
		return TraceEvent{}, err
	}
	a, _ := resolved.(map[string]any)

	out, err := actions[step.Action](ctx, h, args(a))
	var argErr *argError
	if errors.As(err, &argErr) {
		return TraceEvent{}, err
	}

	ev := TraceEvent{
		Phase:   phase,
		Action:  step.Action,
		Args:    step.Args,
		Outcome: out.outcome,
		Result:  out.result,
	}
	switch {
	case err == nil && ev.Outcome == "":
		ev.Outcome = OutcomeOK
	case model.IsValidation(err):
		ev.Outcome = OutcomeRejected
		ev.Result = nil
		ev.Error = err.Error()
	case err != nil:
		ev.Outcome = OutcomeError
		ev.Result = nil
		ev.Error = err.Error()
	}

	if step.As != "" && err == nil && out.id != 0 {
		h.refs[step.As] = out.id
	}
	h.logger.Debug("scenario step", "phase", phase, "action", step.Action, "outcome", ev.Outcome)
	return result.addEvent(ev), nil
}

// checkExpect compares a flow step's event against its expect clause. A
// step without one must end ok or noop.
func (h *Harness) checkExpect(step Step, ev TraceEvent) ([]string, error) {
	if step.Expect == nil {
		if ev.Outcome == OutcomeOK || ev.Outcome == OutcomeNoop {
			return nil, nil
		}
		return []string{fmt.Sprintf("unexpected %s: %s", ev.Outcome, ev.Error)}, nil
	}

	var msgs []string
	want := step.Expect.Outcome
	if want == "" {
		want = OutcomeOK
	}
	if ev.Outcome != want {
		msg := fmt.Sprintf("expected outcome %s, got %s", want, ev.Outcome)
		if ev.Error != "" {
			msg += ": " + ev.Error
		}
		msgs = append(msgs, msg)
	}
	if step.Expect.Error != "" && !strings.Contains(ev.Error, step.Expect.Error) {
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got %q", step.Expect.Error, ev.Error))
	}
	if len(step.Expect.Result) > 0 {
		expected, err := h.resolve(step.Expect.Result)
		if err != nil {
			return nil, err
		}
		for _, msg := range matchSubset(ev.Result, expected.(map[string]any)) {
			msgs = append(msgs, "result "+msg)
		}
	}
	return msgs, nil
}

// resolve replaces "$name" strings with bound ids, recursively.
func (h *Harness) resolve(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		if !strings.HasPrefix(x, "$") {
			return x, nil
		}
		id, err := h.ref(x)
		if err != nil {
			return nil, err
		}
		return id, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			r, err := h.resolveValue(val)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return h.resolveValue(v)
	}
}

func (h *Harness) resolveValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		if !strings.HasPrefix(x, "$") {
			return x, nil
		}
		return h.ref(x)
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			r, err := h.resolveValue(val)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		return h.resolve(x)
	default:
		return v, nil
	}
}

// ref resolves a "$name" reference or a literal numeric id.
func (h *Harness) ref(s string) (int64, error) {
	if name, ok := strings.CutPrefix(s, "$"); ok {
		id, bound := h.refs[name]
		if !bound {
			return 0, &argError{msg: fmt.Sprintf("unbound reference %q", s)}
		}
		return id, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &argError{msg: fmt.Sprintf("invalid id %q", s)}
	}
	return id, nil
}
