package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNow is the clock reading of a scenario that does not set one.
const DefaultNow = "2026-01-15T10:00:00Z"

// Scenario describes one run of the ledger.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 instant the fixed clock starts at.
	Now string `yaml:"now,omitempty"`

	// Setup establishes initial state. Every setup step must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions check the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one ledger, sequencer or query operation.
type Step struct {
	// Action names the operation, e.g. "record_payment".
	Action string `yaml:"action"`

	// As binds the id the step produced (client, street, payment) so
	// later steps can refer to it as "$name".
	As string `yaml:"as,omitempty"`

	// Advance moves the clock forward before the step runs.
	Advance string `yaml:"advance,omitempty"`

	Args map[string]any `yaml:"args,omitempty"`

	// Expect, when present, is checked against the step's trace event.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies how a flow step should end.
type Expect struct {
	// Outcome is ok, noop, rejected or error. Empty means ok.
	Outcome string `yaml:"outcome,omitempty"`

	// Error must be contained in the step's error text.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	Type string `yaml:"type"`

	// Client is a "$name" reference or a literal id (client_state,
	// client_absent, audit_count, audit_contains).
	Client string `yaml:"client,omitempty"`

	// Street is a "$name" reference or a literal id (street_order).
	Street string `yaml:"street,omitempty"`

	// Clients is the expected visiting order (street_order).
	Clients []string `yaml:"clients,omitempty"`

	// Table is the table counted by row_count.
	Table string `yaml:"table,omitempty"`

	// Action and Outcome filter trace events (trace_count).
	Action  string `yaml:"action,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Text is looked for by audit_contains.
	Text string `yaml:"text,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Expect is a subset match against the client's JSON form
	// (client_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertClientState   = "client_state"
	AssertClientAbsent  = "client_absent"
	AssertStreetOrder   = "street_order"
	AssertAuditCount    = "audit_count"
	AssertAuditContains = "audit_contains"
	AssertRowCount      = "row_count"
	AssertTraceCount    = "trace_count"
	AssertInvariants    = "invariants"
)

// Step outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario. Unknown fields are rejected so typos
// such as "assertion:" surface instead of silently checking nothing.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// start returns the instant the scenario clock is set to.
func (s *Scenario) start() (time.Time, error) {
	now := s.Now
	if now == "" {
		now = DefaultNow
	}
	t, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t.UTC(), nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.start(); err != nil {
		return err
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is only allowed in flow", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Action == "" {
		return fmt.Errorf("%s: action is required", where)
	}
	if _, ok := actions[step.Action]; !ok {
		return fmt.Errorf("%s: unknown action %q", where, step.Action)
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("%s: advance: %w", where, err)
		}
		if d < 0 {
			return fmt.Errorf("%s: advance must not be negative", where)
		}
	}
	if step.Expect != nil {
		switch step.Expect.Outcome {
		case "", OutcomeOK, OutcomeNoop, OutcomeRejected, OutcomeError:
		default:
			return fmt.Errorf("%s.expect: unknown outcome %q", where, step.Expect.Outcome)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertClientState:
		if a.Client == "" {
			return fmt.Errorf("assertions[%d]: client is required for client_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for client_state", index)
		}
	case AssertClientAbsent, AssertAuditCount, AssertAuditContains:
		if a.Client == "" {
			return fmt.Errorf("assertions[%d]: client is required for %s", index, a.Type)
		}
		if a.Type == AssertAuditContains && a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for audit_contains", index)
		}
	case AssertStreetOrder:
		if a.Street == "" {
			return fmt.Errorf("assertions[%d]: street is required for street_order", index)
		}
	case AssertRowCount:
		if !validIdentifier.MatchString(a.Table) {
			return fmt.Errorf("assertions[%d]: invalid table name %q for row_count", index, a.Table)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertInvariants:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
