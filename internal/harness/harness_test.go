package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runYAML(t *testing.T, doc string) (*Result, error) {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return Run(context.Background(), s)
}

func TestScenarios(t *testing.T) {
	paths, scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for i, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err, paths[i])
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRunWithGolden_SettleAndReverse(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "settle_and_reverse.yaml"))
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, s))
}

func TestRun_TraceRecordsSetupAndFlow(t *testing.T) {
	result, err := runYAML(t, `
name: trace
description: "setup and flow are both traced"
setup:
  - action: create_client
    as: ana
    args: { name: Ana, owed: 500 }
flow:
  - action: record_payment
    args: { client: $ana, amount: 500 }
assertions:
  - type: trace_count
    action: record_payment
    count: 1
`)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)

	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, PhaseSetup, result.Trace[0].Phase)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, PhaseFlow, result.Trace[1].Phase)
	assert.Equal(t, "$ana", result.Trace[1].Args["client"])
	assert.Equal(t, "settled", result.Trace[1].Result["status"])
}

func TestRun_FailedExpectationIsReported(t *testing.T) {
	result, err := runYAML(t, `
name: wrong_expectation
description: "expectations that do not hold fail the run"
setup:
  - action: create_client
    as: ana
    args: { name: Ana, owed: 1000 }
flow:
  - action: record_payment
    args: { client: $ana, amount: 400 }
    expect:
      result: { paid: 999, status: pending }
  - action: record_payment
    args: { client: $ana, amount: 5000 }
assertions:
  - type: client_state
    client: $ana
    expect: { paid: 1 }
`)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "flow[0] record_payment: result paid: got 400, want 999")
	assert.Contains(t, result.Errors[1], "flow[1] record_payment: unexpected rejected")
	assert.Contains(t, result.Errors[2], "assertions[0] client_state")
}

func TestRun_OutcomeMismatch(t *testing.T) {
	result, err := runYAML(t, `
name: outcome_mismatch
description: "an ok step expected to be rejected fails"
flow:
  - action: create_neighborhood
    args: { name: Centro }
    expect:
      outcome: rejected
      error: already exists
assertions:
  - type: row_count
    table: neighborhoods
    count: 1
`)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected outcome rejected, got ok")
	assert.Contains(t, result.Errors[1], `expected error containing "already exists"`)
}

func TestRun_SetupFailureIsAnError(t *testing.T) {
	_, err := runYAML(t, `
name: broken_setup
description: "setup must succeed"
setup:
  - action: create_client
    args: { name: "", owed: 100 }
flow:
  - action: search
    args: { term: a }
assertions:
  - type: invariants
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] create_client: rejected")
}

func TestRun_UnboundReferenceIsAnError(t *testing.T) {
	_, err := runYAML(t, `
name: unbound
description: "references must be bound first"
flow:
  - action: record_payment
    args: { client: $nobody, amount: 100 }
assertions:
  - type: invariants
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unbound reference "$nobody"`)
}

func TestRun_MalformedArgumentIsAnError(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"missing", "{ owed: 100 }", `missing argument "name"`},
		{"wrong type", "{ name: Ana, owed: lots }", `argument "owed"`},
		{"fractional", "{ name: Ana, owed: 1.5 }", "is not an integer"},
		{"bool", "{ name: Ana, owed: 1, priority: sometimes }", `argument "priority": want bool`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runYAML(t, `
name: malformed
description: "bad args"
flow:
  - action: create_client
    args: `+tt.args+`
assertions:
  - type: invariants
`)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_AdvanceMovesClock(t *testing.T) {
	result, err := runYAML(t, `
name: advance
description: "advance moves the fixed clock before the step"
now: "2026-10-17T10:00:00Z"
setup:
  - action: create_client
    as: ana
    args: { name: Ana, owed: 100 }
flow:
  - action: mark_absent
    advance: 48h
    args: { client: $ana }
assertions:
  - type: client_state
    client: $ana
    expect: { next_charge_date: "2026-10-20", updated_at: "2026-10-19T10:00:00.000Z" }
`)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvariantsHoldAfterMixedOperations(t *testing.T) {
	result, err := runYAML(t, `
name: mixed
description: "moving clients between streets keeps both routes contiguous"
setup:
  - action: create_neighborhood
    as: n
    args: { name: Norte }
  - action: create_street
    as: s1
    args: { neighborhood: $n, name: Um }
  - action: create_street
    as: s2
    args: { neighborhood: $n, name: Dois }
  - action: create_client
    as: a
    args: { name: A, owed: 100, street: $s1 }
  - action: create_client
    as: b
    args: { name: B, owed: 100, street: $s1 }
  - action: create_client
    as: c
    args: { name: C, owed: 100, street: $s1 }
flow:
  - action: update_client
    args: { client: $a, street: $s2 }
  - action: update_client
    args: { client: $c, clear_street: true }
  - action: delete_neighborhood
    args: { neighborhood: $n }
assertions:
  - type: row_count
    table: streets
    count: 0
  - type: client_state
    client: $b
    expect: { street_id: null, visit_order: 0 }
  - type: invariants
`)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"paid":   float64(400),
		"status": "pending",
		"ids":    []any{int64(1), int64(2)},
	}

	assert.Empty(t, matchSubset(actual, map[string]any{"paid": 400, "ids": []any{1, 2}}))
	assert.Empty(t, matchSubset(actual, map[string]any{"phone": "", "street_id": nil}))
	assert.Equal(t, []string{"note: missing, want x"}, matchSubset(actual, map[string]any{"note": "x"}))
	assert.Equal(t, []string{"status: got pending, want settled"}, matchSubset(actual, map[string]any{"status": "settled"}))
}
