// Package harness runs ledger scenarios described in YAML against a fresh
// store.
//
// A scenario seeds a database, drives the ledger and sequencer through a
// flow of steps, records every step in a trace and finally checks the
// resulting state. Scenarios double as executable documentation of how the
// collection book behaves: payments, reversals, route ordering, search.
//
// # Scenario Format
//
//	name: settle_and_reverse
//	description: "A payment that settles a client can be reversed"
//	now: "2026-10-17T09:30:00Z"
//	setup:
//	  - action: create_client
//	    as: ana
//	    args: { name: Ana, owed: 10000 }
//	flow:
//	  - action: record_payment
//	    as: first
//	    args: { client: $ana, amount: 4000 }
//	    expect:
//	      outcome: ok
//	      result: { paid: 4000, status: pending }
//	  - action: record_payment
//	    args: { client: $ana, amount: 70000 }
//	    expect:
//	      outcome: rejected
//	      error: exceeds outstanding balance
//	assertions:
//	  - type: client_state
//	    client: $ana
//	    expect: { paid: 4000 }
//	  - type: audit_count
//	    client: $ana
//	    count: 1
//
// Values beginning with "$" refer to the id bound by an earlier step's "as"
// field. They are resolved in step args, expected results and assertions.
//
// # Outcomes
//
// Every step ends in one of:
//
//   - ok: the operation changed something
//   - noop: the operation targeted an absent row and changed nothing
//   - rejected: the operation returned a validation error
//   - error: the operation failed for any other reason
//
// Setup steps must end ok or noop. A flow step without an expect clause
// must too.
//
// # Assertion Types
//
//   - client_state: subset match against a client's JSON form
//   - client_absent: the client no longer exists
//   - street_order: the clients of a street in visiting order
//   - audit_count: number of audit entries for a client
//   - audit_contains: some audit entry of a client contains text
//   - row_count: number of rows in a table
//   - trace_count: number of trace events for an action (and outcome)
//   - invariants: every client and street is internally consistent
//
// # Deterministic Runs
//
// Each run gets its own temporary database and a fixed clock set to the
// scenario's "now" (advanced only by a step's "advance"), so traces are
// reproducible and can be compared against golden files.
package harness
