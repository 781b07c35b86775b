// Package ledger implements the mutations that change a client's money,
// schedule or place on a route.
//
// # Critical Patterns
//
// CP-1: One Transaction Per Operation
//
// Every operation reads, checks and writes inside one store transaction.
// A payment row and the client total it moves are committed together or
// not at all.
//
// CP-2: Money Invariants
//
// 0 <= paid <= owed always holds. Status is derived, never supplied:
// settled exactly when paid >= owed > 0, and a settled client has no next
// charge date. Input that would break the invariant is rejected with a
// *model.ValidationError, except in UpdateClient where paid is clamped down
// to owed and the correction is logged with the "invariant" attribute.
//
// CP-3: Absent Ids Are No-ops
//
// Mutations on an unknown client or payment return without error and
// without writing.
//
// CP-4: Audit Is a Side Effect
//
// Audit entries are appended through audit.Writer inside the operation's
// transaction. A failed append never fails the operation.
//
// CP-5: No Retries
//
// Financial writes are never retried here. A *store.TimeoutError is returned
// to the caller, who decides whether replaying is safe.
package ledger
