// Package model defines the domain types shared by the routebook packages.
//
// Money is always an int64 count of minor currency units (cents). Dates are
// ISO calendar dates ("2006-01-02") and timestamps are fixed-width UTC text
// (see TimestampLayout) so that lexical order equals chronological order in
// the database.
//
// # Client invariants
//
//   - 0 <= Paid <= Owed
//   - Status == StatusSettled exactly when Paid >= Owed > 0
//   - a settled client has no NextChargeDate
//   - within a street, VisitOrder values are 1..N once a reorder completes
//
// The helpers in this package (DeriveStatus, Clamp) are the single source of
// those rules; the ledger and the schema migrations both call into them.
package model
