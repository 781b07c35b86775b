// Package schema owns the database layout and its evolution.
//
// The persisted version lives in PRAGMA user_version, which SQLite updates
// transactionally: a step that fails leaves the previous version in place.
//
// # Versions
//
//	0  empty file (fresh install) or, when a clients table exists, a
//	   pre-versioning database that is treated as version 1
//	1  legacy layout: REAL money, free-text dates, free-text street column
//	2  integer minor units, ISO dates and timestamps
//	3  neighborhoods and streets, status and priority columns, CHECK
//	   constraints, canonical next_charge_date
//
// A fresh database is created directly at the latest version from
// schema.sql; older databases are walked forward one step at a time.
//
// # Critical Patterns
//
// CP-1: One Transaction Per Step
//
// Every step runs inside its own store transaction and sets user_version
// before commit. Steps that rebuild tables run with foreign keys suspended
// on the pinned connection and must pass PRAGMA foreign_key_check before
// they commit.
//
// CP-2: Guard Against Residue
//
// A crash between DDL statements cannot leave a half-advanced version, but
// steps still probe for tables and columns before creating them so a rerun
// after manual repair does not trip over its own leftovers.
//
// CP-3: Single Flight
//
// Migrate is safe to call from many goroutines. Callers that arrive while a
// run is in flight wait for that run's result instead of starting another.
package schema
