// Package store owns the single SQLite connection behind routebook and the
// transaction primitive every write goes through.
//
// # Critical Patterns
//
// CP-1: One Connection
//   - database/sql is capped at one open connection; SQLite serializes
//     writers anyway and a single handle makes migrations and ledger writes
//     mutually exclusive without extra locking.
//
// CP-2: Explicit Transaction Handle
//   - WithTx passes a *Tx into the body. Every statement inside the body
//     MUST go through that *Tx. Using the Store from inside a body blocks on
//     the connection the body already holds and ends in a TimeoutError.
//
// CP-3: Distinct Failure Types
//   - *TransactionError: the engine rejected a statement or the commit.
//   - *TimeoutError: the transaction outlived its budget (default 5s).
//     Callers may retry a timeout; the store itself never retries.
//
// CP-4: Connection-Scoped Setup
//   - Pragmas and SQL functions are installed by a connect hook, so a
//     connection re-opened by database/sql is configured identically.
//
// # Database Configuration
//
//   - journal_mode=WAL
//   - synchronous from the durability profile (NORMAL, FULL or EXTRA)
//   - temp_store=MEMORY, enlarged cache_size, mmap_size
//   - foreign_keys=ON (suspended only by WithTxForeignKeysOff)
//   - busy_timeout
//
// # SQL Functions
//
//   - to_minor_units(x): legacy fractional money (REAL or text) to int64 cents
//   - iso_date(x), iso_timestamp(x): free-text dates to canonical text
//   - fold(x): case- and accent-insensitive search key
package store
