package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// Tx is the only statement surface available inside a WithTx body.
// Statement failures come back as *TransactionError.
type Tx struct {
	tx *sql.Tx
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &TransactionError{Op: "exec", Err: err}
	}
	return res, nil
}

// QueryContext runs a query inside the transaction.
// Callers are responsible for closing the returned rows.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &TransactionError{Op: "query", Err: err}
	}
	return rows, nil
}

// QueryRowContext runs a single-row query inside the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// TxFunc is a transaction body. ctx carries the transaction deadline and
// must be used for every statement.
type TxFunc func(ctx context.Context, tx *Tx) error

// WithTx runs fn inside one atomic transaction with the default timeout.
//
// Commits when fn returns nil; rolls back and returns fn's error otherwise.
// A panic inside fn rolls back and re-panics. There are no nested
// transactions: fn must not call WithTx or use the Store directly.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.WithTxTimeout(ctx, s.txTimeout, fn)
}

// WithTxTimeout is WithTx with an explicit budget.
func (s *Store) WithTxTimeout(ctx context.Context, timeout time.Duration, fn TxFunc) error {
	return s.runTx(ctx, timeout, func(txCtx context.Context) (*sql.Tx, error) {
		return s.db.BeginTx(txCtx, nil)
	}, fn)
}

// WithTxForeignKeysOff runs fn in a transaction on the pinned connection with
// foreign key enforcement suspended. Enforcement is restored afterwards
// whatever the outcome; if restoring fails the connection is discarded so the
// next one is set up fresh by the connect hook.
//
// PRAGMA foreign_keys is a no-op inside a transaction, which is why the
// toggle happens on the connection around it.
func (s *Store) WithTxForeignKeysOff(ctx context.Context, timeout time.Duration, fn TxFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &TransactionError{Op: "acquire connection", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return &TransactionError{Op: "disable foreign keys", Err: err}
	}
	defer func() {
		// Background context: restoration must run even if ctx is done.
		if _, rerr := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); rerr != nil {
			s.logger.Error("failed to restore foreign keys; discarding connection", "error", rerr)
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			if err == nil {
				err = &TransactionError{Op: "restore foreign keys", Err: rerr}
			}
		}
	}()

	return s.runTx(ctx, timeout, func(txCtx context.Context) (*sql.Tx, error) {
		return conn.BeginTx(txCtx, nil)
	}, fn)
}

func (s *Store) runTx(ctx context.Context, timeout time.Duration, begin func(context.Context) (*sql.Tx, error), fn TxFunc) (err error) {
	if timeout <= 0 {
		timeout = s.txTimeout
	}
	start := time.Now()
	defer func() { s.metrics.ObserveTx(start, err) }()

	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sqlTx, err := begin(txCtx)
	if err != nil {
		return classify(ctx, txCtx, timeout, &TransactionError{Op: "begin", Err: err})
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx, &Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return classify(ctx, txCtx, timeout, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return classify(ctx, txCtx, timeout, &TransactionError{Op: "commit", Err: err})
	}
	return nil
}

// classify turns failures caused by our own deadline into a TimeoutError.
// A deadline or cancellation inherited from the caller is left alone.
func classify(parent, txCtx context.Context, timeout time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout, Err: err}
	}
	return err
}

// ForeignKeysEnabled reports the connection's current enforcement setting.
func (s *Store) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var on int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, fmt.Errorf("query foreign_keys: %w", err)
	}
	return on == 1, nil
}
