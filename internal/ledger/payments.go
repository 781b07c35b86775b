package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// RecordPayment books amount (minor units) against a client and returns the
// new payment. nextDate, when not empty, becomes the next charge date
// unless the payment settles the client.
//
// Non-positive amounts and amounts above the outstanding balance are
// rejected. An unknown client yields nil, nil.
func (l *Ledger) RecordPayment(ctx context.Context, clientID, amount int64, nextDate string) (p *model.Payment, err error) {
	defer func() { l.metrics.LedgerOp("record_payment", err) }()

	if amount <= 0 {
		return nil, model.NewValidationError("amount", "must be positive")
	}
	nextDate = strings.TrimSpace(nextDate)
	if nextDate != "" && !model.IsISODate(nextDate) {
		return nil, model.NewValidationError("next_charge_date", "must be an ISO date (YYYY-MM-DD)")
	}

	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := store.GetClient(ctx, tx, clientID)
		if err != nil || cur == nil {
			return err
		}
		if outstanding := cur.Outstanding(); amount > outstanding {
			return model.NewValidationError("amount", fmt.Sprintf("%s exceeds outstanding balance %s",
				model.FormatMoney(amount), model.FormatMoney(outstanding)))
		}

		now := l.now()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO payments (client_id, timestamp, amount) VALUES (?, ?, ?)",
			clientID, now, amount,
		)
		if err != nil {
			return err
		}
		paymentID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		paid := cur.Paid + amount
		status := model.DeriveStatus(cur.Owed, paid)
		nextCharge := cur.NextChargeDate
		if nextDate != "" {
			nextCharge = nextDate
		}
		if status == model.StatusSettled {
			nextCharge = ""
		}
		if err := setTotals(ctx, tx, clientID, paid, status, nextCharge, now); err != nil {
			return err
		}

		l.audit.Append(ctx, tx, clientID, fmt.Sprintf("payment %s; paid %s -> %s of %s",
			model.FormatMoney(amount), model.FormatMoney(cur.Paid), model.FormatMoney(paid), model.FormatMoney(cur.Owed)))

		p = &model.Payment{ID: paymentID, ClientID: clientID, Timestamp: now, Amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p != nil {
		l.invalidate()
		l.logger.Debug("payment recorded", "client_id", clientID, "payment_id", p.ID, "amount", amount)
	}
	return p, nil
}

// ReversePayment deletes a payment and takes its amount back off the
// client's paid total, re-deriving status. An unknown payment id is a
// no-op.
func (l *Ledger) ReversePayment(ctx context.Context, paymentID int64) (err error) {
	defer func() { l.metrics.LedgerOp("reverse_payment", err) }()

	reversed := false
	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var clientID, amount int64
		err := tx.QueryRowContext(ctx,
			"SELECT client_id, amount FROM payments WHERE id = ?", paymentID,
		).Scan(&clientID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load payment %d: %w", paymentID, err)
		}

		cur, err := store.GetClient(ctx, tx, clientID)
		if err != nil || cur == nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", paymentID); err != nil {
			return err
		}

		paid := cur.Paid - amount
		if paid < 0 {
			l.logger.Warn("reversal exceeds paid total",
				"invariant", "paid_ge_zero",
				"client_id", clientID,
				"payment_id", paymentID,
				"paid", cur.Paid,
				"amount", amount,
			)
			paid = 0
		}
		status := model.DeriveStatus(cur.Owed, paid)
		nextCharge := cur.NextChargeDate
		if status == model.StatusSettled {
			nextCharge = ""
		}
		now := l.now()
		if err := setTotals(ctx, tx, clientID, paid, status, nextCharge, now); err != nil {
			return err
		}

		l.audit.Append(ctx, tx, clientID, fmt.Sprintf("payment %s reversed; paid %s -> %s of %s",
			model.FormatMoney(amount), model.FormatMoney(cur.Paid), model.FormatMoney(paid), model.FormatMoney(cur.Owed)))
		reversed = true
		return nil
	})
	if err != nil {
		return err
	}
	if reversed {
		l.invalidate()
		l.logger.Debug("payment reversed", "payment_id", paymentID)
	}
	return nil
}

func setTotals(ctx context.Context, tx *store.Tx, clientID, paid int64, status model.Status, nextCharge, now string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE clients SET paid = ?, status = ?, next_charge_date = ?, updated_at = ?
		WHERE id = ?
	`, paid, string(status), store.NullString(nextCharge), now, clientID)
	return err
}
