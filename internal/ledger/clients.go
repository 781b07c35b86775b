package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/sequencer"
	"github.com/roach88/routebook/internal/store"
)

// CreateClient validates f, places the client on its street and inserts
// it. VisitOrder 0 (or past the end) appends; a smaller value inserts the
// client there and moves the rest down. Status is derived from the totals.
func (l *Ledger) CreateClient(ctx context.Context, f model.ClientFields) (id int64, err error) {
	defer func() { l.metrics.LedgerOp("create_client", err) }()

	f.Name = clean(f.Name)
	f.Phone = clean(f.Phone)
	f.Reference = clean(f.Reference)
	f.HouseNumber = clean(f.HouseNumber)
	f.Note = clean(f.Note)
	f.NextChargeDate = strings.TrimSpace(f.NextChargeDate)
	if err := model.Validate(f); err != nil {
		return 0, err
	}

	status := model.DeriveStatus(f.Owed, f.Paid)
	nextCharge := f.NextChargeDate
	if status == model.StatusSettled {
		nextCharge = ""
	}
	now := l.now()

	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		pos := 0
		if f.StreetID != nil {
			if err := requireStreet(ctx, tx, *f.StreetID); err != nil {
				return err
			}
			next, err := sequencer.Next(ctx, tx, *f.StreetID)
			if err != nil {
				return err
			}
			pos = next
			if f.VisitOrder > 0 && f.VisitOrder < next {
				pos = f.VisitOrder
				if err := sequencer.ShiftFrom(ctx, tx, *f.StreetID, pos, now); err != nil {
					return err
				}
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO clients (
				name, owed, paid, phone, reference, house_number, street_id,
				visit_order, priority, note, status, next_charge_date,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			f.Name, f.Owed, f.Paid,
			store.NullString(f.Phone), store.NullString(f.Reference), store.NullString(f.HouseNumber),
			store.NullInt64(f.StreetID), pos, f.Priority, f.Note, string(status),
			store.NullString(nextCharge), now, now,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	l.invalidate()
	l.logger.Debug("client created", "client_id", id, "owed", f.Owed, "paid", f.Paid)
	return id, nil
}

// UpdateClient merges the supplied fields into the stored client.
//
// paid above the (new) owed is clamped down rather than rejected, status
// is re-derived and a settled client loses its next charge date. Moving to
// another street appends the client there and closes the gap it left. One
// audit entry summarizes what changed; a patch that changes nothing writes
// nothing.
func (l *Ledger) UpdateClient(ctx context.Context, id int64, p model.ClientPatch) (err error) {
	defer func() { l.metrics.LedgerOp("update_client", err) }()

	p.Name = cleanPtr(p.Name)
	p.Phone = cleanPtr(p.Phone)
	p.Reference = cleanPtr(p.Reference)
	p.HouseNumber = cleanPtr(p.HouseNumber)
	p.Note = cleanPtr(p.Note)
	if p.NextChargeDate != nil {
		v := strings.TrimSpace(*p.NextChargeDate)
		p.NextChargeDate = &v
	}
	// omitempty would let an explicit empty name through.
	if p.Name != nil && *p.Name == "" {
		return model.NewValidationError("name", "is required")
	}
	if err := model.Validate(p); err != nil {
		return err
	}
	if p.Empty() {
		return nil
	}

	moneyChanged := false
	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := store.GetClient(ctx, tx, id)
		if err != nil || cur == nil {
			return err
		}

		next := merge(cur, p)
		if paid, corrected := model.Clamp(next.Owed, next.Paid); corrected {
			l.logger.Warn("paid clamped to owed",
				"invariant", "paid_le_owed",
				"client_id", id,
				"owed", next.Owed,
				"paid", next.Paid,
			)
			next.Paid = paid
		}
		next.Status = model.DeriveStatus(next.Owed, next.Paid)
		if next.Status == model.StatusSettled {
			next.NextChargeDate = ""
		}

		moved := !sameStreet(cur.StreetID, next.StreetID)
		if moved {
			next.VisitOrder = 0
			if next.StreetID != nil {
				if err := requireStreet(ctx, tx, *next.StreetID); err != nil {
					return err
				}
				if next.VisitOrder, err = sequencer.Next(ctx, tx, *next.StreetID); err != nil {
					return err
				}
			}
		}

		changes := diff(cur, next)
		if len(changes) == 0 {
			return nil
		}
		next.UpdatedAt = l.now()

		if _, err := tx.ExecContext(ctx, `
			UPDATE clients SET
				name = ?, owed = ?, paid = ?, phone = ?, reference = ?, house_number = ?,
				street_id = ?, visit_order = ?, priority = ?, note = ?, status = ?,
				next_charge_date = ?, updated_at = ?
			WHERE id = ?
		`,
			next.Name, next.Owed, next.Paid,
			store.NullString(next.Phone), store.NullString(next.Reference), store.NullString(next.HouseNumber),
			store.NullInt64(next.StreetID), next.VisitOrder, next.Priority, next.Note, string(next.Status),
			store.NullString(next.NextChargeDate), next.UpdatedAt, id,
		); err != nil {
			return err
		}
		if moved && cur.StreetID != nil {
			if _, err := sequencer.Renumber(ctx, tx, *cur.StreetID, next.UpdatedAt); err != nil {
				return err
			}
		}

		l.audit.Append(ctx, tx, id, "updated: "+strings.Join(changes, "; "))
		moneyChanged = cur.Owed != next.Owed || cur.Paid != next.Paid
		return nil
	})
	if err != nil {
		return err
	}
	if moneyChanged {
		l.invalidate()
	}
	return nil
}

// DeleteClient removes a client with its payments and audit trail, and
// closes the gap on its street.
func (l *Ledger) DeleteClient(ctx context.Context, id int64) (err error) {
	defer func() { l.metrics.LedgerOp("delete_client", err) }()

	deleted := false
	err = l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var street sql.NullInt64
		err := tx.QueryRowContext(ctx, "SELECT street_id FROM clients WHERE id = ?", id).Scan(&street)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load client %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id); err != nil {
			return err
		}
		if street.Valid {
			if _, err := sequencer.Renumber(ctx, tx, street.Int64, l.now()); err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}
	if deleted {
		l.invalidate()
		l.logger.Debug("client deleted", "client_id", id)
	}
	return nil
}

// MarkAbsent reschedules a pending client for tomorrow after a visit found
// nobody home. A settled client has nothing to charge and is left alone.
func (l *Ledger) MarkAbsent(ctx context.Context, clientID int64) (err error) {
	defer func() { l.metrics.LedgerOp("mark_absent", err) }()

	return l.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		cur, err := store.GetClient(ctx, tx, clientID)
		if err != nil || cur == nil {
			return err
		}
		if cur.Status == model.StatusSettled {
			l.logger.Debug("mark absent ignored for settled client", "client_id", clientID)
			return nil
		}

		now := l.clock.Now()
		tomorrow := model.FormatDate(clock.Tomorrow(now))
		if _, err := tx.ExecContext(ctx, `
			UPDATE clients SET next_charge_date = ?, status = ?, updated_at = ?
			WHERE id = ?
		`, tomorrow, string(model.StatusPending), model.FormatTimestamp(now), clientID); err != nil {
			return err
		}

		l.audit.Append(ctx, tx, clientID,
			fmt.Sprintf("absent; next charge %s -> %s", orNone(cur.NextChargeDate), tomorrow))
		return nil
	})
}

// merge returns cur with the patch applied.
func merge(cur *model.Client, p model.ClientPatch) *model.Client {
	next := *cur
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Owed != nil {
		next.Owed = *p.Owed
	}
	if p.Paid != nil {
		next.Paid = *p.Paid
	}
	if p.Phone != nil {
		next.Phone = *p.Phone
	}
	if p.Reference != nil {
		next.Reference = *p.Reference
	}
	if p.HouseNumber != nil {
		next.HouseNumber = *p.HouseNumber
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.Note != nil {
		next.Note = *p.Note
	}
	switch {
	case p.ClearStreet:
		next.StreetID = nil
	case p.StreetID != nil:
		id := *p.StreetID
		next.StreetID = &id
	}
	switch {
	case p.ClearNextChargeDate:
		next.NextChargeDate = ""
	case p.NextChargeDate != nil:
		next.NextChargeDate = *p.NextChargeDate
	}
	return &next
}

// diff describes the user-visible differences between two versions of a
// client, in a fixed field order.
func diff(a, b *model.Client) []string {
	var out []string
	add := func(field, from, to string) {
		if from != to {
			out = append(out, fmt.Sprintf("%s: %s -> %s", field, from, to))
		}
	}
	add("name", a.Name, b.Name)
	add("owed", model.FormatMoney(a.Owed), model.FormatMoney(b.Owed))
	add("paid", model.FormatMoney(a.Paid), model.FormatMoney(b.Paid))
	add("phone", orNone(a.Phone), orNone(b.Phone))
	add("reference", orNone(a.Reference), orNone(b.Reference))
	add("house number", orNone(a.HouseNumber), orNone(b.HouseNumber))
	add("street", streetLabel(a.StreetID), streetLabel(b.StreetID))
	add("priority", strconv.FormatBool(a.Priority), strconv.FormatBool(b.Priority))
	add("note", orNone(a.Note), orNone(b.Note))
	add("status", string(a.Status), string(b.Status))
	add("next charge", orNone(a.NextChargeDate), orNone(b.NextChargeDate))
	return out
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func streetLabel(id *int64) string {
	if id == nil {
		return "none"
	}
	return "#" + strconv.FormatInt(*id, 10)
}

func sameStreet(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// requireStreet rejects references to streets that do not exist.
func requireStreet(ctx context.Context, q store.Querier, id int64) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM streets WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("look up street %d: %w", id, err)
	}
	if n == 0 {
		return model.NewValidationError("street_id", fmt.Sprintf("unknown street %d", id))
	}
	return nil
}
