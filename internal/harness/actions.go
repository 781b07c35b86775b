package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/store"
)

// outcome is what an action reports back to the harness. id is bound by
// the step's "as" field.
type outcome struct {
	outcome string
	id      int64
	result  map[string]any
}

type action func(ctx context.Context, h *Harness, a args) (outcome, error)

var actions = map[string]action{
	"create_neighborhood": createNeighborhood,
	"create_street":       createStreet,
	"rename_street":       renameStreet,
	"delete_street":       deleteStreet,
	"delete_neighborhood": deleteNeighborhood,
	"create_client":       createClient,
	"update_client":       updateClient,
	"delete_client":       deleteClient,
	"mark_absent":         markAbsent,
	"record_payment":      recordPayment,
	"reverse_payment":     reversePayment,
	"set_order":           setOrder,
	"normalize":           normalize,
	"search":              search,
}

func createNeighborhood(ctx context.Context, h *Harness, a args) (outcome, error) {
	name, err := a.str("name")
	if err != nil {
		return outcome{}, err
	}
	id, err := h.ledger.CreateNeighborhood(ctx, name)
	return created(id), err
}

func createStreet(ctx context.Context, h *Harness, a args) (outcome, error) {
	neighborhood, err := a.int("neighborhood")
	if err != nil {
		return outcome{}, err
	}
	name, err := a.str("name")
	if err != nil {
		return outcome{}, err
	}
	id, err := h.ledger.CreateStreet(ctx, neighborhood, name)
	return created(id), err
}

func renameStreet(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("street")
	if err != nil {
		return outcome{}, err
	}
	name, err := a.str("name")
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, h.ledger.RenameStreet(ctx, id, name)
}

func deleteStreet(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("street")
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, h.ledger.DeleteStreet(ctx, id)
}

func deleteNeighborhood(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("neighborhood")
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, h.ledger.DeleteNeighborhood(ctx, id)
}

func createClient(ctx context.Context, h *Harness, a args) (outcome, error) {
	var (
		f   model.ClientFields
		err error
	)
	if f.Name, err = a.str("name"); err != nil {
		return outcome{}, err
	}
	if f.Owed, err = a.int("owed"); err != nil {
		return outcome{}, err
	}
	if err := a.optInt("paid", &f.Paid); err != nil {
		return outcome{}, err
	}
	if f.StreetID, err = a.optIntPtr("street"); err != nil {
		return outcome{}, err
	}
	var order int64
	if err := a.optInt("visit_order", &order); err != nil {
		return outcome{}, err
	}
	f.VisitOrder = int(order)
	if err := a.optBool("priority", &f.Priority); err != nil {
		return outcome{}, err
	}
	for key, dst := range map[string]*string{
		"phone":            &f.Phone,
		"reference":        &f.Reference,
		"house_number":     &f.HouseNumber,
		"note":             &f.Note,
		"next_charge_date": &f.NextChargeDate,
	} {
		if err := a.optStr(key, dst); err != nil {
			return outcome{}, err
		}
	}

	id, err := h.ledger.CreateClient(ctx, f)
	return created(id), err
}

func updateClient(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("client")
	if err != nil {
		return outcome{}, err
	}

	var p model.ClientPatch
	for key, dst := range map[string]**string{
		"name":             &p.Name,
		"phone":            &p.Phone,
		"reference":        &p.Reference,
		"house_number":     &p.HouseNumber,
		"note":             &p.Note,
		"next_charge_date": &p.NextChargeDate,
	} {
		if *dst, err = a.optStrPtr(key); err != nil {
			return outcome{}, err
		}
	}
	if p.Owed, err = a.optIntPtr("owed"); err != nil {
		return outcome{}, err
	}
	if p.Paid, err = a.optIntPtr("paid"); err != nil {
		return outcome{}, err
	}
	if p.StreetID, err = a.optIntPtr("street"); err != nil {
		return outcome{}, err
	}
	if p.Priority, err = a.optBoolPtr("priority"); err != nil {
		return outcome{}, err
	}
	if err := a.optBool("clear_street", &p.ClearStreet); err != nil {
		return outcome{}, err
	}
	if err := a.optBool("clear_next_charge_date", &p.ClearNextChargeDate); err != nil {
		return outcome{}, err
	}

	return h.onClient(ctx, id, func() error { return h.ledger.UpdateClient(ctx, id, p) })
}

func deleteClient(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("client")
	if err != nil {
		return outcome{}, err
	}
	exists, err := h.clientExists(ctx, id)
	if err != nil {
		return outcome{}, err
	}
	if err := h.ledger.DeleteClient(ctx, id); err != nil {
		return outcome{}, err
	}
	if !exists {
		return outcome{outcome: OutcomeNoop}, nil
	}
	return outcome{}, nil
}

func markAbsent(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("client")
	if err != nil {
		return outcome{}, err
	}
	return h.onClient(ctx, id, func() error { return h.ledger.MarkAbsent(ctx, id) })
}

func recordPayment(ctx context.Context, h *Harness, a args) (outcome, error) {
	client, err := a.int("client")
	if err != nil {
		return outcome{}, err
	}
	amount, err := a.int("amount")
	if err != nil {
		return outcome{}, err
	}
	var next string
	if err := a.optStr("next_charge_date", &next); err != nil {
		return outcome{}, err
	}

	p, err := h.ledger.RecordPayment(ctx, client, amount, next)
	if err != nil {
		return outcome{}, err
	}
	if p == nil {
		return outcome{outcome: OutcomeNoop}, nil
	}
	out, err := h.totals(ctx, client)
	if err != nil {
		return outcome{}, err
	}
	out.id = p.ID
	out.result["id"] = p.ID
	return out, nil
}

func reversePayment(ctx context.Context, h *Harness, a args) (outcome, error) {
	id, err := a.int("payment")
	if err != nil {
		return outcome{}, err
	}

	var client int64
	err = h.store.QueryRowContext(ctx, "SELECT client_id FROM payments WHERE id = ?", id).Scan(&client)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return outcome{outcome: OutcomeNoop}, h.ledger.ReversePayment(ctx, id)
	case err != nil:
		return outcome{}, err
	}

	if err := h.ledger.ReversePayment(ctx, id); err != nil {
		return outcome{}, err
	}
	return h.totals(ctx, client)
}

func setOrder(ctx context.Context, h *Harness, a args) (outcome, error) {
	client, err := a.int("client")
	if err != nil {
		return outcome{}, err
	}
	street, err := a.int("street")
	if err != nil {
		return outcome{}, err
	}
	position, err := a.int("position")
	if err != nil {
		return outcome{}, err
	}
	if position > math.MaxInt32 || position < math.MinInt32 {
		return outcome{}, &argError{msg: fmt.Sprintf("position %d out of range", position)}
	}
	return h.onClient(ctx, client, func() error {
		return h.sequencer.SetOrder(ctx, client, street, int(position))
	})
}

func normalize(ctx context.Context, h *Harness, a args) (outcome, error) {
	street, err := a.int("street")
	if err != nil {
		return outcome{}, err
	}
	return outcome{}, h.sequencer.Normalize(ctx, street)
}

func search(ctx context.Context, h *Harness, a args) (outcome, error) {
	term, err := a.str("term")
	if err != nil {
		return outcome{}, err
	}
	var limit int64
	if err := a.optInt("limit", &limit); err != nil {
		return outcome{}, err
	}

	found, err := h.query.Search(ctx, term, int(limit))
	if err != nil {
		return outcome{}, err
	}
	ids := make([]any, len(found))
	for i, c := range found {
		ids[i] = c.ID
	}
	return outcome{result: map[string]any{"ids": ids}}, nil
}

func created(id int64) outcome {
	return outcome{id: id, result: map[string]any{"id": id}}
}

// onClient runs fn and reports noop when the client did not exist.
func (h *Harness) onClient(ctx context.Context, id int64, fn func() error) (outcome, error) {
	exists, err := h.clientExists(ctx, id)
	if err != nil {
		return outcome{}, err
	}
	if err := fn(); err != nil {
		return outcome{}, err
	}
	if !exists {
		return outcome{outcome: OutcomeNoop}, nil
	}
	return outcome{}, nil
}

func (h *Harness) clientExists(ctx context.Context, id int64) (bool, error) {
	c, err := store.GetClient(ctx, h.store, id)
	return c != nil, err
}

// totals reports a client's paid total and status after a payment change.
func (h *Harness) totals(ctx context.Context, id int64) (outcome, error) {
	c, err := store.GetClient(ctx, h.store, id)
	if err != nil {
		return outcome{}, err
	}
	if c == nil {
		return outcome{}, fmt.Errorf("client %d vanished", id)
	}
	return outcome{result: map[string]any{
		"paid":   c.Paid,
		"status": string(c.Status),
	}}, nil
}
