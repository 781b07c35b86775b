package query

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

// Tally is the money and status breakdown of a set of clients.
type Tally struct {
	Clients     int   `json:"clients"`
	Settled     int   `json:"settled"`
	Pending     int   `json:"pending"`
	Paid        int64 `json:"paid"`
	Outstanding int64 `json:"outstanding"`
}

// StreetGroup tallies one street. Clients without a street are reported
// in a final group with a nil StreetID.
type StreetGroup struct {
	StreetID       *int64 `json:"street_id"`
	Street         string `json:"street"`
	NeighborhoodID *int64 `json:"neighborhood_id"`
	Neighborhood   string `json:"neighborhood"`
	Tally
}

// NeighborhoodGroup tallies one neighborhood across its streets.
type NeighborhoodGroup struct {
	NeighborhoodID *int64 `json:"neighborhood_id"`
	Neighborhood   string `json:"neighborhood"`
	Streets        int    `json:"streets"`
	Tally
}

// tallyColumns aggregates the clients joined as c.
const tallyColumns = `COUNT(c.id),
       COALESCE(SUM(c.status = 'settled'), 0),
       COALESCE(SUM(c.status = 'pending'), 0),
       COALESCE(SUM(c.paid), 0),
       COALESCE(SUM(c.owed - c.paid), 0)`

const unassignedTallySQL = `SELECT ` + tallyColumns + ` FROM clients c WHERE c.street_id IS NULL`

// GroupByStreet tallies every street, empty ones included, ordered by
// neighborhood and street name.
func (r *Reader) GroupByStreet(ctx context.Context) ([]StreetGroup, error) {
	rows, err := r.store.QueryContext(ctx, `
SELECT s.id, s.name, n.id, n.name, `+tallyColumns+`
  FROM streets s
  JOIN neighborhoods n ON n.id = s.neighborhood_id
  LEFT JOIN clients c ON c.street_id = s.id
 GROUP BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("group by street: %w", err)
	}
	defer rows.Close()

	groups := []StreetGroup{}
	for rows.Next() {
		var (
			g              StreetGroup
			streetID, nbID sql.NullInt64
		)
		if err := rows.Scan(&streetID, &g.Street, &nbID, &g.Neighborhood,
			&g.Clients, &g.Settled, &g.Pending, &g.Paid, &g.Outstanding); err != nil {
			return nil, fmt.Errorf("group by street: scan: %w", err)
		}
		g.StreetID, g.NeighborhoodID = nullableID(streetID), nullableID(nbID)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group by street: %w", err)
	}
	rows.Close()

	slices.SortFunc(groups, func(a, b StreetGroup) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Neighborhood), strings.ToLower(b.Neighborhood)),
			strings.Compare(strings.ToLower(a.Street), strings.ToLower(b.Street)),
			cmp.Compare(*a.StreetID, *b.StreetID),
		)
	})

	unassigned, err := r.unassignedTally(ctx)
	if err != nil {
		return nil, err
	}
	if unassigned.Clients > 0 {
		groups = append(groups, StreetGroup{Tally: unassigned})
	}
	return groups, nil
}

// GroupByNeighborhood tallies every neighborhood, empty ones included,
// ordered by name.
func (r *Reader) GroupByNeighborhood(ctx context.Context) ([]NeighborhoodGroup, error) {
	rows, err := r.store.QueryContext(ctx, `
SELECT n.id, n.name, COUNT(DISTINCT s.id), `+tallyColumns+`
  FROM neighborhoods n
  LEFT JOIN streets s ON s.neighborhood_id = n.id
  LEFT JOIN clients c ON c.street_id = s.id
 GROUP BY n.id
 ORDER BY n.name COLLATE NOCASE, n.id`)
	if err != nil {
		return nil, fmt.Errorf("group by neighborhood: %w", err)
	}
	defer rows.Close()

	groups := []NeighborhoodGroup{}
	for rows.Next() {
		var (
			g    NeighborhoodGroup
			nbID sql.NullInt64
		)
		if err := rows.Scan(&nbID, &g.Neighborhood, &g.Streets,
			&g.Clients, &g.Settled, &g.Pending, &g.Paid, &g.Outstanding); err != nil {
			return nil, fmt.Errorf("group by neighborhood: scan: %w", err)
		}
		g.NeighborhoodID = nullableID(nbID)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group by neighborhood: %w", err)
	}
	rows.Close()

	unassigned, err := r.unassignedTally(ctx)
	if err != nil {
		return nil, err
	}
	if unassigned.Clients > 0 {
		groups = append(groups, NeighborhoodGroup{Tally: unassigned})
	}
	return groups, nil
}

func (r *Reader) unassignedTally(ctx context.Context) (Tally, error) {
	var t Tally
	err := r.store.QueryRowContext(ctx, unassignedTallySQL).
		Scan(&t.Clients, &t.Settled, &t.Pending, &t.Paid, &t.Outstanding)
	if err != nil {
		return Tally{}, fmt.Errorf("unassigned tally: %w", err)
	}
	return t, nil
}
