package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/routebook/internal/clock"
	"github.com/roach88/routebook/internal/model"
)

// DefaultTopClients is the TopClients size when n is not positive.
const DefaultTopClients = 10

const (
	keyPortfolio      = "portfolio"
	keyMonthCollected = "month_collected:"
)

// Summary is the whole portfolio at a glance.
type Summary struct {
	Owed int64 `json:"owed"`
	Tally
}

// ClientTotal is one row of TopClients.
type ClientTotal struct {
	ClientID  int64  `json:"client_id"`
	Name      string `json:"name"`
	Collected int64  `json:"collected"`
	Payments  int    `json:"payments"`
}

// Share is one neighborhood's part of everything collected. Payments from
// clients without a street are reported with a nil NeighborhoodID.
type Share struct {
	NeighborhoodID *int64  `json:"neighborhood_id"`
	Neighborhood   string  `json:"neighborhood"`
	Collected      int64   `json:"collected"`
	Percent        float64 `json:"percent"`
}

// Growth compares this month's collections with last month's. Percent is
// meaningful only when HasBaseline is set.
type Growth struct {
	Current     int64   `json:"current"`
	Previous    int64   `json:"previous"`
	Percent     float64 `json:"percent"`
	HasBaseline bool    `json:"has_baseline"`
}

// PortfolioSummary totals owed, paid and outstanding across all clients.
// The result is cached until the TTL expires or the ledger invalidates it.
func (r *Reader) PortfolioSummary(ctx context.Context) (Summary, error) {
	return memo(r.cache, keyPortfolio, func() (Summary, error) {
		var s Summary
		err := r.store.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(c.owed), 0), `+tallyColumns+` FROM clients c`,
		).Scan(&s.Owed, &s.Clients, &s.Settled, &s.Pending, &s.Paid, &s.Outstanding)
		if err != nil {
			return Summary{}, fmt.Errorf("portfolio summary: %w", err)
		}
		return s, nil
	})
}

// TodayCollected sums the payments received today.
func (r *Reader) TodayCollected(ctx context.Context) (int64, error) {
	start := clock.StartOfDay(r.now())
	return r.collectedBetween(ctx, start, start.AddDate(0, 0, 1))
}

// MonthCollected sums the payments received this calendar month. The
// result is cached like PortfolioSummary.
func (r *Reader) MonthCollected(ctx context.Context) (int64, error) {
	start := clock.StartOfMonth(r.now())
	return memo(r.cache, keyMonthCollected+start.Format("2006-01"), func() (int64, error) {
		return r.collectedBetween(ctx, start, start.AddDate(0, 1, 0))
	})
}

// LastMonthCollected sums the payments received in the previous calendar
// month.
func (r *Reader) LastMonthCollected(ctx context.Context) (int64, error) {
	end := clock.StartOfMonth(r.now())
	return r.collectedBetween(ctx, end.AddDate(0, -1, 0), end)
}

// MonthOverMonthGrowth compares MonthCollected with LastMonthCollected.
func (r *Reader) MonthOverMonthGrowth(ctx context.Context) (Growth, error) {
	current, err := r.MonthCollected(ctx)
	if err != nil {
		return Growth{}, err
	}
	previous, err := r.LastMonthCollected(ctx)
	if err != nil {
		return Growth{}, err
	}
	g := Growth{Current: current, Previous: previous}
	if previous > 0 {
		g.HasBaseline = true
		g.Percent = percent(current-previous, previous)
	}
	return g, nil
}

// TopClients returns the n clients with the most collected, all time.
func (r *Reader) TopClients(ctx context.Context, n int) ([]ClientTotal, error) {
	if n <= 0 {
		n = DefaultTopClients
	}
	rows, err := r.store.QueryContext(ctx, `
SELECT c.id, c.name, SUM(p.amount), COUNT(p.id)
  FROM payments p
  JOIN clients c ON c.id = p.client_id
 GROUP BY c.id
 ORDER BY 3 DESC, c.id
 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top clients: %w", err)
	}
	defer rows.Close()

	out := []ClientTotal{}
	for rows.Next() {
		var ct ClientTotal
		if err := rows.Scan(&ct.ClientID, &ct.Name, &ct.Collected, &ct.Payments); err != nil {
			return nil, fmt.Errorf("top clients: scan: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top clients: %w", err)
	}
	return out, nil
}

// NeighborhoodDistribution splits everything collected by neighborhood,
// largest first. Percentages are rounded to one decimal.
func (r *Reader) NeighborhoodDistribution(ctx context.Context) ([]Share, error) {
	rows, err := r.store.QueryContext(ctx, `
SELECT n.id, COALESCE(n.name, ''), SUM(p.amount)
  FROM payments p
  JOIN clients c ON c.id = p.client_id
  LEFT JOIN streets s ON s.id = c.street_id
  LEFT JOIN neighborhoods n ON n.id = s.neighborhood_id
 GROUP BY n.id
 ORDER BY 3 DESC, n.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("neighborhood distribution: %w", err)
	}
	defer rows.Close()

	var (
		out   = []Share{}
		total int64
	)
	for rows.Next() {
		var (
			s    Share
			nbID sql.NullInt64
		)
		if err := rows.Scan(&nbID, &s.Neighborhood, &s.Collected); err != nil {
			return nil, fmt.Errorf("neighborhood distribution: scan: %w", err)
		}
		s.NeighborhoodID = nullableID(nbID)
		total += s.Collected
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neighborhood distribution: %w", err)
	}
	for i := range out {
		out[i].Percent = percent(out[i].Collected, total)
	}
	return out, nil
}

func (r *Reader) collectedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var sum int64
	err := r.store.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE timestamp >= ? AND timestamp < ?",
		model.FormatTimestamp(from), model.FormatTimestamp(to),
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("collected between: %w", err)
	}
	return sum, nil
}

// percent returns part/whole*100 rounded to one decimal, 0 when whole is 0.
func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(1).
		InexactFloat64()
}
