package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/query"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Top int
}

// Report is the collection overview printed by the report command.
type Report struct {
	Portfolio     query.Summary       `json:"portfolio"`
	Today         int64               `json:"today_collected"`
	Month         int64               `json:"month_collected"`
	LastMonth     int64               `json:"last_month_collected"`
	Growth        query.Growth        `json:"growth"`
	TopClients    []query.ClientTotal `json:"top_clients"`
	Neighborhoods []query.Share       `json:"neighborhoods"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the portfolio and recent collections",
		Long: `Print portfolio totals, today's and this month's collections, growth over
last month, the top clients by amount collected and the split by
neighborhood. Days and months follow the configured timezone.

Examples:
  routebook report
  routebook report --top 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Top, "top", 5, "number of top clients to list")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := buildReport(cmd, a.Query, opts.Top)
	if err != nil {
		return WrapExitError(ExitFailure, "report failed", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(r)
	}

	p := r.Portfolio
	out.Printf("Clients:      %d (%d settled, %d pending)\n", p.Clients, p.Settled, p.Pending)
	out.Printf("Owed:         %s\n", model.FormatMoney(p.Owed))
	out.Printf("Paid:         %s\n", model.FormatMoney(p.Paid))
	out.Printf("Outstanding:  %s\n", model.FormatMoney(p.Outstanding))
	out.Printf("\n")
	out.Printf("Today:        %s\n", model.FormatMoney(r.Today))
	out.Printf("This month:   %s\n", model.FormatMoney(r.Month))
	out.Printf("Last month:   %s\n", model.FormatMoney(r.LastMonth))
	if r.Growth.HasBaseline {
		out.Printf("Growth:       %+.1f%%\n", r.Growth.Percent)
	} else {
		out.Printf("Growth:       n/a\n")
	}

	if len(r.TopClients) > 0 {
		out.Printf("\nTop clients:\n")
		for i, c := range r.TopClients {
			out.Printf("  %2d. %-30s %12s (%d payments)\n", i+1, c.Name, model.FormatMoney(c.Collected), c.Payments)
		}
	}
	if len(r.Neighborhoods) > 0 {
		out.Printf("\nBy neighborhood:\n")
		for _, s := range r.Neighborhoods {
			name := s.Neighborhood
			if s.NeighborhoodID == nil {
				name = "(no street)"
			}
			out.Printf("  %-30s %12s %6.1f%%\n", name, model.FormatMoney(s.Collected), s.Percent)
		}
	}
	return nil
}

func buildReport(cmd *cobra.Command, q *query.Reader, top int) (*Report, error) {
	ctx := cmd.Context()
	var (
		r   Report
		err error
	)
	if r.Portfolio, err = q.PortfolioSummary(ctx); err != nil {
		return nil, err
	}
	if r.Today, err = q.TodayCollected(ctx); err != nil {
		return nil, err
	}
	if r.Growth, err = q.MonthOverMonthGrowth(ctx); err != nil {
		return nil, err
	}
	r.Month, r.LastMonth = r.Growth.Current, r.Growth.Previous
	if r.TopClients, err = q.TopClients(ctx, top); err != nil {
		return nil, err
	}
	if r.Neighborhoods, err = q.NeighborhoodDistribution(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}
