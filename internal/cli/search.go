package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/model"
	"github.com/roach88/routebook/internal/query"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Limit int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find clients by name, phone, reference, address or note",
		Long: `Case- and accent-insensitive substring search across client name, phone,
reference, house number, note, street and neighborhood. Characters such as
% and _ match literally.

Examples:
  routebook search "jose"
  routebook search 555-01 --limit 5 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", query.DefaultSearchLimit, "maximum number of results")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command, term string) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	clients, err := a.Query.Search(cmd.Context(), term, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(clients)
	}
	if len(clients) == 0 {
		out.Printf("No clients match %q\n", term)
		return nil
	}
	out.Printf("%6s  %-30s %12s %12s  %s\n", "ID", "NAME", "OWED", "OUTSTANDING", "STATUS")
	for _, c := range clients {
		out.Printf("%6d  %-30s %12s %12s  %s\n",
			c.ID, c.Name, model.FormatMoney(c.Owed), model.FormatMoney(c.Outstanding()), c.Status)
	}
	return nil
}
