package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/routebook/internal/app"
)

// ReorderOptions holds flags for the reorder command.
type ReorderOptions struct {
	*RootOptions
	Client   int64
	Street   int64
	Position int
}

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Street int64
}

// RouteStop is one client in a street's visiting order.
type RouteStop struct {
	Position int    `json:"position"`
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
}

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReorderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Move a client to a new position on its street",
		Long: `Move a client to --position in its street's visiting order. Clients at
or after that position move down one place; positions are then renumbered
1..N. A position past the end puts the client last.

Examples:
  routebook reorder --client 42 --street 3 --position 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReorder(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Client, "client", 0, "client id (required)")
	_ = cmd.MarkFlagRequired("client")
	cmd.Flags().Int64Var(&opts.Street, "street", 0, "street id (required)")
	_ = cmd.MarkFlagRequired("street")
	cmd.Flags().IntVar(&opts.Position, "position", 0, "new 1-based position (required)")
	_ = cmd.MarkFlagRequired("position")

	return cmd
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Renumber a street's visiting order to 1..N",
		Long: `Close gaps and duplicates in a street's visiting order, keeping the
current relative order.

Examples:
  routebook normalize --street 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Street, "street", 0, "street id (required)")
	_ = cmd.MarkFlagRequired("street")

	return cmd
}

func runReorder(opts *ReorderOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Sequencer.SetOrder(cmd.Context(), opts.Client, opts.Street, opts.Position); err != nil {
		return WrapExitError(ExitFailure, "reorder failed", err)
	}
	return printRoute(opts.RootOptions, cmd, a, opts.Street)
}

func runNormalize(opts *NormalizeOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Sequencer.Normalize(cmd.Context(), opts.Street); err != nil {
		return WrapExitError(ExitFailure, "normalize failed", err)
	}
	return printRoute(opts.RootOptions, cmd, a, opts.Street)
}

// printRoute shows the street's order after a change.
func printRoute(opts *RootOptions, cmd *cobra.Command, a *app.App, streetID int64) error {
	clients, err := a.Query.ClientsOnStreet(cmd.Context(), streetID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read street", err)
	}
	stops := make([]RouteStop, len(clients))
	for i, c := range clients {
		stops[i] = RouteStop{Position: c.VisitOrder, ClientID: c.ID, Name: c.Name}
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(stops)
	}
	if len(stops) == 0 {
		out.Printf("Street %d has no clients\n", streetID)
		return nil
	}
	for _, s := range stops {
		out.Printf("%3d. %s (#%d)\n", s.Position, s.Name, s.ClientID)
	}
	return nil
}
