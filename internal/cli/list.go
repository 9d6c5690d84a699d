package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szylko/treeport/faults"
)

func newListCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	var snapshots bool

	command := &cobra.Command{
		Use:   "list <kind>",
		Short: "List resource ids of a kind",
		Example: joinExamples(
			"  treeport list service",
			"  treeport list service --snapshots",
		),
		Args: cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			kind := args[0]
			if err := validateKind(kind); err != nil {
				return err
			}

			engine, err := resolveEngine(command.Context(), deps, globalFlags)
			if err != nil {
				return err
			}

			if snapshots {
				if engine.Store == nil {
					return faults.NewTypedError(faults.ValidationError, "no snapshot-store configured for this context", nil)
				}
				paths, err := engine.Store.List(command.Context(), kind)
				if err != nil {
					return err
				}
				for _, path := range paths {
					_, _ = fmt.Fprintln(command.OutOrStdout(), path)
				}
				return nil
			}

			ids, err := engine.Remote.List(command.Context(), kind)
			if err != nil {
				return err
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(command.OutOrStdout(), id)
			}
			return nil
		},
	}

	command.Flags().BoolVar(&snapshots, "snapshots", false, "list local snapshot files instead of remote resources")
	return command
}
