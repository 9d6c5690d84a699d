package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szylko/treeport/batch"
	"github.com/szylko/treeport/faults"
)

func newDeleteCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	var deleteAll bool
	var force bool

	command := &cobra.Command{
		Use:   "delete <kind> [id...]",
		Short: "Delete resource trees from the backend",
		Example: joinExamples(
			"  treeport delete service svc-1 --force",
			"  treeport delete variable --all",
		),
		Args: cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			kind := args[0]
			if err := validateKind(kind); err != nil {
				return err
			}

			engine, err := resolveEngine(command.Context(), deps, globalFlags)
			if err != nil {
				return err
			}

			ids := args[1:]
			if deleteAll {
				ids, err = engine.Remote.List(command.Context(), kind)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return faults.NewTypedError(faults.ValidationError, "resource id or --all is required", nil)
			}

			if !force {
				confirmed, err := confirmDeletion(command, kind, len(ids))
				if err != nil {
					return err
				}
				if !confirmed {
					_, _ = fmt.Fprintln(command.OutOrStdout(), "deletion aborted")
					return nil
				}
			}

			report := batch.Run(command.Context(), batch.IDs(ids), func(ctx context.Context, task batch.Task[struct{}]) (string, error) {
				return "", engine.Sync.DeleteTree(ctx, kind, task.ID)
			})

			writeReport(command.OutOrStdout(), report)
			return reportError(report, "delete")
		},
	}

	command.Flags().BoolVar(&deleteAll, "all", false, "delete every resource of the kind")
	command.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return command
}
