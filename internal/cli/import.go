package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szylko/treeport/batch"
	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/synchronizer"
)

func newImportCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	var clean bool
	var selectExpr string

	command := &cobra.Command{
		Use:   "import <file> [id...]",
		Short: "Import resource trees from an envelope file",
		Example: joinExamples(
			"  treeport import services.yaml",
			"  treeport import services.yaml svc-1 --clean",
			"  treeport import services.yaml --select '.enabled != false'",
		),
		Args: cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			env, err := readEnvelopeFile(args[0])
			if err != nil {
				return err
			}

			if selectExpr != "" {
				env, err = envelope.Select(env, selectExpr)
				if err != nil {
					return err
				}
			}

			ids := args[1:]
			if len(ids) == 0 {
				ids = env.SortedIDs()
			}

			tasks := make([]batch.Task[envelope.Entry], 0, len(ids))
			for _, id := range ids {
				entry, ok := env.Entries[id]
				if !ok {
					return faults.NewTypedError(
						faults.NotFoundError,
						fmt.Sprintf("resource %q is not present in the envelope", id),
						nil,
					)
				}
				tasks = append(tasks, batch.Task[envelope.Entry]{ID: id, Payload: entry})
			}

			engine, err := resolveEngine(command.Context(), deps, globalFlags)
			if err != nil {
				return err
			}

			policy := synchronizer.ImportPolicy{Clean: clean}
			report := batch.Run(command.Context(), tasks, func(ctx context.Context, task batch.Task[envelope.Entry]) (string, error) {
				result, err := engine.Sync.ImportOne(ctx, env.Meta.Kind, task.ID, task.Payload, policy)
				if err != nil {
					return "", err
				}
				return importDetail(result), nil
			})

			writeReport(command.OutOrStdout(), report)
			return reportError(report, "import")
		},
	}

	command.Flags().BoolVar(&clean, "clean", false, "delete the existing resource tree before importing")
	command.Flags().StringVar(&selectExpr, "select", "", "jq expression filtering imported resources")
	return command
}

func readEnvelopeFile(path string) (*envelope.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("envelope file %q does not exist", path), err)
		}
		return nil, faults.NewTypedError(faults.InternalError, "failed to read envelope file", err)
	}
	return envelope.Decode(data)
}

func importDetail(result synchronizer.ImportResult) string {
	var parts []string
	if result.Renamed {
		parts = append(parts, fmt.Sprintf("renamed to %q", result.Name))
	}
	for _, warning := range result.Warnings {
		parts = append(parts, "warning: "+warning)
	}
	if result.ChildFailures != nil {
		parts = append(parts, "child failures: "+result.ChildFailures.Error())
	}
	return strings.Join(parts, "; ")
}
