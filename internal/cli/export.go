package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/szylko/treeport/batch"
	"github.com/szylko/treeport/envelope"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/resource"
)

func newExportCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	var exportAll bool
	var selectExpr string
	var outputPath string

	command := &cobra.Command{
		Use:   "export <kind> [id...]",
		Short: "Export resource trees into an envelope file",
		Example: joinExamples(
			"  treeport export service svc-1 svc-2 --output services.yaml",
			"  treeport export variable --all",
			"  treeport export service --all --select '.name | startswith(\"billing\")'",
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
			if exportAll {
				ids, err = engine.Remote.List(command.Context(), kind)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				return faults.NewTypedError(faults.ValidationError, "resource id or --all is required", nil)
			}

			var mu sync.Mutex
			entries := make(map[string]envelope.Entry, len(ids))

			report := batch.Run(command.Context(), batch.IDs(ids), func(ctx context.Context, task batch.Task[struct{}]) (string, error) {
				entry, err := engine.Sync.ExportOne(ctx, kind, task.ID)
				if err != nil {
					return "", err
				}
				mu.Lock()
				entries[task.ID] = entry
				mu.Unlock()
				return "", nil
			})

			env := envelope.New(kind, report.RunID)
			for _, task := range report.Succeeded {
				env.Add(task.ID, entries[task.ID])
			}

			if selectExpr != "" {
				env, err = envelope.Select(env, selectExpr)
				if err != nil {
					return err
				}
			}

			destination, err := writeEnvelope(command, engine, env, outputPath)
			if err != nil {
				return err
			}
			if destination != "" {
				_, _ = fmt.Fprintf(command.OutOrStdout(), "wrote %d resource(s) to %s\n", len(env.Entries), destination)
			}

			writeReport(command.OutOrStdout(), report)
			return reportError(report, "export")
		},
	}

	command.Flags().BoolVar(&exportAll, "all", false, "export every resource of the kind")
	command.Flags().StringVar(&selectExpr, "select", "", "jq expression filtering exported resources")
	command.Flags().StringVarP(&outputPath, "output", "o", "", "envelope file to write, - for stdout")
	return command
}

// writeEnvelope routes the encoded envelope to the requested file, stdout,
// or the context's snapshot store. It returns the destination it used, empty
// for stdout.
func writeEnvelope(command *cobra.Command, engine *Engine, env *envelope.Envelope, outputPath string) (string, error) {
	if outputPath == "-" {
		data, err := envelope.Encode(env)
		if err != nil {
			return "", err
		}
		_, _ = command.OutOrStdout().Write(data)
		return "", nil
	}

	if outputPath != "" {
		data, err := envelope.Encode(env)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return "", faults.NewTypedError(faults.InternalError, "failed to write envelope file", err)
		}
		return outputPath, nil
	}

	if engine.Store == nil {
		return "", faults.NewTypedError(faults.ValidationError, "no snapshot-store configured: pass --output", nil)
	}
	return engine.Store.Write(command.Context(), env)
}

func validateKind(kind string) error {
	switch kind {
	case resource.KindService, resource.KindScript, resource.KindVariable:
		return nil
	default:
		return faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("unknown resource kind %q: use service, script, or variable", kind),
			nil,
		)
	}
}
