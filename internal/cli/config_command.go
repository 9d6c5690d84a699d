package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/szylko/treeport/config"
)

func newConfigCommand(deps Dependencies) *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Manage context configurations",
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args: cobra.NoArgs,
	}

	command.AddCommand(
		newConfigListCommand(deps),
		newConfigShowCommand(deps),
		newConfigUseCommand(deps),
		newConfigDeleteCommand(deps),
	)
	return command
}

func newConfigListCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured contexts",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := requireContexts(deps)
			if err != nil {
				return err
			}

			items, err := contexts.List(command.Context())
			if err != nil {
				return err
			}

			currentName := ""
			if current, err := contexts.GetCurrent(command.Context()); err == nil {
				currentName = current.Name
			}

			table := tabwriter.NewWriter(command.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(table, "CURRENT\tNAME\tSERVER\tREALM")
			for _, item := range items {
				marker := ""
				if item.Name == currentName {
					marker = "*"
				}
				_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", marker, item.Name, item.Server.BaseURL, item.Server.Realm)
			}
			return table.Flush()
		},
	}
}

func newConfigShowCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show one context as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := requireContexts(deps)
			if err != nil {
				return err
			}

			selection := config.ContextSelection{}
			if len(args) == 1 {
				selection.Name = args[0]
			}
			cfg, err := contexts.ResolveContext(command.Context(), selection)
			if err != nil {
				return err
			}

			encoded, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, _ = command.OutOrStdout().Write(encoded)
			return nil
		},
	}
}

func newConfigUseCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := requireContexts(deps)
			if err != nil {
				return err
			}
			if err := contexts.SetCurrent(command.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(command.OutOrStdout(), "switched to context %q\n", args[0])
			return nil
		},
	}
}

func newConfigDeleteCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := requireContexts(deps)
			if err != nil {
				return err
			}
			if err := contexts.Delete(command.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(command.OutOrStdout(), "deleted context %q\n", args[0])
			return nil
		},
	}
}
