// Package cli wires the treeport commands around one resolved context:
// export, import, and delete move resource trees, the remaining commands
// manage contexts and vault credentials.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand(deps Dependencies) *cobra.Command {
	var globalFlags GlobalFlags

	root := &cobra.Command{
		Use:   "treeport",
		Short: "Move configuration resource trees between backends",
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&globalFlags.Context, "context", "c", "", "context name to use instead of the current one")
	root.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")

	root.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "other", Title: "Other Commands:"},
	)

	syncCommands := []*cobra.Command{
		newExportCommand(deps, &globalFlags),
		newImportCommand(deps, &globalFlags),
		newDeleteCommand(deps, &globalFlags),
		newListCommand(deps, &globalFlags),
	}
	for _, command := range syncCommands {
		command.GroupID = "sync"
		root.AddCommand(command)
	}

	otherCommands := []*cobra.Command{
		newConfigCommand(deps),
		newSecretCommand(deps, &globalFlags),
		newVersionCommand(),
	}
	for _, command := range otherCommands {
		command.GroupID = "other"
		root.AddCommand(command)
	}

	return root
}
