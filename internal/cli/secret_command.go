package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szylko/treeport/config"
	"github.com/szylko/treeport/secrets"
)

func newSecretCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "secret",
		Short: "Manage vault credentials for the current context",
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args: cobra.NoArgs,
	}

	command.AddCommand(
		newSecretSetCommand(deps, globalFlags),
		newSecretListCommand(deps, globalFlags),
		newSecretDeleteCommand(deps, globalFlags),
	)
	return command
}

func newSecretSetCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	var value string

	command := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a credential in the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			vault, err := contextVault(deps, globalFlags, command)
			if err != nil {
				return err
			}

			secretValue := value
			if secretValue == "" {
				secretValue, err = promptSecretValue(command, args[0])
				if err != nil {
					return err
				}
			}

			if err := vault.Store(command.Context(), args[0], secretValue); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(command.OutOrStdout(), "stored secret %q\n", args[0])
			return nil
		},
	}

	command.Flags().StringVar(&value, "value", "", "secret value, prompted when omitted")
	return command
}

func newSecretListCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vault credential names",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			vault, err := contextVault(deps, globalFlags, command)
			if err != nil {
				return err
			}

			names, err := vault.List(command.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				_, _ = fmt.Fprintln(command.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newSecretDeleteCommand(deps Dependencies, globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a credential from the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			vault, err := contextVault(deps, globalFlags, command)
			if err != nil {
				return err
			}
			if err := vault.Delete(command.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(command.OutOrStdout(), "deleted secret %q\n", args[0])
			return nil
		},
	}
}

func contextVault(deps Dependencies, globalFlags *GlobalFlags, command *cobra.Command) (*secrets.FileVault, error) {
	contexts, err := requireContexts(deps)
	if err != nil {
		return nil, err
	}

	cfg, err := contexts.ResolveContext(command.Context(), config.ContextSelection{Name: globalFlags.Context})
	if err != nil {
		return nil, err
	}

	return openVault(cfg.SecretStore)
}
