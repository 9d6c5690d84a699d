package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/szylko/treeport/faults"
)

func confirmDeletion(command *cobra.Command, kind string, count int) (bool, error) {
	if !isInteractiveTerminal(command) {
		return false, faults.NewTypedError(
			faults.ValidationError,
			"confirmation requires an interactive terminal: pass --force",
			nil,
		)
	}

	confirmed := false
	field := huh.NewConfirm().
		Title(fmt.Sprintf("Delete %d %s resource(s) and their children?", count, kind)).
		Value(&confirmed)

	if err := runInteractiveField(command, field); err != nil {
		return false, err
	}
	return confirmed, nil
}

func promptSecretValue(command *cobra.Command, name string) (string, error) {
	if !isInteractiveTerminal(command) {
		return "", faults.NewTypedError(faults.ValidationError, "interactive terminal is required", nil)
	}

	value := ""
	field := huh.NewInput().
		Title(fmt.Sprintf("Value for %q", name)).
		EchoMode(huh.EchoModePassword).
		Validate(huh.ValidateNotEmpty()).
		Value(&value)

	if err := runInteractiveField(command, field); err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", faults.NewTypedError(faults.ValidationError, "value is required", nil)
	}
	return value, nil
}

func runInteractiveField(command *cobra.Command, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(command.InOrStdin()).
		WithOutput(command.OutOrStdout()).
		WithShowHelp(false)

	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return faults.NewTypedError(faults.ValidationError, "interactive prompt interrupted", nil)
	}
	return err
}

func isInteractiveTerminal(command *cobra.Command) bool {
	inInfo, ok := fileInfo(command.InOrStdin())
	if !ok {
		return false
	}
	outInfo, ok := fileInfo(command.OutOrStdout())
	if !ok {
		return false
	}
	return (inInfo.Mode()&os.ModeCharDevice) != 0 && (outInfo.Mode()&os.ModeCharDevice) != 0
}

func fileInfo(stream any) (os.FileInfo, bool) {
	file, ok := stream.(*os.File)
	if !ok {
		return nil, false
	}
	info, err := file.Stat()
	if err != nil {
		return nil, false
	}
	return info, true
}

func joinExamples(examples ...string) string {
	return strings.Join(examples, "\n")
}
