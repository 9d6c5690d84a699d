// Package secrets supplies the bearer credentials remote services are
// constructed with. Credentials are always passed in explicitly; nothing
// here reads ambient process-wide session state.
package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/remote"
)

var (
	_ remote.CredentialProvider = StaticTokenProvider("")
	_ remote.CredentialProvider = (*EnvTokenProvider)(nil)
)

// StaticTokenProvider returns a fixed token, mainly for tests and wiring
// code that already resolved the credential.
type StaticTokenProvider string

func (p StaticTokenProvider) AccessToken(context.Context) (string, error) {
	if p == "" {
		return "", faults.NewTypedError(faults.AuthError, "static credential is empty", nil)
	}
	return string(p), nil
}

// EnvTokenProvider reads the token from an environment variable on every
// call, so a rotated value is picked up without restarting.
type EnvTokenProvider struct {
	Variable string
}

func (p *EnvTokenProvider) AccessToken(context.Context) (string, error) {
	if p == nil || p.Variable == "" {
		return "", faults.NewTypedError(faults.AuthError, "credential environment variable is not configured", nil)
	}
	token := os.Getenv(p.Variable)
	if token == "" {
		return "", faults.NewTypedError(
			faults.AuthError,
			fmt.Sprintf("environment variable %s is empty", p.Variable),
			nil,
		)
	}
	return token, nil
}
