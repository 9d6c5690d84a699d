package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/szylko/treeport/collision"
	"github.com/szylko/treeport/config"
	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/managedserver"
	"github.com/szylko/treeport/remote"
	"github.com/szylko/treeport/secrets"
	"github.com/szylko/treeport/snapshotstore"
	"github.com/szylko/treeport/synchronizer"
)

const vaultPassphraseEnvVar = "TREEPORT_VAULT_PASSPHRASE"

// buildEngine is the default EngineFactory. It wires the HTTP backend,
// credential source, and optional snapshot store from one resolved context.
func buildEngine(cfg config.Context, flags *GlobalFlags) (*Engine, error) {
	logger, err := newLogger(flags)
	if err != nil {
		return nil, err
	}

	credentials, err := credentialProvider(cfg)
	if err != nil {
		return nil, err
	}

	serviceConfig := managedserver.HTTPResourceServiceConfig{
		BaseURL:           cfg.Server.BaseURL,
		Realm:             cfg.Server.Realm,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	}
	if cfg.Server.RequestTimeout != "" {
		timeout, err := time.ParseDuration(cfg.Server.RequestTimeout)
		if err != nil {
			return nil, faults.NewTypedError(faults.ValidationError, "invalid server.request-timeout", err)
		}
		serviceConfig.RequestTimeout = timeout
	}
	if cfg.Server.TLS != nil {
		serviceConfig.InsecureSkipTLSVerify = cfg.Server.TLS.InsecureSkipVerify
	}

	service, err := managedserver.NewHTTPResourceService(serviceConfig, credentials)
	if err != nil {
		return nil, err
	}

	store, err := buildSnapshotStore(cfg.SnapshotStore)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Remote: service,
		Sync:   synchronizer.NewDefaultSynchronizer(service, collision.NewRegistry(), logger),
		Store:  store,
	}, nil
}

func newLogger(flags *GlobalFlags) (*zap.Logger, error) {
	if flags == nil || !flags.Verbose {
		return zap.NewNop(), nil
	}

	loggerConfig := zap.NewDevelopmentConfig()
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "failed to build logger", err)
	}
	return logger, nil
}

func credentialProvider(cfg config.Context) (remote.CredentialProvider, error) {
	auth := cfg.Server.Auth
	if auth == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "server.auth must be configured for this command", nil)
	}

	switch {
	case auth.Token != "":
		return secrets.StaticTokenProvider(auth.Token), nil
	case auth.TokenEnv != "":
		return &secrets.EnvTokenProvider{Variable: auth.TokenEnv}, nil
	case auth.VaultSecret != "":
		vault, err := openVault(cfg.SecretStore)
		if err != nil {
			return nil, err
		}
		return vault.Provider(auth.VaultSecret), nil
	default:
		return nil, faults.NewTypedError(faults.ValidationError, "server.auth must set a credential source", nil)
	}
}

func openVault(store *config.SecretStore) (*secrets.FileVault, error) {
	if store == nil || store.File == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "secret-store is not configured", nil)
	}

	passphrase, err := vaultPassphrase(store.File)
	if err != nil {
		return nil, err
	}
	return secrets.NewFileVault(store.File.Path, passphrase)
}

func vaultPassphrase(store *config.FileSecretStore) ([]byte, error) {
	if store.Passphrase != "" {
		return []byte(store.Passphrase), nil
	}

	if store.PassphraseFile != "" {
		data, err := os.ReadFile(store.PassphraseFile)
		if err != nil {
			return nil, faults.NewTypedError(faults.AuthError, "failed to read vault passphrase file", err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}

	if fromEnv := os.Getenv(vaultPassphraseEnvVar); fromEnv != "" {
		return []byte(fromEnv), nil
	}

	return promptVaultPassphrase()
}

func promptVaultPassphrase() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, faults.NewTypedError(
			faults.AuthError,
			fmt.Sprintf("vault passphrase is required: set %s or configure passphrase-file", vaultPassphraseEnvVar),
			nil,
		)
	}

	_, _ = fmt.Fprint(os.Stderr, "Vault passphrase: ")
	passphrase, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, faults.NewTypedError(faults.AuthError, "failed to read vault passphrase", err)
	}
	return passphrase, nil
}

func buildSnapshotStore(store *config.SnapshotStore) (snapshotstore.Store, error) {
	if store == nil {
		return nil, nil
	}

	switch {
	case store.Filesystem != nil:
		return snapshotstore.NewFilesystemStore(store.Filesystem.BaseDir)
	case store.Git != nil:
		gitStore, err := snapshotstore.NewGitStore(store.Git.BaseDir)
		if err != nil {
			return nil, err
		}
		if store.Git.AutoInitEnabled() {
			if err := gitStore.Init(context.Background()); err != nil {
				return nil, err
			}
		}
		return gitStore, nil
	default:
		return nil, faults.NewTypedError(faults.ValidationError, "snapshot-store must set filesystem or git", nil)
	}
}
