package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func validateCatalog(catalog ContextCatalog) error {
	if len(catalog.Contexts) == 0 {
		if catalog.CurrentCtx != "" {
			return validationError("current-ctx must be empty when contexts list is empty", nil)
		}
		return nil
	}

	seen := map[string]struct{}{}
	for _, item := range catalog.Contexts {
		if item.Name == "" {
			return validationError("context name must not be empty", nil)
		}
		if _, exists := seen[item.Name]; exists {
			return validationError(fmt.Sprintf("duplicate context name %q", item.Name), nil)
		}
		seen[item.Name] = struct{}{}

		if err := validateConfig(item); err != nil {
			return err
		}
	}

	if catalog.CurrentCtx == "" {
		return validationError("current-ctx must be set when contexts are defined", nil)
	}
	if _, exists := seen[catalog.CurrentCtx]; !exists {
		return validationError(fmt.Sprintf("current-ctx %q does not match any context", catalog.CurrentCtx), nil)
	}

	return nil
}

func validateConfig(cfg Context) error {
	if cfg.Name == "" {
		return validationError("context name must not be empty", nil)
	}

	if err := validateServer(cfg.Server); err != nil {
		return err
	}
	if cfg.Server.Auth != nil && cfg.Server.Auth.VaultSecret != "" {
		if cfg.SecretStore == nil || cfg.SecretStore.File == nil {
			return validationError("server.auth.vault-secret requires a secret-store", nil)
		}
	}

	if err := validateSnapshotStore(cfg.SnapshotStore); err != nil {
		return err
	}

	return validateSecretStore(cfg.SecretStore)
}

func validateServer(server Server) error {
	if server.BaseURL == "" {
		return validationError("server.base-url must be set", nil)
	}
	parsed, err := url.Parse(server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return validationError(fmt.Sprintf("server.base-url %q is not a valid URL", server.BaseURL), err)
	}

	if server.Realm == "" {
		return validationError("server.realm must be set", nil)
	}

	if server.RequestTimeout != "" {
		if _, err := time.ParseDuration(server.RequestTimeout); err != nil {
			return validationError(fmt.Sprintf("server.request-timeout %q is not a valid duration", server.RequestTimeout), err)
		}
	}
	if server.RequestsPerSecond < 0 {
		return validationError("server.requests-per-second must not be negative", nil)
	}

	return validateAuth(server.Auth)
}

func validateAuth(auth *Auth) error {
	if auth == nil {
		return nil
	}

	set := 0
	for _, value := range []string{auth.Token, auth.TokenEnv, auth.VaultSecret} {
		if value != "" {
			set++
		}
	}
	if set == 0 {
		return validationError("server.auth must set one of token, token-env, vault-secret", nil)
	}
	if set > 1 {
		return validationError("server.auth must set exactly one credential source", nil)
	}
	return nil
}

func validateSnapshotStore(store *SnapshotStore) error {
	if store == nil {
		return nil
	}

	switch {
	case store.Filesystem != nil && store.Git != nil:
		return validationError("snapshot-store must set either filesystem or git, not both", nil)
	case store.Filesystem != nil:
		if store.Filesystem.BaseDir == "" {
			return validationError("snapshot-store.filesystem.base-dir must be set", nil)
		}
	case store.Git != nil:
		if store.Git.BaseDir == "" {
			return validationError("snapshot-store.git.base-dir must be set", nil)
		}
	default:
		return validationError("snapshot-store must set filesystem or git", nil)
	}

	return nil
}

func validateSecretStore(store *SecretStore) error {
	if store == nil {
		return nil
	}
	if store.File == nil {
		return validationError("secret-store must set file", nil)
	}
	if store.File.Path == "" {
		return validationError("secret-store.file.path must be set", nil)
	}
	if store.File.Passphrase != "" && store.File.PassphraseFile != "" {
		return validationError("secret-store.file must set passphrase or passphrase-file, not both", nil)
	}
	return nil
}

// applyOverrides mutates a copy of the context with CLI-provided values.
func applyOverrides(cfg Context, overrides map[string]string) (Context, error) {
	for key, value := range overrides {
		switch key {
		case "server.base-url":
			cfg.Server.BaseURL = value
		case "server.realm":
			cfg.Server.Realm = value
		case "server.request-timeout":
			cfg.Server.RequestTimeout = value
		case "server.requests-per-second":
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return Context{}, validationError(fmt.Sprintf("override %q is not a number", key), err)
			}
			cfg.Server.RequestsPerSecond = parsed
		case "server.auth.token-env":
			cfg.Server.Auth = &Auth{TokenEnv: value}
		default:
			return Context{}, validationError(fmt.Sprintf("unknown override key %q", key), nil)
		}
	}
	return cfg, nil
}
