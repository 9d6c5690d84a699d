package secrets

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/szylko/treeport/faults"
)

func newTestVault(t *testing.T) *FileVault {
	t.Helper()
	vault, err := NewFileVault(filepath.Join(t.TempDir(), "vault.json"), []byte("passphrase"))
	if err != nil {
		t.Fatalf("NewFileVault returned error: %v", err)
	}
	return vault
}

func TestFileVaultStoreAndGet(t *testing.T) {
	t.Parallel()

	vault := newTestVault(t)
	ctx := context.Background()

	if err := vault.Store(ctx, "staging", "token-1"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if err := vault.Store(ctx, "prod", "token-2"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	token, err := vault.Get(ctx, "staging")
	if err != nil || token != "token-1" {
		t.Fatalf("Get = %q, %v", token, err)
	}

	names, err := vault.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"prod", "staging"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestFileVaultMissingFileReadsEmpty(t *testing.T) {
	t.Parallel()

	vault := newTestVault(t)
	names, err := vault.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty vault, got %v", names)
	}

	if _, err := vault.Get(context.Background(), "ghost"); !faults.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestFileVaultContentIsEncryptedAtRest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vault.json")
	vault, err := NewFileVault(path, []byte("passphrase"))
	if err != nil {
		t.Fatalf("NewFileVault returned error: %v", err)
	}
	if err := vault.Store(context.Background(), "staging", "super-secret-token"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vault file: %v", err)
	}
	if len(raw) == 0 || strings.Contains(string(raw), "super-secret-token") || strings.Contains(string(raw), "staging") {
		t.Fatalf("token stored in plaintext: %s", raw)
	}
}

func TestFileVaultWrongPassphrase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vault.json")
	vault, err := NewFileVault(path, []byte("passphrase"))
	if err != nil {
		t.Fatalf("NewFileVault returned error: %v", err)
	}
	if err := vault.Store(context.Background(), "staging", "token"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	other, err := NewFileVault(path, []byte("wrong"))
	if err != nil {
		t.Fatalf("NewFileVault returned error: %v", err)
	}
	if _, err := other.Get(context.Background(), "staging"); !faults.IsCategory(err, faults.AuthError) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFileVaultDelete(t *testing.T) {
	t.Parallel()

	vault := newTestVault(t)
	ctx := context.Background()
	if err := vault.Store(ctx, "staging", "token"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if err := vault.Delete(ctx, "staging"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := vault.Delete(ctx, "staging"); !faults.IsNotFound(err) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}

func TestVaultBoundProvider(t *testing.T) {
	t.Parallel()

	vault := newTestVault(t)
	ctx := context.Background()
	if err := vault.Store(ctx, "staging", "token-1"); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	token, err := vault.Provider("staging").AccessToken(ctx)
	if err != nil || token != "token-1" {
		t.Fatalf("AccessToken = %q, %v", token, err)
	}

	if _, err := vault.Provider("ghost").AccessToken(ctx); !faults.IsCategory(err, faults.AuthError) {
		t.Fatalf("expected auth error for missing credential, got %v", err)
	}
}

func TestEnvTokenProvider(t *testing.T) {
	provider := &EnvTokenProvider{Variable: "TREEPORT_TEST_TOKEN"}
	t.Setenv("TREEPORT_TEST_TOKEN", "env-token")

	token, err := provider.AccessToken(context.Background())
	if err != nil || token != "env-token" {
		t.Fatalf("AccessToken = %q, %v", token, err)
	}

	t.Setenv("TREEPORT_TEST_TOKEN", "")
	if _, err := provider.AccessToken(context.Background()); !faults.IsCategory(err, faults.AuthError) {
		t.Fatalf("expected auth error for empty variable, got %v", err)
	}
}

func TestStaticTokenProvider(t *testing.T) {
	t.Parallel()

	token, err := StaticTokenProvider("abc").AccessToken(context.Background())
	if err != nil || token != "abc" {
		t.Fatalf("AccessToken = %q, %v", token, err)
	}
	if _, err := StaticTokenProvider("").AccessToken(context.Background()); !faults.IsCategory(err, faults.AuthError) {
		t.Fatalf("expected auth error for empty static credential, got %v", err)
	}
}
