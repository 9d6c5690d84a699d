package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/remote"
)

const (
	vaultFormatVersion = 1
	keyLengthBytes     = 32
	nonceLengthBytes   = 12
	saltLengthBytes    = 16

	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// FileVault keeps named credentials in one encrypted file. The content key
// is derived from the passphrase with argon2id; the payload is sealed with
// AES-GCM. A missing file reads as an empty vault.
type FileVault struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

type vaultFile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func NewFileVault(path string, passphrase []byte) (*FileVault, error) {
	if path == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "vault path is required", nil)
	}
	if len(passphrase) == 0 {
		return nil, faults.NewTypedError(faults.ValidationError, "vault passphrase is required", nil)
	}
	return &FileVault{path: path, passphrase: passphrase}, nil
}

// Store writes or replaces one credential.
func (v *FileVault) Store(_ context.Context, name string, token string) error {
	if name == "" {
		return faults.NewTypedError(faults.ValidationError, "credential name is required", nil)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.readLocked()
	if err != nil {
		return err
	}
	entries[name] = token
	return v.writeLocked(entries)
}

// Get reads one credential.
func (v *FileVault) Get(_ context.Context, name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.readLocked()
	if err != nil {
		return "", err
	}
	token, ok := entries[name]
	if !ok {
		return "", faults.NewTypedError(
			faults.NotFoundError,
			fmt.Sprintf("credential %q is not stored in the vault", name),
			nil,
		)
	}
	return token, nil
}

// Delete removes one credential; deleting an absent name is an error.
func (v *FileVault) Delete(_ context.Context, name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.readLocked()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return faults.NewTypedError(
			faults.NotFoundError,
			fmt.Sprintf("credential %q is not stored in the vault", name),
			nil,
		)
	}
	delete(entries, name)
	return v.writeLocked(entries)
}

// List returns the stored credential names in lexical order.
func (v *FileVault) List(context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries, err := v.readLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Provider binds one vault entry as a remote credential provider.
func (v *FileVault) Provider(name string) remote.CredentialProvider {
	return &vaultProvider{vault: v, name: name}
}

type vaultProvider struct {
	vault *FileVault
	name  string
}

func (p *vaultProvider) AccessToken(ctx context.Context) (string, error) {
	token, err := p.vault.Get(ctx, p.name)
	if err != nil {
		if faults.IsNotFound(err) {
			return "", faults.NewTypedError(
				faults.AuthError,
				fmt.Sprintf("credential %q is missing from the vault", p.name),
				err,
			)
		}
		return "", err
	}
	return token, nil
}

func (v *FileVault) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, faults.NewTypedError(faults.InternalError, "read vault file", err)
	}

	var file vaultFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "decode vault file", err)
	}
	if file.Version != vaultFormatVersion {
		return nil, faults.NewTypedError(faults.ValidationError, "vault format version is unsupported", nil)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "vault salt is invalid", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(file.Nonce)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "vault nonce is invalid", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.Ciphertext)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "vault ciphertext is invalid", err)
	}

	aead, err := v.cipher(salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, faults.NewTypedError(faults.AuthError, "decrypt vault with the provided passphrase", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "decode decrypted vault content", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (v *FileVault) writeLocked(entries map[string]string) error {
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return faults.NewTypedError(faults.InternalError, "encode vault content", err)
	}

	salt, err := randomBytes(saltLengthBytes)
	if err != nil {
		return err
	}
	nonce, err := randomBytes(nonceLengthBytes)
	if err != nil {
		return err
	}

	aead, err := v.cipher(salt)
	if err != nil {
		return err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	encoded, err := json.Marshal(vaultFile{
		Version:    vaultFormatVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return faults.NewTypedError(faults.InternalError, "encode vault file", err)
	}

	return writeAtomicFile(v.path, encoded, 0o600)
}

func (v *FileVault) cipher(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(v.passphrase, salt, kdfTime, kdfMemory, kdfThreads, keyLengthBytes)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "initialize vault cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "initialize vault cipher mode", err)
	}
	return aead, nil
}

func randomBytes(length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "generate vault random bytes", err)
	}
	return buf, nil
}

func writeAtomicFile(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return faults.NewTypedError(faults.InternalError, "create vault directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return faults.NewTypedError(faults.InternalError, "create vault temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return faults.NewTypedError(faults.InternalError, "write vault temp file", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return faults.NewTypedError(faults.InternalError, "set vault file mode", err)
	}
	if err := tmp.Close(); err != nil {
		return faults.NewTypedError(faults.InternalError, "close vault temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return faults.NewTypedError(faults.InternalError, "replace vault file", err)
	}
	return nil
}
