package config

const (
	ContextFileEnvVar         = "TREEPORT_CONTEXTS_FILE"
	DefaultContextCatalogPath = "~/.treeport/contexts.yaml"
)

type ContextSelection struct {
	Name      string
	Overrides map[string]string
}

type ContextCatalog struct {
	Contexts   []Context `yaml:"contexts"`
	CurrentCtx string    `yaml:"current-ctx"`
}

type Context struct {
	Name          string            `yaml:"name"`
	Server        Server            `yaml:"server"`
	SnapshotStore *SnapshotStore    `yaml:"snapshot-store,omitempty"`
	SecretStore   *SecretStore      `yaml:"secret-store,omitempty"`
	Preferences   map[string]string `yaml:"preferences,omitempty"`
}

type Server struct {
	BaseURL           string  `yaml:"base-url"`
	Realm             string  `yaml:"realm"`
	RequestTimeout    string  `yaml:"request-timeout,omitempty"`
	RequestsPerSecond float64 `yaml:"requests-per-second,omitempty"`
	Auth              *Auth   `yaml:"auth,omitempty"`
	TLS               *TLS    `yaml:"tls,omitempty"`
}

// Auth selects exactly one credential source for the server.
type Auth struct {
	Token       string `yaml:"token,omitempty"`
	TokenEnv    string `yaml:"token-env,omitempty"`
	VaultSecret string `yaml:"vault-secret,omitempty"`
}

type TLS struct {
	InsecureSkipVerify bool `yaml:"insecure-skip-verify,omitempty"`
}

type SnapshotStore struct {
	Filesystem *FilesystemSnapshotStore `yaml:"filesystem,omitempty"`
	Git        *GitSnapshotStore        `yaml:"git,omitempty"`
}

type FilesystemSnapshotStore struct {
	BaseDir string `yaml:"base-dir"`
}

type GitSnapshotStore struct {
	BaseDir  string `yaml:"base-dir"`
	AutoInit *bool  `yaml:"auto-init,omitempty"`
}

func (g GitSnapshotStore) AutoInitEnabled() bool {
	if g.AutoInit == nil {
		return true
	}
	return *g.AutoInit
}

type SecretStore struct {
	File *FileSecretStore `yaml:"file,omitempty"`
}

type FileSecretStore struct {
	Path           string `yaml:"path"`
	Passphrase     string `yaml:"passphrase,omitempty"`
	PassphraseFile string `yaml:"passphrase-file,omitempty"`
}
