package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/szylko/treeport/faults"
)

var _ ContextService = (*FileContextService)(nil)

// FileContextService keeps the context catalog in a single YAML file.
type FileContextService struct {
	contextCatalogPath string
}

func NewFileContextService(path string) *FileContextService {
	return &FileContextService{contextCatalogPath: path}
}

func (m *FileContextService) Create(_ context.Context, cfg Context) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	catalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	if findContextIndex(catalog.Contexts, cfg.Name) >= 0 {
		return validationError(fmt.Sprintf("context %q already exists", cfg.Name), nil)
	}

	catalog.Contexts = append(catalog.Contexts, cfg)
	if catalog.CurrentCtx == "" {
		catalog.CurrentCtx = cfg.Name
	}

	return m.saveCatalog(catalog)
}

func (m *FileContextService) Update(_ context.Context, cfg Context) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	catalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	idx := findContextIndex(catalog.Contexts, cfg.Name)
	if idx < 0 {
		return notFoundError(fmt.Sprintf("context %q not found", cfg.Name))
	}

	catalog.Contexts[idx] = cfg
	return m.saveCatalog(catalog)
}

func (m *FileContextService) Delete(_ context.Context, name string) error {
	catalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	idx := findContextIndex(catalog.Contexts, name)
	if idx < 0 {
		return notFoundError(fmt.Sprintf("context %q not found", name))
	}

	catalog.Contexts = append(catalog.Contexts[:idx], catalog.Contexts[idx+1:]...)

	if catalog.CurrentCtx == name {
		if len(catalog.Contexts) == 0 {
			catalog.CurrentCtx = ""
		} else {
			catalog.CurrentCtx = catalog.Contexts[0].Name
		}
	}

	return m.saveCatalog(catalog)
}

func (m *FileContextService) List(_ context.Context) ([]Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return nil, err
	}

	contexts := make([]Context, len(catalog.Contexts))
	copy(contexts, catalog.Contexts)
	return contexts, nil
}

func (m *FileContextService) SetCurrent(_ context.Context, name string) error {
	catalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	if findContextIndex(catalog.Contexts, name) < 0 {
		return notFoundError(fmt.Sprintf("context %q not found", name))
	}

	catalog.CurrentCtx = name
	return m.saveCatalog(catalog)
}

func (m *FileContextService) GetCurrent(_ context.Context) (Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return Context{}, err
	}
	if catalog.CurrentCtx == "" {
		return Context{}, notFoundError("current context not set")
	}

	idx := findContextIndex(catalog.Contexts, catalog.CurrentCtx)
	if idx < 0 {
		return Context{}, notFoundError(fmt.Sprintf("current context %q not found", catalog.CurrentCtx))
	}

	return catalog.Contexts[idx], nil
}

func (m *FileContextService) ResolveContext(_ context.Context, selection ContextSelection) (Context, error) {
	catalog, err := m.loadCatalog()
	if err != nil {
		return Context{}, err
	}

	effectiveName := selection.Name
	if effectiveName == "" {
		effectiveName = catalog.CurrentCtx
	}
	if effectiveName == "" {
		return Context{}, notFoundError("current context not set")
	}

	idx := findContextIndex(catalog.Contexts, effectiveName)
	if idx < 0 {
		return Context{}, notFoundError(fmt.Sprintf("context %q not found", effectiveName))
	}

	resolved, err := applyOverrides(catalog.Contexts[idx], selection.Overrides)
	if err != nil {
		return Context{}, err
	}
	if err := validateConfig(resolved); err != nil {
		return Context{}, err
	}

	return resolved, nil
}

func (m *FileContextService) Validate(_ context.Context, cfg Context) error {
	return validateConfig(cfg)
}

func (m *FileContextService) saveCatalog(catalog ContextCatalog) error {
	if err := validateCatalog(catalog); err != nil {
		return err
	}

	resolvedPath, err := resolveCatalogPath(m.contextCatalogPath)
	if err != nil {
		return err
	}

	encoded, err := yaml.Marshal(catalog)
	if err != nil {
		return internalError("failed to encode context catalog", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolvedPath), 0o755); err != nil {
		return internalError("failed to create context config directory", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(resolvedPath), ".treeport-contexts-*")
	if err != nil {
		return internalError("failed to create temporary context catalog file", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(encoded); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return internalError("failed to write context catalog", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return internalError("failed to set context catalog permissions", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to finalize context catalog", err)
	}

	if err := os.Rename(tempPath, resolvedPath); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to replace context catalog", err)
	}

	return nil
}

func (m *FileContextService) loadCatalog() (ContextCatalog, error) {
	resolvedPath, err := resolveCatalogPath(m.contextCatalogPath)
	if err != nil {
		return ContextCatalog{}, err
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ContextCatalog{}, nil
		}
		return ContextCatalog{}, internalError("failed to read context catalog", err)
	}

	catalog, err := decodeCatalog(data)
	if err != nil {
		return ContextCatalog{}, err
	}

	if err := validateCatalog(catalog); err != nil {
		return ContextCatalog{}, err
	}

	return catalog, nil
}

func decodeCatalog(data []byte) (ContextCatalog, error) {
	var catalog ContextCatalog

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		return ContextCatalog{}, validationError("invalid context catalog yaml", err)
	}

	return catalog, nil
}

func resolveCatalogPath(explicitPath string) (string, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv(ContextFileEnvVar)
	}
	if path == "" {
		path = DefaultContextCatalogPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", internalError("failed to resolve user home directory", err)
	}

	if path == "~" {
		path = homeDir
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == "." {
		return "", validationError("context catalog path is invalid", errors.New("resolved to current directory"))
	}
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(homeDir, cleanPath)
	}

	return cleanPath, nil
}

func findContextIndex(contexts []Context, name string) int {
	for idx, item := range contexts {
		if item.Name == name {
			return idx
		}
	}
	return -1
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func notFoundError(message string) error {
	return faults.NewTypedError(faults.NotFoundError, message, nil)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
