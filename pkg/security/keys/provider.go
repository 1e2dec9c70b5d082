package keys

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"crypto/rand"
)

// DefaultMasterKeyEnv is the environment variable EnvProvider reads when
// no variable name is configured.
const DefaultMasterKeyEnv = "AMBER_MASTER_KEY"

// MasterKeyProvider supplies the master key that wraps data keys.
type MasterKeyProvider interface {
	// MasterKey returns the 32-byte master key.
	MasterKey(ctx context.Context) ([]byte, error)

	// Name identifies the provider ("env", "file").
	Name() string
}

// EnvProvider reads a base64-encoded master key from an environment variable.
type EnvProvider struct {
	// Var is the environment variable name. Default: AMBER_MASTER_KEY.
	Var string
}

// NewEnvProvider creates an environment-based master key provider.
func NewEnvProvider(varName string) *EnvProvider {
	if varName == "" {
		varName = DefaultMasterKeyEnv
	}
	return &EnvProvider{Var: varName}
}

// MasterKey decodes the key from the environment.
func (p *EnvProvider) MasterKey(ctx context.Context) ([]byte, error) {
	value := os.Getenv(p.Var)
	if value == "" {
		return nil, NewKeyError("", "load",
			fmt.Errorf("environment variable %s is not set", p.Var))
	}

	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, NewKeyError("", "load",
			fmt.Errorf("%s is not valid base64: %w", p.Var, err))
	}
	if len(key) != KeySize {
		return nil, NewKeyError("", "load",
			fmt.Errorf("%s must decode to %d bytes, got %d", p.Var, KeySize, len(key)))
	}

	return key, nil
}

// Name returns the provider name.
func (p *EnvProvider) Name() string {
	return "env"
}

// FileProvider reads a raw 32-byte master key from a file.
//
// File permissions must be 0600 or 0400. With GenerateIfMissing set, a
// missing key file is created with fresh random material at 0400, so a
// first boot on an empty data directory is self-initializing.
type FileProvider struct {
	Path              string
	GenerateIfMissing bool
}

// NewFileProvider creates a file-based master key provider.
func NewFileProvider(path string, generateIfMissing bool) *FileProvider {
	return &FileProvider{
		Path:              path,
		GenerateIfMissing: generateIfMissing,
	}
}

// MasterKey reads (or on first use creates) the key file.
func (p *FileProvider) MasterKey(ctx context.Context) ([]byte, error) {
	return LoadOrGenerateKeyFile(p.Path, p.GenerateIfMissing)
}

// Name returns the provider name.
func (p *FileProvider) Name() string {
	return "file"
}

// LoadOrGenerateKeyFile loads a raw 32-byte key from path. When generate is
// set and the file does not exist, a fresh key is written at mode 0400 and
// returned. Keys with permissive file modes are rejected.
func LoadOrGenerateKeyFile(path string, generate bool) ([]byte, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if !generate {
			return nil, NewKeyError("", "load",
				fmt.Errorf("key file not found: %s", path))
		}

		key := make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, NewKeyError("", "generate", err)
		}
		if err := os.WriteFile(path, key, 0400); err != nil {
			return nil, NewKeyError("", "generate", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, NewKeyError("", "load", err)
	}

	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return nil, NewKeyError("", "load",
			fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, mode))
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, NewKeyError("", "load", err)
	}
	if len(key) != KeySize {
		return nil, NewKeyError("", "load",
			fmt.Errorf("key file %s must hold %d bytes, got %d", path, KeySize, len(key)))
	}

	return key, nil
}
