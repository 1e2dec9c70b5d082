package keys

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// KeyringConfig contains configuration for the keyring.
type KeyringConfig struct {
	// Dir is the directory holding wrapped data key files.
	Dir string

	// Watch enables directory watching so externally rotated or restored
	// key files are picked up without a restart.
	Watch bool
}

// DefaultKeyringConfig returns the default keyring configuration.
func DefaultKeyringConfig() *KeyringConfig {
	return &KeyringConfig{
		Dir:   "data/keys",
		Watch: false,
	}
}

// Keyring manages per-archive data keys.
//
// Data keys are generated fresh for each archive, wrapped with the master
// key, and persisted as <keyID>.key before the caller encrypts anything
// with them. Resolve unwraps a persisted key by ID. Unwrapped keys are
// cached; the cache is dropped when the directory changes.
type Keyring struct {
	config   *KeyringConfig
	provider MasterKeyProvider
	logger   *slog.Logger

	mu      sync.RWMutex
	cache   map[string][]byte
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewKeyring creates a keyring over the configured directory.
func NewKeyring(config *KeyringConfig, provider MasterKeyProvider) (*Keyring, error) {
	if config == nil {
		config = DefaultKeyringConfig()
	}
	if provider == nil {
		return nil, NewKeyError("", "init", fmt.Errorf("master key provider is required"))
	}

	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, NewKeyError("", "init", err)
	}

	k := &Keyring{
		config:   config,
		provider: provider,
		logger:   slog.Default().With("component", "security.keyring"),
		cache:    make(map[string][]byte),
		stopCh:   make(chan struct{}),
	}

	if config.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, NewKeyError("", "init", err)
		}
		if err := watcher.Add(config.Dir); err != nil {
			_ = watcher.Close()
			return nil, NewKeyError("", "init", err)
		}
		k.watcher = watcher
		go k.watchLoop()

		k.logger.Info("keyring started with watching",
			"dir", config.Dir,
			"provider", provider.Name(),
		)
	} else {
		k.logger.Info("keyring started",
			"dir", config.Dir,
			"provider", provider.Name(),
		)
	}

	return k, nil
}

// CreateDataKey generates a fresh data key, wraps it with the master key,
// and persists the wrapped form. The plaintext key is returned along with
// its ID; the wrapped file is durably on disk before this returns.
func (k *Keyring) CreateDataKey(ctx context.Context) (string, []byte, error) {
	master, err := k.provider.MasterKey(ctx)
	if err != nil {
		return "", nil, err
	}

	dataKey, err := NewKey()
	if err != nil {
		return "", nil, err
	}

	keyID := uuid.New().String()
	wrapped, err := Seal(master, dataKey)
	if err != nil {
		return "", nil, NewKeyError(keyID, "wrap", err)
	}

	if err := os.WriteFile(k.keyPath(keyID), wrapped, 0600); err != nil {
		return "", nil, NewKeyError(keyID, "persist", err)
	}

	k.mu.Lock()
	k.cache[keyID] = dataKey
	k.mu.Unlock()

	k.logger.Debug("data key created", "key_id", keyID)

	return keyID, dataKey, nil
}

// Resolve unwraps the data key persisted under keyID.
func (k *Keyring) Resolve(ctx context.Context, keyID string) ([]byte, error) {
	if keyID == "" {
		return nil, NewKeyError("", "resolve", fmt.Errorf("key ID is empty"))
	}

	k.mu.RLock()
	if key, ok := k.cache[keyID]; ok {
		k.mu.RUnlock()
		return key, nil
	}
	k.mu.RUnlock()

	path := k.keyPath(keyID)
	wrapped, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewKeyNotFoundError(keyID)
		}
		return nil, NewKeyError(keyID, "load", err)
	}

	master, err := k.provider.MasterKey(ctx)
	if err != nil {
		return nil, err
	}

	dataKey, err := Open(master, wrapped)
	if err != nil {
		return nil, NewKeyError(keyID, "unwrap", err)
	}

	k.mu.Lock()
	k.cache[keyID] = dataKey
	k.mu.Unlock()

	return dataKey, nil
}

// Close stops the directory watcher and clears cached key material.
func (k *Keyring) Close() error {
	k.mu.Lock()
	for id := range k.cache {
		delete(k.cache, id)
	}
	k.mu.Unlock()

	if k.watcher != nil {
		close(k.stopCh)
		return k.watcher.Close()
	}
	return nil
}

// keyPath returns the wrapped key file path for a key ID. Key IDs are
// UUIDs, so the join cannot escape the keyring directory; anything with a
// separator is rejected by Resolve via the read failing inside the dir.
func (k *Keyring) keyPath(keyID string) string {
	return filepath.Join(k.config.Dir, filepath.Base(strings.TrimSpace(keyID))+".key")
}

// watchLoop drops the cache when key files change on disk.
func (k *Keyring) watchLoop() {
	for {
		select {
		case event, ok := <-k.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove {

				k.logger.Debug("key directory change detected, clearing cache",
					"file", filepath.Base(event.Name),
					"op", event.Op.String(),
				)

				k.mu.Lock()
				k.cache = make(map[string][]byte)
				k.mu.Unlock()
			}

		case err, ok := <-k.watcher.Errors:
			if !ok {
				return
			}
			k.logger.Error("keyring watcher error", "error", err)

		case <-k.stopCh:
			return
		}
	}
}
