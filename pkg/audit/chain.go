package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config contains configuration for the audit chain.
type Config struct {
	// Dir is the directory holding per-category log and state files.
	Dir string `yaml:"dir"`

	// Categories lists the categories that get chain entries. An empty
	// list chains every category.
	Categories []string `yaml:"categories"`
}

// DefaultConfig returns the default chain configuration.
func DefaultConfig() *Config {
	return &Config{
		Dir:        "data/audit",
		Categories: nil,
	}
}

// Chain appends hash-linked entries to per-category immutable logs.
type Chain struct {
	config *Config
	secret []byte
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]*ChainState
	locks  map[string]*sync.Mutex
}

// NewChain creates an audit chain writing under the configured directory.
// The secret keys every entry hash; verification requires the same secret.
func NewChain(config *Config, secret []byte) (*Chain, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(secret) == 0 {
		return nil, NewChainError("", "init", fmt.Errorf("chain secret is required"))
	}
	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, NewChainError("", "init", err)
	}

	return &Chain{
		config: config,
		secret: secret,
		logger: slog.Default().With("component", "audit.chain"),
		states: make(map[string]*ChainState),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Append adds an entry to the category's chain and returns it.
//
// Data must round-trip through JSON: the hash is recomputed from the
// decoded log line during verification. Categories not listed in the
// configuration are logged at debug level and return a nil entry.
func (c *Chain) Append(category, eventType string, data map[string]any) (*Entry, error) {
	if category == "" {
		return nil, NewChainError(category, "append", fmt.Errorf("category is required"))
	}

	if !c.chained(category) {
		c.logger.Debug("event outside immutable categories",
			"category", category,
			"event_type", eventType,
		)
		return nil, nil
	}

	lock := c.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	state, err := c.loadState(category)
	if err != nil {
		return nil, err
	}

	previousHash := state.LastHash
	if previousHash == "" {
		previousHash = genesisHash
	}

	now := time.Now().UTC()
	entry := &Entry{
		Index:        state.Index,
		Timestamp:    now,
		Category:     category,
		EventType:    eventType,
		Data:         data,
		PreviousHash: previousHash,
	}

	entry.Hash, err = computeHash(c.secret, entry.Timestamp, entry.EventType, entry.Data, entry.PreviousHash)
	if err != nil {
		return nil, NewChainError(category, "append", err)
	}

	if err := c.appendLine(category, entry); err != nil {
		return nil, err
	}

	state.Index++
	state.LastHash = entry.Hash
	state.LastUpdate = now
	state.TotalEntries++

	if err := c.persistState(state); err != nil {
		// The log line is already durable; the state file rebuilds from
		// it on the next load if this write is lost.
		c.logger.Error("failed to persist chain state",
			"category", category,
			"error", err,
		)
	}

	return entry, nil
}

// State returns the chain head for a category.
func (c *Chain) State(category string) (*ChainState, error) {
	lock := c.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	state, err := c.loadState(category)
	if err != nil {
		return nil, err
	}
	stateCopy := *state
	return &stateCopy, nil
}

// Categories returns the configured immutable categories. Empty means all.
func (c *Chain) Categories() []string {
	return append([]string(nil), c.config.Categories...)
}

// chained reports whether a category gets chain entries.
func (c *Chain) chained(category string) bool {
	if len(c.config.Categories) == 0 {
		return true
	}
	for _, configured := range c.config.Categories {
		if configured == category {
			return true
		}
	}
	return false
}

func (c *Chain) categoryLock(category string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[category]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[category] = lock
	}
	return lock
}

// loadState returns the cached state for a category, reading the state
// file on first use. Caller holds the category lock.
func (c *Chain) loadState(category string) (*ChainState, error) {
	c.mu.Lock()
	state, ok := c.states[category]
	c.mu.Unlock()
	if ok {
		return state, nil
	}

	state = &ChainState{Category: category}
	data, err := os.ReadFile(c.statePath(category))
	if err == nil {
		if err := json.Unmarshal(data, state); err != nil {
			return nil, NewChainError(category, "load state", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, NewChainError(category, "load state", err)
	}

	if err := c.reconcileFromLog(category, state); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.states[category] = state
	c.mu.Unlock()
	return state, nil
}

// reconcileFromLog advances a stale state to the log's actual head. The
// log line is written before the state file, so a crash between the two
// leaves the state one entry behind; trusting it verbatim would fork the
// chain.
func (c *Chain) reconcileFromLog(category string, state *ChainState) error {
	f, err := os.Open(c.logPath(category))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return NewChainError(category, "load state", err)
	}
	defer f.Close()

	var last *Entry
	var total uint64
	scanner := newLogScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Tampered or truncated lines surface in Verify; head
			// recovery only follows what still parses.
			continue
		}
		entryCopy := entry
		last = &entryCopy
		total++
	}
	if err := scanner.Err(); err != nil {
		return NewChainError(category, "load state", err)
	}

	if last != nil && last.Index+1 > state.Index {
		c.logger.Warn("chain state behind log, recovering head",
			"category", category,
			"state_index", state.Index,
			"log_index", last.Index,
		)
		state.Index = last.Index + 1
		state.LastHash = last.Hash
		state.LastUpdate = last.Timestamp
		state.TotalEntries = total
	}
	return nil
}

// appendLine writes one NDJSON entry to the category's immutable log.
func (c *Chain) appendLine(category string, entry *Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return NewChainError(category, "append", err)
	}

	f, err := os.OpenFile(c.logPath(category), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return NewChainError(category, "append", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return NewChainError(category, "append", err)
	}
	return nil
}

// persistState writes the state file via temp and rename.
func (c *Chain) persistState(state *ChainState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	path := c.statePath(state.Category)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Chain) logPath(category string) string {
	return filepath.Join(c.config.Dir, category+"-immutable.log")
}

func (c *Chain) statePath(category string) string {
	return filepath.Join(c.config.Dir, category+"-chain.json")
}
