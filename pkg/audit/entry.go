package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// genesisHash anchors the first entry of every chain.
var genesisHash = strings.Repeat("0", 64)

// Entry is one line of a category's immutable log.
type Entry struct {
	// Index is the entry's position in the chain, starting at 0.
	Index uint64 `json:"index"`

	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category"`
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"data,omitempty"`

	// PreviousHash is the previous entry's Hash, or the genesis sentinel
	// for the first entry.
	PreviousHash string `json:"previousHash"`

	// Hash is hex(HMAC-SHA256(secret, ts|eventType|data|previousHash)).
	Hash string `json:"hash"`
}

// ChainState is the persisted head of a category's chain.
type ChainState struct {
	Category string `json:"category"`

	// Index is the index the next entry will take.
	Index uint64 `json:"index"`

	LastHash     string    `json:"lastHash"`
	LastUpdate   time.Time `json:"lastUpdate"`
	TotalEntries uint64    `json:"totalEntries"`
}

// computeHash derives an entry's hash from its own fields and the
// previous hash. Data is canonicalized through json.Marshal, which emits
// object keys in sorted order, so the same logical payload always hashes
// identically whether it arrives as typed values or as a decoded log line.
// Empty maps hash as null: the log line omits an empty data field, so the
// replay sees nil where the appender may have held an allocated map.
func computeHash(secret []byte, timestamp time.Time, eventType string, data map[string]any, previousHash string) (string, error) {
	canonical := []byte("null")
	if len(data) > 0 {
		var err error
		canonical, err = json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to canonicalize event data: %w", err)
		}
	}

	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%s|%s|%s",
		timestamp.UTC().Format(time.RFC3339Nano),
		eventType,
		canonical,
		previousHash,
	)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
