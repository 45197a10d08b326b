// Package audit defines the hash-chained record of applied sync changes.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Event types.
const (
	EventTypeChangeApplied = "sync.change_applied"
	EventTypeChangeFailed  = "sync.change_failed"
)

// Event records the outcome of one sync change.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	ChangeID  string         `json:"change_id"`
	Document  string         `json:"document"`
	Operation string         `json:"operation"`
	EntityID  string         `json:"entity_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PrevHash  string         `json:"prev_hash,omitempty"`
	Hash      string         `json:"hash,omitempty"`
}

// CalculateHash generates a deterministic SHA256 hash of the event.
func (e *Event) CalculateHash() string {
	h := sha256.New()
	for _, s := range []string{
		e.PrevHash, e.ID, e.Timestamp.Format(time.RFC3339Nano), e.Type, e.Actor,
		e.ChangeID, e.Document, e.Operation, e.EntityID, canonicalJSON(e.Metadata),
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(m[k])
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return string(ordered)
}

// Store persists audit events.
type Store interface {
	Append(event *Event) error
	LoadAll() ([]*Event, error)
}
