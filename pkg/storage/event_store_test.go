package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/domain/audit"
)

func TestFileEventStore_AppendAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), StateDir)
	store, err := NewFileEventStore(dir)
	if err != nil {
		t.Fatalf("NewFileEventStore failed: %v", err)
	}

	for _, id := range []string{"c1", "c2"} {
		e := &audit.Event{Type: audit.EventTypeChangeApplied, Actor: "alice", ChangeID: id, Document: "design.md", Operation: "insert"}
		if err := store.Append(e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(loaded))
	}
	if loaded[0].PrevHash != "" {
		t.Error("first event should have an empty prev_hash")
	}
	if loaded[1].PrevHash != loaded[0].Hash {
		t.Error("second event should chain to the first")
	}
	if loaded[0].ID == "" || loaded[0].Timestamp.IsZero() {
		t.Error("id and timestamp should be filled in")
	}

	violations, err := store.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) != 0 {
		t.Errorf("unexpected violations: %v", violations)
	}
}

func TestFileEventStore_ResumesChain(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewFileEventStore(dir)
	if err := first.Append(&audit.Event{Type: audit.EventTypeChangeApplied, ChangeID: "c1"}); err != nil {
		t.Fatal(err)
	}

	second, err := NewFileEventStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Append(&audit.Event{Type: audit.EventTypeChangeFailed, ChangeID: "c2"}); err != nil {
		t.Fatal(err)
	}
	violations, _ := second.VerifyIntegrity()
	if len(violations) != 0 {
		t.Errorf("reopened store broke the chain: %v", violations)
	}
}

func TestFileEventStore_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileEventStore(dir)
	_ = store.Append(&audit.Event{Type: audit.EventTypeChangeApplied, ChangeID: "c1", Document: "design.md"})
	_ = store.Append(&audit.Event{Type: audit.EventTypeChangeApplied, ChangeID: "c2", Document: "design.md"})

	path := filepath.Join(dir, EventsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var e audit.Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatal(err)
	}
	e.Document = "requirements.md"
	tampered, _ := json.Marshal(e)
	lines[0] = string(tampered)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	violations, err := store.VerifyIntegrity()
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) != 1 || !strings.Contains(violations[0], "hash mismatch") {
		t.Errorf("expected one hash mismatch, got %v", violations)
	}
}

func TestFileEventStore_EmptyStore(t *testing.T) {
	store, err := NewFileEventStore(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	last, err := store.GetLastEvent()
	if err != nil || last != nil {
		t.Errorf("GetLastEvent on empty store = %v, %v", last, err)
	}
}
