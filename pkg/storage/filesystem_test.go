package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystemRepository_ResolvePath(t *testing.T) {
	root := t.TempDir()
	repo := NewFilesystemRepository(root, "specs")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain document", "design.md", false},
		{"nested document", "api/api-spec.md", false},
		{"empty", "", true},
		{"traversal", "../secrets.md", true},
		{"nested traversal", "api/../../x.md", true},
		{"spec dir itself", ".", true},
		{"absolute", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ResolvePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolvePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && filepath.Dir(got) != filepath.Join(root, "specs") && filepath.Dir(filepath.Dir(got)) != filepath.Join(root, "specs") {
				t.Errorf("ResolvePath(%q) = %s escapes the spec dir", tt.input, got)
			}
		})
	}
}

func TestFilesystemRepository_ReadWrite(t *testing.T) {
	root := t.TempDir()
	repo := NewFilesystemRepository(root, "specs")
	ctx := context.Background()

	if _, err := repo.ReadDocument(ctx, "design.md"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if repo.Exists("design.md") {
		t.Fatal("design.md should not exist yet")
	}

	if err := repo.WriteDocument(ctx, "design.md", "# Design\n"); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	got, err := repo.ReadDocument(ctx, "design.md")
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if got != "# Design\n" {
		t.Errorf("content = %q", got)
	}

	info, err := os.Stat(filepath.Join(root, "specs", "design.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("new documents should be 0600, got %v", info.Mode().Perm())
	}
}

func TestFilesystemRepository_WriteKeepsModeAndLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "specs")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tasks.md")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	repo := NewFilesystemRepository(root, "specs")
	if err := repo.WriteDocument(context.Background(), "tasks.md", "new"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only tasks.md, found %d entries", len(entries))
	}
}

func TestFilesystemRepository_WriteCancelled(t *testing.T) {
	repo := NewFilesystemRepository(t.TempDir(), "specs")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := repo.WriteDocument(ctx, "design.md", "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if repo.Exists("design.md") {
		t.Error("cancelled write must not create the document")
	}
}

func TestFilesystemRepository_AbsoluteSpecDir(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(t.TempDir(), "docs")
	repo := NewFilesystemRepository(root, abs)
	if repo.SpecDir() != abs {
		t.Errorf("SpecDir = %s, want %s", repo.SpecDir(), abs)
	}
	if got := repo.StatePath(EventsFile); got != filepath.Join(root, StateDir, EventsFile) {
		t.Errorf("StatePath = %s", got)
	}
}
