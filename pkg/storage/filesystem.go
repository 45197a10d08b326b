package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

const StateDir = ".specsync"
const ConfigFile = "config.yaml"
const EventsFile = "events.jsonl"

// ErrDocumentNotFound indicates a spec document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// FilesystemRepository reads and writes spec documents under a spec directory.
type FilesystemRepository struct {
	root        string
	specDir     string
	retryConfig retry.Config
}

func NewFilesystemRepository(root, specDir string) *FilesystemRepository {
	if specDir == "" {
		specDir = "specs"
	}
	if !filepath.IsAbs(specDir) {
		specDir = filepath.Join(root, specDir)
	}
	return &FilesystemRepository{
		root:    root,
		specDir: filepath.Clean(specDir),
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the project root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// SpecDir returns the absolute spec directory.
func (r *FilesystemRepository) SpecDir() string {
	return r.specDir
}

// StatePath returns the path of a file in the project's .specsync directory.
func (r *FilesystemRepository) StatePath(name string) string {
	return filepath.Join(r.root, StateDir, name)
}

// ResolvePath ensures the document path is within the spec directory and prevents traversal.
func (r *FilesystemRepository) ResolvePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("document name cannot be empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid document path: %s", name)
	}
	cleanPath := filepath.Clean(filepath.Join(r.specDir, name))
	if !strings.HasPrefix(cleanPath, r.specDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document path: %s", name)
	}
	return cleanPath, nil
}

// Exists reports whether the named document exists.
func (r *FilesystemRepository) Exists(name string) bool {
	path, err := r.ResolvePath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadDocument returns the document's text. Transient read failures are
// retried; a missing document is reported immediately as ErrDocumentNotFound.
func (r *FilesystemRepository) ReadDocument(ctx context.Context, name string) (string, error) {
	path, err := r.ResolvePath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}

	retryer := retry.New[string](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) (string, error) {
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return string(data), nil
	})
}

// WriteDocument replaces the document atomically. Readers see either the old
// or the new content, never a partial write.
func (r *FilesystemRepository) WriteDocument(ctx context.Context, name, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.ResolvePath(name)
	if err != nil {
		return err
	}
	perm := fs.FileMode(0600)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return WriteFileAtomic(path, []byte(content), perm)
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	// G301: Use 0700 for directories
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
