package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/spec"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/codescan"
	"github.com/felixgeelhaar/specsync/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// DocumentReader reads spec documents by name.
type DocumentReader interface {
	ReadDocument(ctx context.Context, name string) (string, error)
}

// DocumentStore reads and atomically writes spec documents.
type DocumentStore interface {
	DocumentReader
	WriteDocument(ctx context.Context, name, content string) error
}

// CodeScanner extracts code and test facts from the project.
type CodeScanner interface {
	Scan(ctx context.Context) (*codescan.ScanResult, error)
}

// DocumentSpec declares one spec document and the kind of entity it holds.
type DocumentSpec struct {
	Name string
	Kind artifact.EntityKind
}

// DefaultDocuments returns the four conventional spec documents.
func DefaultDocuments() []DocumentSpec {
	return []DocumentSpec{
		{Name: "requirements.md", Kind: artifact.KindRequirement},
		{Name: "design.md", Kind: artifact.KindDesignElement},
		{Name: "api-spec.md", Kind: artifact.KindAPIContract},
		{Name: "tasks.md", Kind: artifact.KindTask},
	}
}

// Document load states.
const (
	DocumentLoaded     = "loaded"
	DocumentMissing    = "missing"
	DocumentMalformed  = "malformed"
	DocumentUnreadable = "unreadable"
)

// DocumentStatus records what happened to one document during a load.
type DocumentStatus struct {
	Name     string              `json:"name"`
	Kind     artifact.EntityKind `json:"kind"`
	Status   string              `json:"status"`
	Entities int                 `json:"entities"`
	Error    string              `json:"error,omitempty"`
}

// Processed reports whether the document was read, successfully or not.
func (d DocumentStatus) Processed() bool {
	return d.Status == DocumentLoaded || d.Status == DocumentMalformed
}

// Skipped names an input that was left out of a report and why.
type Skipped struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Corpus is one fresh read of the spec documents and, optionally, the code.
type Corpus struct {
	Entities    []artifact.SpecEntity
	ParseErrors []error
	Documents   []DocumentStatus
	// Contents holds the raw text of every document that could be read.
	Contents map[string]string
	Scan     *codescan.ScanResult
	Skipped  []Skipped
}

// DocumentsChecked counts documents that were processed, malformed ones included.
func (c *Corpus) DocumentsChecked() int {
	n := 0
	for _, d := range c.Documents {
		if d.Processed() {
			n++
		}
	}
	return n
}

// CorpusLoader reads documents and scans code concurrently.
type CorpusLoader struct {
	store     DocumentReader
	scanner   CodeScanner
	extractor *spec.Extractor
	docs      []DocumentSpec
	logger    *slog.Logger
}

func NewCorpusLoader(store DocumentReader, scanner CodeScanner, docs []DocumentSpec, logger *slog.Logger) *CorpusLoader {
	if len(docs) == 0 {
		docs = DefaultDocuments()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusLoader{store: store, scanner: scanner, extractor: spec.NewExtractor(), docs: docs, logger: logger}
}

// Documents returns the declared documents.
func (l *CorpusLoader) Documents() []DocumentSpec {
	return l.docs
}

type docResult struct {
	status   DocumentStatus
	entities []artifact.SpecEntity
	text     string
	readOK   bool
	parseErr error
}

// Load extracts every document and, when withCode is set, scans the code.
// Per-document and per-file failures are recorded on the corpus; only
// cancellation fails the load.
func (l *CorpusLoader) Load(ctx context.Context, withCode bool) (*Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]docResult, len(l.docs))
	var scan *codescan.ScanResult
	var scanErr error

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range l.docs {
		g.Go(func() error {
			results[i] = l.loadDocument(gctx, d)
			return gctx.Err()
		})
	}
	if withCode && l.scanner != nil {
		g.Go(func() error {
			scan, scanErr = l.scanner.Scan(gctx)
			if scanErr != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Corpus{Contents: make(map[string]string), Skipped: []Skipped{}}
	for _, r := range results {
		c.Documents = append(c.Documents, r.status)
		if r.readOK {
			c.Contents[r.status.Name] = r.text
		}
		if r.parseErr != nil {
			c.ParseErrors = append(c.ParseErrors, r.parseErr)
		}
		if r.status.Status != DocumentLoaded {
			c.Skipped = append(c.Skipped, Skipped{Source: r.status.Name, Reason: r.status.Error})
		}
		c.Entities = append(c.Entities, r.entities...)
	}

	if scanErr != nil {
		l.logger.Warn("code scan failed", "error", scanErr)
		c.Skipped = append(c.Skipped, Skipped{Source: "code", Reason: scanErr.Error()})
	}
	if scan == nil {
		scan = &codescan.ScanResult{Facts: []artifact.CodeFact{}, Tests: []artifact.TestFact{}}
	}
	c.Scan = scan
	for _, e := range scan.Errors {
		c.Skipped = append(c.Skipped, Skipped{Source: e.Path, Reason: e.Reason})
	}
	sort.SliceStable(c.Skipped, func(i, j int) bool { return c.Skipped[i].Source < c.Skipped[j].Source })
	return c, nil
}

func (l *CorpusLoader) loadDocument(ctx context.Context, d DocumentSpec) docResult {
	r := docResult{status: DocumentStatus{Name: d.Name, Kind: d.Kind}}

	text, err := l.store.ReadDocument(ctx, d.Name)
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		r.status.Status = DocumentMissing
		r.status.Error = "document not found"
		return r
	case err != nil:
		l.logger.Warn("failed to read spec document", "document", d.Name, "error", err)
		r.status.Status = DocumentUnreadable
		r.status.Error = err.Error()
		return r
	}
	r.text, r.readOK = text, true

	entities, err := l.extractor.Extract(spec.Document{Name: d.Name, Kind: d.Kind, Text: text})
	if err != nil {
		l.logger.Warn("skipping malformed spec document", "document", d.Name, "error", err)
		r.status.Status = DocumentMalformed
		r.status.Error = err.Error()
		r.parseErr = fmt.Errorf("extract %s: %w", d.Name, err)
		return r
	}
	r.status.Status = DocumentLoaded
	r.status.Entities = len(entities)
	r.entities = entities
	return r
}
