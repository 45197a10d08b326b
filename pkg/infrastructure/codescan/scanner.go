// Package codescan extracts code and test facts from a source tree using
// tree-sitter grammars for Go, JavaScript, TypeScript and Python.
package codescan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"
)

var alwaysSkipped = map[string]bool{
	".git": true, ".specsync": true, "vendor": true, "node_modules": true,
	"__pycache__": true, ".venv": true, "dist": true,
}

// ScanResult is everything a scan extracted from the source tree.
type ScanResult struct {
	Facts        []artifact.CodeFact `json:"facts"`
	Tests        []artifact.TestFact `json:"tests"`
	Errors       []*CodeParseError   `json:"errors,omitempty"`
	FilesScanned int                 `json:"files_scanned"`
}

// Scanner walks a project and extracts code facts from supported sources.
type Scanner struct {
	root        string
	include     []gitignore.Pattern
	exclude     []gitignore.Pattern
	specDir     string
	concurrency int
	logger      *slog.Logger
	conv        Convention
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithInclude restricts scanning to files matching the gitignore-style patterns.
func WithInclude(patterns ...string) Option {
	return func(s *Scanner) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				s.include = append(s.include, gitignore.ParsePattern(p, nil))
			}
		}
	}
}

// WithExclude skips files matching the gitignore-style patterns.
func WithExclude(patterns ...string) Option {
	return func(s *Scanner) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				s.exclude = append(s.exclude, gitignore.ParsePattern(p, nil))
			}
		}
	}
}

// WithSpecDir keeps the specification directory out of the scan.
func WithSpecDir(dir string) Option {
	return func(s *Scanner) { s.specDir = filepath.ToSlash(filepath.Clean(dir)) }
}

func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a scanner rooted at root.
func NewScanner(root string, opts ...Option) *Scanner {
	s := &Scanner{
		root:        root,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sourcePath struct {
	rel  string
	lang language
	test bool
}

type fileResult struct {
	facts []artifact.CodeFact
	tests []testCase
	rel   string
	err   *CodeParseError
}

// Scan discovers and parses every supported file under the root. Files that
// fail to parse are reported in ScanResult.Errors and contribute no facts.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	paths, err := s.discover()
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.parse(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ScanResult{
		Facts:        make([]artifact.CodeFact, 0),
		Tests:        make([]artifact.TestFact, 0),
		FilesScanned: len(paths),
	}
	var cases []fileResult
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("skipping unparsable file", "path", r.err.Path, "line", r.err.Line, "reason", r.err.Reason)
			res.Errors = append(res.Errors, r.err)
			continue
		}
		res.Facts = append(res.Facts, r.facts...)
		if len(r.tests) > 0 {
			cases = append(cases, r)
		}
	}
	artifact.SortFacts(res.Facts)
	res.Tests = s.resolveTests(cases, res.Facts)

	s.logger.Debug("code scan finished", "files", res.FilesScanned, "facts", len(res.Facts), "tests", len(res.Tests), "errors", len(res.Errors))
	return res, nil
}

// discover lists candidate files in lexical order.
func (s *Scanner) discover() ([]sourcePath, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", s.root)
	}

	ignored, err := gitignore.ReadPatterns(osfs.New(s.root), nil)
	if err != nil {
		s.logger.Warn("failed to read .gitignore patterns", "error", err)
	}
	ignore := gitignore.NewMatcher(append(ignored, s.exclude...))

	var paths []sourcePath
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		parts := strings.Split(rel, "/")

		if d.IsDir() {
			if alwaysSkipped[d.Name()] || (s.specDir != "" && s.specDir != "." && rel == s.specDir) || ignore.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignore.Match(parts, false) || !s.included(parts) {
			return nil
		}
		lang := languageFor(d.Name())
		if lang == nil {
			return nil
		}
		paths = append(paths, sourcePath{rel: rel, lang: lang, test: isTestFile(d.Name())})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return paths, nil
}

func (s *Scanner) included(parts []string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if p.Match(parts, false) == gitignore.Exclude {
			return true
		}
	}
	return false
}

func (s *Scanner) parse(ctx context.Context, p sourcePath) fileResult {
	src, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(p.rel)))
	if err != nil {
		return fileResult{rel: p.rel, err: &CodeParseError{Path: p.rel, Reason: err.Error()}}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang.grammar())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fileResult{rel: p.rel, err: &CodeParseError{Path: p.rel, Reason: err.Error()}}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return fileResult{rel: p.rel, err: &CodeParseError{Path: p.rel, Line: firstErrorLine(root), Reason: "syntax error"}}
	}

	f := &sourceFile{rel: p.rel, src: src, root: root, lang: p.lang.name(), conv: s.conv}
	if p.test {
		return fileResult{rel: p.rel, tests: p.lang.tests(f)}
	}
	return fileResult{rel: p.rel, facts: p.lang.facts(f)}
}

func firstErrorLine(root *sitter.Node) int {
	line := 0
	walk(root, func(n *sitter.Node) bool {
		if line > 0 {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			line = int(n.StartPoint().Row) + 1
			return false
		}
		return n.HasError()
	})
	if line == 0 {
		line = 1
	}
	return line
}

// resolveTests turns test cases into test facts whose targets are the spec ids
// named by the test plus the code facts its subjects refer to.
func (s *Scanner) resolveTests(files []fileResult, facts []artifact.CodeFact) []artifact.TestFact {
	byKey := make(map[string][]string)
	for _, f := range facts {
		var key string
		if f.Kind == artifact.FactAPIEndpoint {
			key = artifact.EndpointKey(f.Attr("method"), f.Attr("path"))
		} else {
			key = artifact.SymbolKey(f.Name)
		}
		if key != "" {
			byKey[key] = append(byKey[key], f.ID)
		}
	}

	out := make([]artifact.TestFact, 0)
	for _, file := range files {
		for _, tc := range file.tests {
			targets := make(map[string]bool)
			for _, id := range artifact.FindIDsInIdentifier(tc.name) {
				targets[id] = true
			}
			for _, id := range artifact.FindIDs(tc.name + "\n" + tc.comment) {
				targets[id] = true
			}
			for _, subject := range tc.subjects {
				for _, id := range artifact.FindIDs(subject) {
					targets[id] = true
				}
				for _, id := range byKey[subjectKey(subject)] {
					targets[id] = true
				}
			}
			list := make([]string, 0, len(targets))
			for t := range targets {
				list = append(list, t)
			}
			sort.Strings(list)
			out = append(out, artifact.TestFact{
				ID:       "test:" + file.rel + "#" + tc.name,
				Name:     tc.name,
				Location: artifact.Location{Path: file.rel, Line: tc.line},
				Targets:  list,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// subjectKey maps a test subject such as "UserService" or "GET /users" to a fact key.
func subjectKey(subject string) string {
	if method, path, ok := strings.Cut(strings.TrimSpace(subject), " "); ok && httpMethods[strings.ToUpper(method)] && strings.HasPrefix(path, "/") {
		return artifact.EndpointKey(method, path)
	}
	return artifact.SymbolKey(subject)
}

func languageFor(name string) language {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".go":
		return goLang{}
	case ".js", ".jsx", ".mjs", ".cjs":
		return newJavaScript()
	case ".ts", ".mts", ".cts":
		if strings.HasSuffix(name, ".d.ts") {
			return nil
		}
		return newTypeScript()
	case ".tsx":
		return newTSX()
	case ".py":
		return pyLang{}
	}
	return nil
}

func isTestFile(name string) bool {
	switch {
	case strings.HasSuffix(name, "_test.go"):
		return true
	case strings.Contains(name, ".test.") || strings.Contains(name, ".spec."):
		return true
	case strings.HasSuffix(name, ".py"):
		return strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py")
	}
	return false
}
