package codescan

import (
	"sort"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	sitter "github.com/smacker/go-tree-sitter"
)

// sourceFile is one parsed file handed to a language extractor.
type sourceFile struct {
	rel  string
	src  []byte
	root *sitter.Node
	lang string
	conv Convention
}

// testCase is a test found in a file before its subjects are resolved to facts.
type testCase struct {
	name     string
	line     int
	comment  string
	subjects []string
}

// language extracts facts and tests from one grammar's syntax trees.
type language interface {
	name() string
	grammar() *sitter.Language
	facts(f *sourceFile) []artifact.CodeFact
	tests(f *sourceFile) []testCase
}

func (f *sourceFile) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.src)
}

// fact builds a code fact anchored at node. The comment node is where doc
// comments are looked up, usually node itself or its wrapping declaration.
func (f *sourceFile) fact(kind artifact.FactKind, name, symbol string, node, comment *sitter.Node) artifact.CodeFact {
	if comment == nil {
		comment = node
	}
	doc := leadingComments(comment, f.src)
	fact := artifact.CodeFact{
		ID:       string(kind) + ":" + f.rel + "#" + symbol,
		Kind:     kind,
		Name:     name,
		Language: f.lang,
		Location: artifact.Location{Path: f.rel, Line: int(node.StartPoint().Row) + 1},
		Attributes: map[string]string{
			"location": f.rel,
		},
		TraceIDs: f.conv.TraceIDs(doc),
	}
	if d := cleanComment(doc); d != "" {
		fact.Attributes["doc"] = d
	}
	return fact
}

// walk visits n and its named descendants depth first. Returning false from fn
// skips the node's children.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// commentsBefore collects the comment siblings directly above n.
func commentsBefore(n *sitter.Node, src []byte) []string {
	var lines []string
	cur := n
	for {
		prev := cur.PrevSibling()
		if prev == nil || prev.Type() != "comment" || cur.StartPoint().Row-prev.EndPoint().Row > 1 {
			break
		}
		lines = append([]string{prev.Content(src)}, lines...)
		cur = prev
	}
	return lines
}

// leadingComments returns the doc comment of n, climbing to the enclosing
// statement when n starts a line, plus a trailing comment on the same line.
func leadingComments(n *sitter.Node, src []byte) string {
	var lines []string
	cur := n
	for depth := 0; cur != nil && depth < 4; depth++ {
		lines = commentsBefore(cur, src)
		if next := cur.NextSibling(); next != nil && next.Type() == "comment" && next.StartPoint().Row == cur.EndPoint().Row {
			lines = append(lines, next.Content(src))
		}
		if len(lines) > 0 {
			break
		}
		parent := cur.Parent()
		if parent == nil || parent.StartPoint().Row != cur.StartPoint().Row {
			break
		}
		cur = parent
	}
	return strings.Join(lines, "\n")
}

func cleanComment(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(strings.TrimSpace(line), "*")
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, " ")
}

// unquote strips the quotes of a string literal in any of the scanned languages.
func unquote(lit string) string {
	lit = strings.TrimLeft(lit, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, "'", "`"} {
		if len(lit) >= 2*len(q) && strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) {
			return lit[len(q) : len(lit)-len(q)]
		}
	}
	return lit
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isExported(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func lastSegment(expr string) string {
	expr = strings.TrimSpace(expr)
	for _, r := range expr {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$') {
			return ""
		}
	}
	if i := strings.LastIndex(expr, "."); i >= 0 {
		return expr[i+1:]
	}
	return expr
}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

func endpointFact(f *sourceFile, call *sitter.Node, method, path, handler string) artifact.CodeFact {
	label := method + " " + path
	fact := f.fact(artifact.FactAPIEndpoint, label, label, call, nil)
	fact.Attributes["method"] = method
	fact.Attributes["path"] = path
	if handler != "" {
		fact.Attributes["handler"] = handler
	}
	fact.Signature = label
	return fact
}

func joinSorted(items []string) string {
	if len(items) == 0 {
		return ""
	}
	cp := append([]string(nil), items...)
	sort.Strings(cp)
	return strings.Join(cp, ", ")
}
