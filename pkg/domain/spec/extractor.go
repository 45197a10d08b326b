// Package spec extracts specification entities from Markdown documents.
package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Document is the raw text of one specification document and its declared kind.
type Document struct {
	Name string
	Kind artifact.EntityKind
	Text string
}

// Extractor parses specification documents into entities.
type Extractor struct {
	keywords map[artifact.EntityKind][]string
}

// NewExtractor creates an extractor using DefaultKeywords.
func NewExtractor() *Extractor {
	return &Extractor{keywords: DefaultKeywords}
}

// Extract returns the entities declared in doc in document order. A
// *MalformedDocumentError aborts extraction of doc only.
func (x *Extractor) Extract(doc Document) ([]artifact.SpecEntity, error) {
	if !doc.Kind.IsValid() {
		return nil, &MalformedDocumentError{Document: doc.Name, Reason: fmt.Sprintf("unknown document kind %q", doc.Kind)}
	}
	p := newParser(doc, x.keywords[doc.Kind])
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.entities, nil
}

type block struct {
	entity   artifact.SpecEntity
	level    int
	start    int
	desc     []string
	descDone bool
	listKey  string
}

type table struct {
	header []string
	idCol  int
	sawSep bool
}

type fence struct {
	lang  string
	lines []string
}

type parser struct {
	doc      Document
	prefix   string
	idHeadRe *regexp.Regexp
	idAnyRe  *regexp.Regexp
	idCellRe *regexp.Regexp
	kwRe     *regexp.Regexp
	lines    []string
	entities []artifact.SpecEntity
	cur      *block
	tbl      *table
	fnc      *fence
}

func newParser(doc Document, keywords []string) *parser {
	prefix := artifact.Prefixes[doc.Kind]
	id := regexp.QuoteMeta(prefix) + `-[0-9]+(?:\.[0-9]+)*`
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	text := strings.ReplaceAll(doc.Text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return &parser{
		doc:      doc,
		prefix:   prefix,
		idHeadRe: regexp.MustCompile(`^\**(` + id + `)\b\**(.*)$`),
		idAnyRe:  regexp.MustCompile(`\b(` + id + `)\b`),
		idCellRe: regexp.MustCompile(`^(` + id + `)$`),
		kwRe:     regexp.MustCompile(`(?i)^(?:` + strings.Join(quoted, "|") + `)\s*(?:[:#\-–—]|[0-9]|[A-Z]+-[0-9])`),
		lines:    strings.Split(text, "\n"),
	}
}

func (p *parser) run() error {
	for i, raw := range p.lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if p.fnc != nil {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				p.closeFence()
				continue
			}
			p.fnc.lines = append(p.fnc.lines, raw)
			continue
		}
		if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
			p.tbl = nil
			p.fnc = &fence{lang: strings.ToLower(m[2])}
			continue
		}

		if !strings.HasPrefix(trimmed, "|") {
			p.tbl = nil
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			if err := p.heading(i, len(m[1]), m[2]); err != nil {
				return err
			}
			continue
		}

		switch {
		case trimmed == "":
			if p.cur != nil {
				if len(p.cur.desc) > 0 {
					p.cur.descDone = true
				}
				p.cur.listKey = ""
			}
		case strings.HasPrefix(trimmed, "|"):
			p.tableRow(lineNo, raw, trimmed)
		case checklistRe.MatchString(trimmed):
			p.checklist(lineNo, raw, trimmed)
		default:
			p.content(raw, trimmed)
		}
	}
	if p.fnc != nil {
		p.closeFence()
	}
	p.finish(len(p.lines))
	sort.SliceStable(p.entities, func(i, j int) bool {
		return p.entities[i].SourceLine < p.entities[j].SourceLine
	})
	return nil
}

func (p *parser) heading(idx, level int, text string) error {
	text = NormalizeValue(text)
	if level >= 2 {
		if m := p.idHeadRe.FindStringSubmatch(text); m != nil {
			p.finish(idx)
			p.open(idx, level, m[1], m[2])
			return nil
		}
		if p.kwRe.MatchString(text) {
			loc := p.idAnyRe.FindStringSubmatchIndex(text)
			if loc == nil {
				return &MalformedDocumentError{
					Document: p.doc.Name,
					Line:     idx + 1,
					Reason:   fmt.Sprintf("%s block %q has no %s- identifier", p.doc.Kind, text, p.prefix),
				}
			}
			p.finish(idx)
			p.open(idx, level, text[loc[2]:loc[3]], text[loc[3]:])
			return nil
		}
	}
	if p.cur == nil {
		return nil
	}
	if level <= p.cur.level {
		p.finish(idx)
		return nil
	}
	p.cur.descDone = true
	p.cur.listKey = ""
	return nil
}

func (p *parser) open(idx, level int, id, rest string) {
	title := strings.TrimSpace(titleSepRe.ReplaceAllString(rest, ""))
	p.cur = &block{
		level: level,
		start: idx,
		entity: artifact.SpecEntity{
			ID:             id,
			Kind:           p.doc.Kind,
			SourceDocument: p.doc.Name,
			SourceLine:     idx + 1,
			Title:          title,
			Attributes:     map[string]string{},
			RawLines:       map[string]string{"title": p.lines[idx]},
		},
	}
	for _, ref := range artifact.FindIDs(title) {
		if ref != id {
			p.cur.entity.Links = append(p.cur.entity.Links, artifact.Link{Target: ref, Relation: inferRelation(p.doc.Kind, ref)})
		}
	}
	if m := methodRe.FindStringSubmatch(title); m != nil && p.doc.Kind == artifact.KindAPIContract {
		p.cur.entity.Attributes["method"] = strings.ToUpper(m[1])
		p.cur.entity.Attributes["path"] = m[2]
		p.cur.entity.RawLines["method"] = p.lines[idx]
		p.cur.entity.RawLines["path"] = p.lines[idx]
	}
}

func (p *parser) content(raw, trimmed string) {
	if p.cur == nil {
		return
	}
	b := p.cur

	indented := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')
	if indented && b.listKey != "" {
		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			item := NormalizeValue(m[1])
			if prev := b.entity.Attributes[b.listKey]; prev != "" {
				item = prev + "; " + item
			}
			b.entity.Attributes[b.listKey] = item
			return
		}
	}

	if key, value, ok := parseAttribute(trimmed); ok {
		b.setAttr(key, value, raw)
		b.descDone = b.descDone || len(b.desc) > 0
		if value == "" {
			b.listKey = key
		} else {
			b.listKey = ""
		}
		return
	}
	b.listKey = ""

	if bulletRe.MatchString(trimmed) {
		b.descDone = b.descDone || len(b.desc) > 0
		return
	}
	if !b.descDone {
		b.desc = append(b.desc, trimmed)
	}
}

func parseAttribute(trimmed string) (string, string, bool) {
	if m := boldAttrRe.FindStringSubmatch(trimmed); m != nil {
		key := m[1]
		if m[2] != ":" && !strings.HasSuffix(strings.TrimSpace(key), ":") {
			return "", "", false
		}
		return NormalizeKey(key), NormalizeValue(m[3]), true
	}
	if m := plainAttrRe.FindStringSubmatch(trimmed); m != nil && wordCount(m[1]) <= 4 {
		return NormalizeKey(m[1]), NormalizeValue(m[2]), true
	}
	if m := lineAttrRe.FindStringSubmatch(trimmed); m != nil {
		return NormalizeKey(m[1]), NormalizeValue(m[2]), true
	}
	return "", "", false
}

func (b *block) setAttr(key, value, raw string) {
	if key == "" {
		return
	}
	if key == "endpoint" || key == "route" {
		if m := methodRe.FindStringSubmatch(value); m != nil {
			b.entity.Attributes["method"] = strings.ToUpper(m[1])
			b.entity.Attributes["path"] = m[2]
			b.entity.RawLines["method"] = raw
			b.entity.RawLines["path"] = raw
		}
	}
	if key == "method" {
		value = strings.ToUpper(value)
	}
	b.entity.Attributes[key] = value
	b.entity.RawLines[key] = raw
}

func (p *parser) tableRow(lineNo int, raw, trimmed string) {
	cells := splitRow(trimmed)
	if p.tbl == nil {
		t := &table{idCol: -1, header: make([]string, len(cells))}
		for i, c := range cells {
			t.header[i] = NormalizeKey(c)
			if t.header[i] == "id" && t.idCol < 0 {
				t.idCol = i
			}
		}
		p.tbl = t
		return
	}
	if !p.tbl.sawSep {
		if separatorRe.MatchString(trimmed) {
			p.tbl.sawSep = true
			return
		}
		p.tbl = nil
		return
	}

	if p.tbl.idCol < 0 {
		p.fieldRow(cells, raw)
		return
	}
	if p.tbl.idCol >= len(cells) || !p.idCellRe.MatchString(cells[p.tbl.idCol]) {
		return
	}

	e := artifact.SpecEntity{
		ID:             cells[p.tbl.idCol],
		Kind:           p.doc.Kind,
		SourceDocument: p.doc.Name,
		SourceLine:     lineNo,
		Attributes:     map[string]string{},
		RawLines:       map[string]string{},
		BlockText:      raw,
	}
	for i, c := range cells {
		if i == p.tbl.idCol || i >= len(p.tbl.header) || c == "" {
			continue
		}
		key := p.tbl.header[i]
		switch key {
		case "title", "name", "summary":
			if e.Title == "" {
				e.Title = c
				e.RawLines["title"] = raw
				continue
			}
		}
		e.Attributes[key] = c
		e.RawLines[key] = raw
		for _, ref := range artifact.FindIDs(c) {
			if ref != e.ID {
				e.Links = append(e.Links, artifact.Link{Target: ref, Relation: relationFor(key, p.doc.Kind, ref)})
			}
		}
	}
	if e.Title == "" {
		e.Title = e.Attributes["description"]
	}
	if m := methodRe.FindStringSubmatch(e.Title); m != nil && p.doc.Kind == artifact.KindAPIContract {
		e.Attributes["method"] = strings.ToUpper(m[1])
		e.Attributes["path"] = m[2]
	}
	e.Links = dedupLinks(e.Links)
	p.entities = append(p.entities, e)
}

// fieldRow records parameter tables such as | Field | Type | Required |.
func (p *parser) fieldRow(cells []string, raw string) {
	if p.cur == nil || p.doc.Kind == artifact.KindRequirement || p.doc.Kind == artifact.KindTask {
		return
	}
	nameCol, reqCol := -1, -1
	for i, h := range p.tbl.header {
		switch h {
		case "field", "name", "parameter", "property", "param":
			if nameCol < 0 {
				nameCol = i
			}
		case "required", "mandatory":
			reqCol = i
		}
	}
	if nameCol < 0 || nameCol >= len(cells) || cells[nameCol] == "" {
		return
	}
	attrs := p.cur.entity.Attributes
	attrs["fields"] = appendList(attrs["fields"], cells[nameCol])
	p.cur.entity.RawLines["fields"] = raw
	if reqCol >= 0 && reqCol < len(cells) && truthy(cells[reqCol]) {
		attrs["required_fields"] = appendList(attrs["required_fields"], cells[nameCol])
		p.cur.entity.RawLines["required_fields"] = raw
	}
}

func (p *parser) checklist(lineNo int, raw, trimmed string) {
	m := checklistRe.FindStringSubmatch(trimmed)
	body := NormalizeValue(m[2])
	head := p.idHeadRe.FindStringSubmatch(body)
	if head == nil || p.doc.Kind != artifact.KindTask {
		if p.cur != nil {
			p.cur.descDone = p.cur.descDone || len(p.cur.desc) > 0
		}
		return
	}

	status := "open"
	if m[1] != " " {
		status = "done"
	}
	title := strings.TrimSpace(titleSepRe.ReplaceAllString(head[2], ""))
	refsText := title
	if rm := trailRefsRe.FindStringSubmatch(title); rm != nil && len(artifact.FindIDs(rm[1])) > 0 {
		title = strings.TrimSpace(strings.TrimSuffix(title, rm[0]))
	}
	e := artifact.SpecEntity{
		ID:             head[1],
		Kind:           artifact.KindTask,
		SourceDocument: p.doc.Name,
		SourceLine:     lineNo,
		Title:          title,
		Attributes:     map[string]string{"status": status},
		RawLines:       map[string]string{"status": raw, "title": raw},
		BlockText:      raw,
	}
	for _, ref := range artifact.FindIDs(refsText) {
		if ref != e.ID {
			e.Links = append(e.Links, artifact.Link{Target: ref, Relation: artifact.RelationImplements})
		}
	}
	p.entities = append(p.entities, e)
}

func (p *parser) closeFence() {
	f := p.fnc
	p.fnc = nil
	if p.cur == nil || (f.lang != "json" && f.lang != "jsonschema") {
		return
	}
	src := strings.Join(f.lines, "\n")
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(src)); err != nil {
		p.cur.entity.Attributes["schema"] = NormalizeValue(src)
		return
	}
	p.cur.entity.Attributes["schema"] = compact.String()

	var doc struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if json.Unmarshal(compact.Bytes(), &doc) != nil {
		return
	}
	if len(doc.Required) > 0 && p.cur.entity.Attributes["required_fields"] == "" {
		req := append([]string(nil), doc.Required...)
		sort.Strings(req)
		p.cur.entity.Attributes["required_fields"] = strings.Join(req, ", ")
	}
	if len(doc.Properties) > 0 && p.cur.entity.Attributes["fields"] == "" {
		names := make([]string, 0, len(doc.Properties))
		for name := range doc.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		p.cur.entity.Attributes["fields"] = strings.Join(names, ", ")
	}
}

// finish closes the current block at line index end (exclusive).
func (p *parser) finish(end int) {
	b := p.cur
	if b == nil {
		return
	}
	p.cur = nil

	for end > b.start+1 && strings.TrimSpace(p.lines[end-1]) == "" {
		end--
	}
	e := b.entity
	e.BlockText = strings.Join(p.lines[b.start:end], "\n")
	if len(b.desc) > 0 && e.Attributes["description"] == "" {
		e.Attributes["description"] = NormalizeValue(strings.Join(b.desc, " "))
	}
	for _, key := range artifact.SortedKeys(e.Attributes) {
		if !IsLinkAttribute(key) {
			continue
		}
		for _, ref := range artifact.FindIDs(e.Attributes[key]) {
			if ref != e.ID {
				e.Links = append(e.Links, artifact.Link{Target: ref, Relation: relationFor(key, e.Kind, ref)})
			}
		}
	}
	e.Links = dedupLinks(e.Links)
	p.entities = append(p.entities, e)
}

func dedupLinks(links []artifact.Link) []artifact.Link {
	if len(links) == 0 {
		return nil
	}
	seen := make(map[artifact.Link]bool, len(links))
	out := make([]artifact.Link, 0, len(links))
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func appendList(list, item string) string {
	if list == "" {
		return item
	}
	return list + ", " + item
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "x", "✓", "✔", "required":
		return true
	}
	return false
}
