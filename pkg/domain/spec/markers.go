package spec

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	fenceRe     = regexp.MustCompile("^(```|~~~)\\s*([A-Za-z0-9_+-]*)")
	boldAttrRe  = regexp.MustCompile(`^(?:[-*+]\s+)?\*\*([^*]+?)\*\*\s*(:?)\s*(.*)$`)
	plainAttrRe = regexp.MustCompile(`^[-*+]\s+([A-Za-z][A-Za-z0-9 _/-]{0,40}?):(?:\s+(.*))?$`)
	lineAttrRe  = regexp.MustCompile(`^([A-Z][A-Za-z0-9_/-]*(?: [A-Za-z0-9_/-]+)?):\s+(\S.*)$`)
	checklistRe = regexp.MustCompile(`^[-*+]\s+\[([ xX])\]\s+(.*)$`)
	bulletRe    = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	separatorRe = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	methodRe    = regexp.MustCompile(`(?i)^(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s+(\S+)`)
	titleSepRe  = regexp.MustCompile(`^[\s:.\-–—|]*`)
	trailRefsRe = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)
)

// DefaultKeywords lists the heading words that announce an entity block.
var DefaultKeywords = map[artifact.EntityKind][]string{
	artifact.KindRequirement:   {"Requirement"},
	artifact.KindDesignElement: {"Component", "Design Element", "Model"},
	artifact.KindAPIContract:   {"Endpoint", "Contract"},
	artifact.KindTask:          {"Task"},
}

// linkRelations maps attribute names to the relation their ids express. An
// empty relation is inferred from the kinds at both ends.
var linkRelations = map[string]artifact.Relation{
	"satisfies":    artifact.RelationSatisfies,
	"traces":       artifact.RelationSatisfies,
	"traces_to":    artifact.RelationSatisfies,
	"requirement":  artifact.RelationSatisfies,
	"requirements": artifact.RelationSatisfies,
	"fulfills":     artifact.RelationSatisfies,
	"implements":   artifact.RelationImplements,
	"links":        "",
	"related":      "",
	"refs":         "",
	"references":   "",
	"see":          "",
	"see_also":     "",
	"depends_on":   "",
	"dependencies": "",
	"design":       "",
	"api":          "",
}

// IsLinkAttribute reports whether the attribute carries entity references.
func IsLinkAttribute(key string) bool {
	_, ok := linkRelations[key]
	return ok
}

func relationFor(key string, from artifact.EntityKind, target string) artifact.Relation {
	if rel := linkRelations[key]; rel != "" {
		if from == artifact.KindTask && rel == artifact.RelationSatisfies {
			return artifact.RelationImplements
		}
		return rel
	}
	return inferRelation(from, target)
}

func inferRelation(from artifact.EntityKind, target string) artifact.Relation {
	to, ok := artifact.KindForID(target)
	if !ok {
		return artifact.RelationReferences
	}
	switch {
	case from == artifact.KindTask:
		return artifact.RelationImplements
	case (from == artifact.KindDesignElement || from == artifact.KindAPIContract) && to == artifact.KindRequirement:
		return artifact.RelationSatisfies
	default:
		return artifact.RelationReferences
	}
}

// NormalizeKey turns a heading or attribute label into lower_snake form.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(key), ":"))
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// NormalizeValue removes formatting that carries no meaning.
func NormalizeValue(v string) string {
	v = strings.ReplaceAll(v, "`", "")
	v = strings.Trim(strings.TrimSpace(v), "*")
	return strings.Join(strings.Fields(v), " ")
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = NormalizeValue(c)
	}
	return cells
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// RewriteAttribute returns line with the attribute value oldValue replaced by
// newValue, keeping the line's own formatting.
func RewriteAttribute(line, oldValue, newValue string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

	if strings.HasPrefix(trimmed, "|") {
		cells := strings.Split(trimmed, "|")
		for i, c := range cells {
			if NormalizeValue(c) == oldValue && oldValue != "" {
				cells[i] = " " + newValue + " "
				return indent + strings.Join(cells, "|"), true
			}
		}
		return "", false
	}

	for _, re := range []*regexp.Regexp{boldAttrRe, plainAttrRe, lineAttrRe} {
		loc := re.FindStringSubmatchIndex(trimmed)
		if loc == nil {
			continue
		}
		last := len(loc) - 2
		if loc[last] < 0 {
			return indent + strings.TrimRight(trimmed, " ") + " " + newValue, true
		}
		if !strings.EqualFold(NormalizeValue(trimmed[loc[last]:loc[last+1]]), oldValue) {
			continue
		}
		return indent + trimmed[:loc[last]] + newValue, true
	}

	if oldValue != "" && strings.Contains(line, oldValue) {
		return strings.Replace(line, oldValue, newValue, 1), true
	}
	return "", false
}
