package drift

import (
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Attribute classes. Anything unlisted is minor.
var (
	criticalAttributes = map[string]bool{
		"method": true, "path": true, "required_fields": true, "parameters": true,
		"signature": true, "returns": true, "behavior": true,
	}
	majorAttributes = map[string]bool{
		"location": true, "file": true, "fields": true, "handler": true,
	}
	listAttributes = map[string]bool{
		"fields": true, "required_fields": true, "methods": true, "parameters": true,
	}
	// ignoredAttributes never count as drift: prose, bookkeeping and keys
	// already used for pairing.
	ignoredAttributes = map[string]bool{
		"description": true, "doc": true, "title": true, "name": true, "status": true,
		"priority": true, "schema": true, "component": true, "model": true, "symbol": true,
		"type": true, "notes": true, "endpoint": true, "route": true,
	}
)

var lineSuffixRe = regexp.MustCompile(`(?::\d+)+$`)

// AttributeSeverity returns the severity class of an attribute.
func AttributeSeverity(attr string) Severity {
	switch {
	case criticalAttributes[attr]:
		return SeverityCritical
	case majorAttributes[attr]:
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// Comparable reports whether an attribute takes part in drift comparison.
func Comparable(attr string, isLink func(string) bool) bool {
	if ignoredAttributes[attr] {
		return false
	}
	return isLink == nil || !isLink(attr)
}

// compare lists the attributes present on both sides that disagree.
func compare(e artifact.SpecEntity, f artifact.CodeFact, isLink func(string) bool) []Difference {
	var diffs []Difference
	for _, attr := range artifact.SortedKeys(e.Attributes) {
		if !Comparable(attr, isLink) {
			continue
		}
		specVal := e.Attributes[attr]
		codeVal, ok := codeValue(f, attr)
		if !ok || strings.TrimSpace(specVal) == "" {
			continue
		}
		if Equivalent(attr, specVal, codeVal) {
			continue
		}
		diffs = append(diffs, Difference{
			Attribute: attr,
			Spec:      specVal,
			Code:      codeVal,
			Severity:  AttributeSeverity(attr),
		})
	}
	return diffs
}

func codeValue(f artifact.CodeFact, attr string) (string, bool) {
	switch attr {
	case "file":
		attr = "location"
	case "signature":
		if f.Signature != "" {
			return f.Signature, true
		}
	}
	v, ok := f.Attributes[attr]
	return v, ok
}

// Equivalent compares a spec value with a code value under the attribute's
// equivalence rule, ignoring formatting-only differences.
func Equivalent(attr, specVal, codeVal string) bool {
	switch {
	case attr == "path":
		return artifact.NormalizeRoute(specVal) == artifact.NormalizeRoute(codeVal)
	case attr == "location" || attr == "file":
		return sameLocation(specVal, codeVal)
	case listAttributes[attr]:
		return sameSet(specVal, codeVal)
	case attr == "signature" || attr == "returns":
		return squash(specVal) == squash(codeVal)
	default:
		return strings.EqualFold(collapse(specVal), collapse(codeVal))
	}
}

// sameLocation treats the spec value as a path prefix of the code location.
func sameLocation(specVal, codeVal string) bool {
	norm := func(s string) string {
		s = strings.Trim(strings.TrimSpace(s), "`")
		s = lineSuffixRe.ReplaceAllString(s, "")
		s = strings.TrimPrefix(s, "./")
		return strings.TrimSuffix(s, "/")
	}
	sp, cp := norm(specVal), norm(codeVal)
	if sp == "" {
		return true
	}
	return cp == sp || strings.HasPrefix(cp, sp+"/")
}

func sameSet(a, b string) bool {
	sa, sb := splitSet(a), splitSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func splitSet(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		item = strings.ToLower(collapse(strings.Trim(strings.TrimSpace(item), "`")))
		if item == "" || item == "none" || item == "-" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func squash(s string) string {
	return strings.ReplaceAll(collapse(strings.Trim(s, "`")), " ", "")
}
