package artifact

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Namespace seeds the name-based UUIDs derived for findings and changes.
var Namespace = uuid.MustParse("6f1c8a52-3b7e-5d0a-9c41-2e8f7b6d4a10")

// Prefixes maps each entity kind to the id prefix used in its document.
var Prefixes = map[EntityKind]string{
	KindRequirement:   "REQ",
	KindDesignElement: "DES",
	KindAPIContract:   "API",
	KindTask:          "TASK",
}

// specIDPattern matches identifiers such as REQ-001, DES-12 or TASK-3.1.
var specIDPattern = regexp.MustCompile(`\b(REQ|DES|API|TASK)[-_]?([0-9]+(?:\.[0-9]+)*)\b`)

// identPattern finds ids embedded in identifiers such as TestREQ001_Login.
var identPattern = regexp.MustCompile(`(REQ|DES|API|TASK)[-_]?([0-9]+)`)

// StableID derives a deterministic identifier from its parts.
func StableID(parts ...string) string {
	return uuid.NewSHA1(Namespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// KindForID returns the entity kind implied by an id prefix.
func KindForID(id string) (EntityKind, bool) {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return "", false
	}
	for kind, p := range Prefixes {
		if p == prefix {
			return kind, true
		}
	}
	return "", false
}

// FindIDs returns the spec identifiers mentioned in text, normalised to PREFIX-N
// and deduplicated in order of first appearance.
func FindIDs(text string) []string {
	return collectIDs(specIDPattern.FindAllStringSubmatch(text, -1))
}

// FindIDsInIdentifier is FindIDs for code identifiers, where ids are not
// separated from surrounding words.
func FindIDsInIdentifier(ident string) []string {
	return collectIDs(identPattern.FindAllStringSubmatch(ident, -1))
}

func collectIDs(matches [][]string) []string {
	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m[1] + "-" + m[2]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// NextID returns the next free identifier for the kind, keeping the zero padding
// used by existing ids.
func NextID(kind EntityKind, existing []string) string {
	prefix := Prefixes[kind]
	maxN, width := 0, 3
	for _, id := range existing {
		rest, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			continue
		}
		head, _, _ := strings.Cut(rest, ".")
		n, err := strconv.Atoi(head)
		if err != nil {
			continue
		}
		if n > maxN {
			maxN = n
		}
		width = len(head)
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, maxN+1)
}

// SortedKeys returns the keys of an attribute map in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
