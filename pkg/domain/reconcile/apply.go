package reconcile

import (
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Apply performs one change on a document's content and reports whether the
// content changed. Applying a change to its own result is a no-op.
func Apply(content string, c Change) (string, bool, error) {
	crlf := strings.Contains(content, "\r\n")
	text := strings.ReplaceAll(content, "\r\n", "\n")

	var (
		out     string
		changed bool
		err     error
	)
	switch c.Operation {
	case OpInsert:
		out, changed, err = insert(text, c)
	case OpUpdate:
		out, changed, err = update(text, c)
	case OpDelete:
		out, changed, err = remove(text, c)
	default:
		err = &ApplyError{ChangeID: c.ID, Document: c.TargetDocument, Reason: "unknown operation " + string(c.Operation)}
	}
	if err != nil || !changed {
		return content, false, err
	}
	if crlf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, true, nil
}

func insert(text string, c Change) (string, bool, error) {
	block := strings.TrimRight(c.AfterText, "\n")
	if strings.TrimSpace(block) == "" {
		return "", false, &ApplyError{ChangeID: c.ID, Document: c.TargetDocument, Reason: "insert has no text"}
	}
	if strings.Contains(text, block) {
		return text, false, nil
	}
	out := strings.TrimRight(text, "\n")
	if out != "" {
		out += "\n\n"
	}
	return out + block + "\n", true, nil
}

func update(text string, c Change) (string, bool, error) {
	lines := strings.Split(text, "\n")
	start, end, ok := entityBlock(lines, c.Anchor, c.EntityID)
	if !ok {
		return "", false, &ApplyError{ChangeID: c.ID, Document: c.TargetDocument, Reason: "block for " + c.EntityID + " not found"}
	}
	for i := start; i < end; i++ {
		if lines[i] == c.BeforeText {
			lines[i] = c.AfterText
			return strings.Join(lines, "\n"), true, nil
		}
	}
	for i := start; i < end; i++ {
		if lines[i] == c.AfterText {
			return text, false, nil
		}
	}
	return "", false, &ApplyError{ChangeID: c.ID, Document: c.TargetDocument, Reason: "neither the original nor the updated line is present"}
}

// entityBlock returns the line range [start, end) owned by an entity. The
// anchor line is tried first, then any heading, table row or checklist line
// naming the id. Without an anchor or id the whole document is the block.
func entityBlock(lines []string, anchor, id string) (int, int, bool) {
	if anchor == "" && id == "" {
		return 0, len(lines), true
	}
	start := -1
	if anchor != "" {
		for i, line := range lines {
			if line == anchor {
				start = i
				break
			}
		}
	}
	if start < 0 && id != "" {
		for i, line := range lines {
			if ownsID(line, id) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	level := headingLevel(lines[start])
	if level == 0 {
		return start, start + 1, true
	}
	fenced := false
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		if l := headingLevel(lines[i]); l > 0 && (l <= level || len(artifact.FindIDs(trimmed)) > 0) {
			return start, i, true
		}
	}
	return start, len(lines), true
}

// ownsID reports whether line opens the block of id: a heading whose first
// id is id, or a table row or checklist item naming it.
func ownsID(line, id string) bool {
	trimmed := strings.TrimSpace(line)
	ids := artifact.FindIDs(trimmed)
	if len(ids) == 0 {
		return false
	}
	if headingLevel(trimmed) > 0 {
		return ids[0] == id
	}
	if strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "- [") || strings.HasPrefix(trimmed, "* [") {
		for _, got := range ids {
			if got == id {
				return true
			}
		}
	}
	return false
}

func headingLevel(line string) int {
	trimmed := strings.TrimSpace(line)
	n := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
	if n == 0 || n > 6 || (len(trimmed) > n && trimmed[n] != ' ' && trimmed[n] != '\t') {
		return 0
	}
	return n
}

func remove(text string, c Change) (string, bool, error) {
	if c.BeforeText == "" {
		return "", false, &ApplyError{ChangeID: c.ID, Document: c.TargetDocument, Reason: "delete has no text"}
	}
	idx := strings.Index(text, c.BeforeText)
	if idx < 0 {
		return text, false, nil
	}
	head := text[:idx]
	tail := strings.TrimLeft(text[idx+len(c.BeforeText):], "\n")
	if tail == "" {
		head = strings.TrimRight(head, "\n")
		if head == "" {
			return "", true, nil
		}
		return head + "\n", true, nil
	}
	return head + tail, true, nil
}
