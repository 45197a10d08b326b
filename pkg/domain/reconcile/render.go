package reconcile

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderBlock renders a code fact as a new spec entity block. hashes is the
// heading marker, "##" when empty.
func RenderBlock(hashes, id string, f artifact.CodeFact) string {
	if hashes == "" {
		hashes = "##"
	}
	var b strings.Builder
	if f.Kind == artifact.FactAPIEndpoint {
		fmt.Fprintf(&b, "%s %s: %s %s\n\n", hashes, id, f.Attr("method"), f.Attr("path"))
	} else {
		fmt.Fprintf(&b, "%s %s: %s\n\n", hashes, id, f.Name)
	}
	if doc := strings.Join(strings.Fields(f.Attr("doc")), " "); doc != "" {
		b.WriteString(doc + "\n\n")
	}

	bullet := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- **%s**: %s\n", key, value)
		}
	}
	switch f.Kind {
	case artifact.FactComponent:
		bullet("Type", "component")
		bullet("Component", f.Name)
		bullet("Location", f.Location.Path)
		bullet("Methods", f.Attr("methods"))
	case artifact.FactDataModel:
		bullet("Type", "data_model")
		bullet("Model", f.Name)
		bullet("Location", f.Location.Path)
		bullet("Fields", f.Attr("fields"))
		bullet("Required Fields", f.Attr("required_fields"))
	case artifact.FactAPIEndpoint:
		bullet("Handler", f.Attr("handler"))
		bullet("Location", f.Location.Path)
	}

	var reqs []string
	for _, id := range f.TraceIDs {
		if kind, ok := artifact.KindForID(id); ok && kind == artifact.KindRequirement {
			reqs = append(reqs, id)
		}
	}
	bullet("Satisfies", strings.Join(reqs, ", "))
	return b.String()
}

// Preview renders a line diff of a change for review.
func Preview(document, before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", document, document)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		if d.Text == "" {
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	return sb.String()
}
