// Package render formats traceability matrices as markdown, CSV or JSON.
package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/felixgeelhaar/specsync/pkg/domain/trace"
)

var header = []string{"Requirement", "Title", "Design", "API", "Implementation", "Tests", "Status"}

// MatrixRenderer implements application.MatrixRenderer.
type MatrixRenderer struct{}

func NewMatrixRenderer() *MatrixRenderer {
	return &MatrixRenderer{}
}

func (MatrixRenderer) RenderMatrix(format application.Format, m trace.Matrix) (string, error) {
	switch format {
	case application.FormatMarkdown, "":
		return Markdown(m), nil
	case application.FormatCSV:
		return CSV(m)
	case application.FormatJSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal matrix: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", application.ErrInvalidFormat, format)
	}
}

func status(r trace.Row) string {
	switch {
	case len(r.Implementation) == 0:
		return "unimplemented"
	case r.Untested:
		return "untested"
	default:
		return "covered"
	}
}

func cells(r trace.Row, sep string) []string {
	return []string{
		r.RequirementID,
		r.Title,
		strings.Join(r.Design, sep),
		strings.Join(r.API, sep),
		strings.Join(r.Implementation, sep),
		strings.Join(r.Tests, sep),
		status(r),
	}
}

// Markdown renders the matrix as a GitHub flavoured table followed by a
// summary line.
func Markdown(m trace.Matrix) string {
	var b strings.Builder
	b.WriteString("# Traceability Matrix\n\n")
	if len(m.Rows) == 0 {
		b.WriteString("No requirements found.\n")
		return b.String()
	}

	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, r := range m.Rows {
		row := cells(r, "<br>")
		for i, c := range row {
			c = strings.ReplaceAll(c, "|", `\|`)
			if c == "" {
				c = "-"
			}
			row[i] = c
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	untested := m.Untested()
	fmt.Fprintf(&b, "\n%d requirements, %d untested", len(m.Rows), len(untested))
	if len(m.Rejected) > 0 {
		fmt.Fprintf(&b, ", %d trace links rejected", len(m.Rejected))
	}
	b.WriteString(".\n")
	return b.String()
}

// CSV renders one record per requirement. Multi-valued cells are joined with ';'.
func CSV(m trace.Matrix) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, r := range m.Rows {
		if err := w.Write(cells(r, ";")); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}
