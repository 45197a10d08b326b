package application

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/trace"
)

// Format is a traceability matrix output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
)

// ParseFormat parses a format name. An empty name means markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want markdown, json or csv)", ErrInvalidFormat, s)
	}
}

// MatrixRenderer formats a traceability matrix.
type MatrixRenderer interface {
	RenderMatrix(format Format, m trace.Matrix) (string, error)
}
