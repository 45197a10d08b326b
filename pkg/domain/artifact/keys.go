package artifact

import (
	"regexp"
	"strings"
	"unicode"
)

var routeParamRe = regexp.MustCompile(`^(?:\{[^}]*\}|:[^/]+|<[^>]*>|\[[^\]]*\])$`)

// SymbolKey normalises a symbol or title to a comparable pairing key.
func SymbolKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "symbol:" + b.String()
}

// EndpointKey normalises an HTTP method and route to a comparable pairing key.
func EndpointKey(method, path string) string {
	if path == "" {
		return ""
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "ANY"
	}
	return "endpoint:" + method + " " + NormalizeRoute(path)
}

// NormalizeRoute lowercases a route and replaces every parameter segment,
// whatever its framework syntax, with {}.
func NormalizeRoute(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if routeParamRe.MatchString(seg) {
			out = append(out, "{}")
			continue
		}
		out = append(out, strings.ToLower(seg))
	}
	return "/" + strings.Join(out, "/")
}
