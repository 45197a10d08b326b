package codescan

import (
	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Convention is the declared mapping between code-level names and spec ids.
//
// Spec ids written in comments attached to a declaration become the fact's
// TraceIDs. Without an id, components and data models pair by their
// normalised symbol name and endpoints by method plus normalised route.
type Convention struct{}

// FactKeys returns the signature keys of a code fact.
func (Convention) FactKeys(f artifact.CodeFact) []string {
	switch f.Kind {
	case artifact.FactAPIEndpoint:
		if k := artifact.EndpointKey(f.Attr("method"), f.Attr("path")); k != "" {
			return []string{k}
		}
	case artifact.FactComponent, artifact.FactDataModel:
		if k := artifact.SymbolKey(f.Name); k != "" {
			return []string{k}
		}
	}
	return nil
}

// EntityKeys returns the signature keys a spec entity pairs under.
func (Convention) EntityKeys(e artifact.SpecEntity) []string {
	switch e.Kind {
	case artifact.KindAPIContract:
		path := e.Attr("path")
		if path == "" {
			return nil
		}
		keys := []string{artifact.EndpointKey(e.Attr("method"), path)}
		if anyKey := artifact.EndpointKey("ANY", path); anyKey != keys[0] {
			keys = append(keys, anyKey)
		}
		return keys
	case artifact.KindDesignElement:
		for _, attr := range []string{"symbol", "component", "model"} {
			if v := e.Attr(attr); v != "" {
				return []string{artifact.SymbolKey(v)}
			}
		}
		if k := artifact.SymbolKey(e.Title); k != "" {
			return []string{k}
		}
	}
	return nil
}

// TraceIDs extracts the spec ids declared in a comment block.
func (Convention) TraceIDs(comment string) []string {
	return artifact.FindIDs(comment)
}
