package codescan

import (
	"reflect"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// goLang extracts facts from Go sources.
type goLang struct{}

func (goLang) name() string               { return "go" }
func (goLang) grammar() *sitter.Language { return golang.GetLanguage() }

func (g goLang) facts(f *sourceFile) []artifact.CodeFact {
	var facts []artifact.CodeFact
	pkg := g.packageName(f)
	methods := make(map[string][]string)

	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		n := f.root.NamedChild(i)
		switch n.Type() {
		case "function_declaration":
			name := f.text(n.ChildByFieldName("name"))
			if !isExported(name) {
				continue
			}
			fact := f.fact(artifact.FactComponent, name, name, n, nil)
			g.describeFunc(f, n, &fact)
			fact.Attributes["package"] = pkg
			facts = append(facts, fact)
		case "method_declaration":
			name := f.text(n.ChildByFieldName("name"))
			recv := g.receiverType(f, n)
			if isExported(name) && recv != "" {
				methods[recv] = append(methods[recv], name)
			}
		case "type_declaration":
			specs := 0
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if n.NamedChild(j).Type() == "type_spec" {
					specs++
				}
			}
			for j := 0; j < int(n.NamedChildCount()); j++ {
				spec := n.NamedChild(j)
				if spec.Type() != "type_spec" {
					continue
				}
				commentNode := spec
				if specs == 1 {
					commentNode = n
				}
				if fact, ok := g.typeFact(f, spec, commentNode); ok {
					fact.Attributes["package"] = pkg
					facts = append(facts, fact)
				}
			}
		}
	}

	for i := range facts {
		if ms := methods[facts[i].Name]; len(ms) > 0 {
			facts[i].Attributes["methods"] = joinSorted(ms)
		}
	}

	walk(f.root, func(n *sitter.Node) bool {
		if n.Type() == "call_expression" {
			if fact, ok := g.route(f, n); ok {
				facts = append(facts, fact)
			}
		}
		return true
	})
	return facts
}

func (goLang) packageName(f *sourceFile) string {
	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		n := f.root.NamedChild(i)
		if n.Type() == "package_clause" {
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if c := n.NamedChild(j); c.Type() == "package_identifier" {
					return f.text(c)
				}
			}
		}
	}
	return ""
}

func (goLang) describeFunc(f *sourceFile, n *sitter.Node, fact *artifact.CodeFact) {
	if body := n.ChildByFieldName("body"); body != nil {
		fact.Signature = collapse(string(f.src[n.StartByte():body.StartByte()]))
	} else {
		fact.Signature = collapse(f.text(n))
	}
	fact.Attributes["signature"] = fact.Signature
	if params := n.ChildByFieldName("parameters"); params != nil {
		fact.Attributes["parameters"] = collapse(strings.TrimSuffix(strings.TrimPrefix(f.text(params), "("), ")"))
	}
	if result := n.ChildByFieldName("result"); result != nil {
		fact.Attributes["returns"] = collapse(f.text(result))
	}
}

func (goLang) receiverType(f *sourceFile, n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		t := strings.TrimLeft(f.text(param.ChildByFieldName("type")), "*")
		if idx := strings.Index(t, "["); idx >= 0 {
			t = t[:idx]
		}
		return t
	}
	return ""
}

func (g goLang) typeFact(f *sourceFile, spec, commentNode *sitter.Node) (artifact.CodeFact, bool) {
	name := f.text(spec.ChildByFieldName("name"))
	if !isExported(name) {
		return artifact.CodeFact{}, false
	}
	typeNode := spec.ChildByFieldName("type")
	if typeNode == nil {
		return artifact.CodeFact{}, false
	}

	switch typeNode.Type() {
	case "struct_type":
		fields, required, tagged := g.structFields(f, typeNode)
		kind := artifact.FactComponent
		if tagged {
			kind = artifact.FactDataModel
		}
		fact := f.fact(kind, name, name, spec, commentNode)
		if kind == artifact.FactDataModel {
			fact.Attributes["fields"] = strings.Join(fields, ", ")
			fact.Attributes["required_fields"] = joinSorted(required)
		}
		fact.Signature = "type " + name + " struct"
		return fact, true
	case "interface_type":
		fact := f.fact(artifact.FactComponent, name, name, spec, commentNode)
		fact.Signature = "type " + name + " interface"
		var methods []string
		walk(typeNode, func(n *sitter.Node) bool {
			switch n.Type() {
			case "method_spec", "method_elem":
				methods = append(methods, f.text(n.ChildByFieldName("name")))
				return false
			}
			return true
		})
		if len(methods) > 0 {
			fact.Attributes["methods"] = joinSorted(methods)
		}
		return fact, true
	}
	return artifact.CodeFact{}, false
}

// structFields lists the wire names of a struct's exported fields. tagged is
// true when any field carries a serialisation tag, which marks a data model.
func (goLang) structFields(f *sourceFile, structNode *sitter.Node) (fields, required []string, tagged bool) {
	var list *sitter.Node
	for i := 0; i < int(structNode.NamedChildCount()); i++ {
		if c := structNode.NamedChild(i); c.Type() == "field_declaration_list" {
			list = c
			break
		}
	}
	if list == nil {
		return nil, nil, false
	}

	for i := 0; i < int(list.NamedChildCount()); i++ {
		decl := list.NamedChild(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		tag := reflect.StructTag(unquote(f.text(decl.ChildByFieldName("tag"))))
		jsonTag, hasJSON := tag.Lookup("json")
		if _, ok := tag.Lookup("yaml"); ok || hasJSON {
			tagged = true
		}
		if _, ok := tag.Lookup("db"); ok {
			tagged = true
		}

		for j := 0; j < int(decl.NamedChildCount()); j++ {
			ident := decl.NamedChild(j)
			if ident.Type() != "field_identifier" {
				continue
			}
			name := f.text(ident)
			if !isExported(name) {
				continue
			}
			wire, opts, _ := strings.Cut(jsonTag, ",")
			if wire == "-" {
				continue
			}
			if wire == "" {
				wire = name
			}
			fields = append(fields, wire)
			if !strings.Contains(opts, "omitempty") && !strings.Contains(opts, "omitzero") {
				required = append(required, wire)
			}
		}
	}
	return fields, required, tagged
}

// route recognises net/http, gorilla/mux, chi, gin and echo registrations.
func (goLang) route(f *sourceFile, call *sitter.Node) (artifact.CodeFact, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "selector_expression" {
		return artifact.CodeFact{}, false
	}
	selector := f.text(fn.ChildByFieldName("field"))
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return artifact.CodeFact{}, false
	}
	first := args.NamedChild(0)
	if first.Type() != "interpreted_string_literal" && first.Type() != "raw_string_literal" {
		return artifact.CodeFact{}, false
	}
	path := unquote(f.text(first))

	method := ""
	switch {
	case selector == "HandleFunc" || selector == "Handle":
		method = "ANY"
		if m, p, ok := strings.Cut(path, " "); ok && httpMethods[strings.ToUpper(m)] {
			method, path = strings.ToUpper(m), strings.TrimSpace(p)
		}
		if chained := chainedMethods(f, call); chained != "" {
			method = chained
		}
	case httpMethods[strings.ToUpper(selector)]:
		method = strings.ToUpper(selector)
	default:
		return artifact.CodeFact{}, false
	}
	if !strings.HasPrefix(path, "/") {
		return artifact.CodeFact{}, false
	}

	handler := ""
	if n := int(args.NamedChildCount()); n > 1 {
		handler = lastSegment(f.text(args.NamedChild(n - 1)))
	}
	return endpointFact(f, call, method, path, handler), true
}

// chainedMethods reads r.HandleFunc(...).Methods("GET") style restrictions.
func chainedMethods(f *sourceFile, call *sitter.Node) string {
	sel := call.Parent()
	if sel == nil || sel.Type() != "selector_expression" || f.text(sel.ChildByFieldName("field")) != "Methods" {
		return ""
	}
	outer := sel.Parent()
	if outer == nil || outer.Type() != "call_expression" {
		return ""
	}
	args := outer.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	return strings.ToUpper(unquote(f.text(args.NamedChild(0))))
}

func (goLang) tests(f *sourceFile) []testCase {
	var cases []testCase
	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		n := f.root.NamedChild(i)
		if n.Type() != "function_declaration" {
			continue
		}
		name := f.text(n.ChildByFieldName("name"))
		rest, ok := strings.CutPrefix(name, "Test")
		if !ok || rest == "" || rest == "Main" {
			continue
		}
		subject, _, _ := strings.Cut(rest, "_")
		cases = append(cases, testCase{
			name:     name,
			line:     int(n.StartPoint().Row) + 1,
			comment:  leadingComments(n, f.src),
			subjects: []string{subject},
		})
	}
	return cases
}
