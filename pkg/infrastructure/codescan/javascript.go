package codescan

import (
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// jsLang extracts facts from JavaScript and TypeScript sources. The grammars
// share node names for everything read here.
type jsLang struct {
	label string
	lang  *sitter.Language
}

func newJavaScript() jsLang { return jsLang{label: "javascript", lang: javascript.GetLanguage()} }
func newTypeScript() jsLang { return jsLang{label: "typescript", lang: typescript.GetLanguage()} }
func newTSX() jsLang        { return jsLang{label: "typescript", lang: tsx.GetLanguage()} }

func (j jsLang) name() string               { return j.label }
func (j jsLang) grammar() *sitter.Language { return j.lang }

var jsRouteMethods = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT", "patch": "PATCH",
	"delete": "DELETE", "del": "DELETE", "head": "HEAD", "options": "OPTIONS", "all": "ANY",
}

func (j jsLang) facts(f *sourceFile) []artifact.CodeFact {
	var facts []artifact.CodeFact
	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		stmt := f.root.NamedChild(i)
		decl := stmt
		if stmt.Type() == "export_statement" {
			decl = stmt.ChildByFieldName("declaration")
			if decl == nil {
				continue
			}
		}
		facts = append(facts, j.declaration(f, decl, stmt)...)
	}

	walk(f.root, func(n *sitter.Node) bool {
		if n.Type() == "call_expression" {
			if fact, ok := j.route(f, n); ok {
				facts = append(facts, fact)
			}
		}
		return true
	})
	return facts
}

func (j jsLang) declaration(f *sourceFile, decl, outer *sitter.Node) []artifact.CodeFact {
	switch decl.Type() {
	case "class_declaration", "abstract_class_declaration":
		name := f.text(decl.ChildByFieldName("name"))
		if name == "" {
			return nil
		}
		fact := f.fact(artifact.FactComponent, name, name, decl, outer)
		fact.Signature = "class " + name
		var methods []string
		if body := decl.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				m := body.NamedChild(i)
				if m.Type() != "method_definition" {
					continue
				}
				if mn := f.text(m.ChildByFieldName("name")); mn != "constructor" && !strings.HasPrefix(mn, "#") && !strings.HasPrefix(mn, "_") {
					methods = append(methods, mn)
				}
			}
		}
		if len(methods) > 0 {
			fact.Attributes["methods"] = joinSorted(methods)
		}
		return []artifact.CodeFact{fact}

	case "function_declaration", "generator_function_declaration":
		name := f.text(decl.ChildByFieldName("name"))
		if name == "" {
			return nil
		}
		fact := f.fact(artifact.FactComponent, name, name, decl, outer)
		j.describeFunc(f, decl, &fact)
		return []artifact.CodeFact{fact}

	case "lexical_declaration", "variable_declaration":
		var facts []artifact.CodeFact
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			v := decl.NamedChild(i)
			if v.Type() != "variable_declarator" {
				continue
			}
			value := v.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function", "function_expression":
			default:
				continue
			}
			name := f.text(v.ChildByFieldName("name"))
			fact := f.fact(artifact.FactComponent, name, name, v, outer)
			j.describeFunc(f, value, &fact)
			facts = append(facts, fact)
		}
		return facts

	case "interface_declaration":
		name := f.text(decl.ChildByFieldName("name"))
		return []artifact.CodeFact{j.model(f, name, decl.ChildByFieldName("body"), decl, outer)}

	case "type_alias_declaration":
		value := decl.ChildByFieldName("value")
		if value == nil || value.Type() != "object_type" {
			return nil
		}
		name := f.text(decl.ChildByFieldName("name"))
		return []artifact.CodeFact{j.model(f, name, value, decl, outer)}
	}
	return nil
}

func (jsLang) describeFunc(f *sourceFile, fn *sitter.Node, fact *artifact.CodeFact) {
	if params := fn.ChildByFieldName("parameters"); params != nil {
		fact.Attributes["parameters"] = collapse(strings.TrimSuffix(strings.TrimPrefix(f.text(params), "("), ")"))
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		fact.Attributes["returns"] = collapse(strings.TrimPrefix(f.text(ret), ":"))
	}
	if body := fn.ChildByFieldName("body"); body != nil {
		fact.Signature = collapse(string(f.src[fn.StartByte():body.StartByte()]))
		fact.Signature = strings.TrimSpace(strings.TrimSuffix(fact.Signature, "=>"))
	}
}

// model reads the property signatures of a TypeScript object type.
func (jsLang) model(f *sourceFile, name string, body, decl, outer *sitter.Node) artifact.CodeFact {
	fact := f.fact(artifact.FactDataModel, name, name, decl, outer)
	fact.Signature = "interface " + name
	if body == nil {
		return fact
	}
	var fields, required []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		prop := body.NamedChild(i)
		if prop.Type() != "property_signature" {
			continue
		}
		field := strings.Trim(f.text(prop.ChildByFieldName("name")), `"'`)
		if field == "" {
			continue
		}
		fields = append(fields, field)
		optional := false
		for c := 0; c < int(prop.ChildCount()); c++ {
			if prop.Child(c).Type() == "?" {
				optional = true
				break
			}
		}
		if !optional {
			required = append(required, field)
		}
	}
	fact.Attributes["fields"] = strings.Join(fields, ", ")
	fact.Attributes["required_fields"] = joinSorted(required)
	return fact
}

// route recognises express, koa-router and fastify style registrations.
func (jsLang) route(f *sourceFile, call *sitter.Node) (artifact.CodeFact, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "member_expression" {
		return artifact.CodeFact{}, false
	}
	method, ok := jsRouteMethods[f.text(fn.ChildByFieldName("property"))]
	if !ok {
		return artifact.CodeFact{}, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return artifact.CodeFact{}, false
	}
	first := args.NamedChild(0)
	if first.Type() != "string" && first.Type() != "template_string" {
		return artifact.CodeFact{}, false
	}
	path := unquote(f.text(first))
	if !strings.HasPrefix(path, "/") {
		return artifact.CodeFact{}, false
	}
	handler := ""
	if n := int(args.NamedChildCount()); n > 1 {
		handler = lastSegment(f.text(args.NamedChild(n - 1)))
	}
	return endpointFact(f, call, method, path, handler), true
}

func (jsLang) tests(f *sourceFile) []testCase {
	var cases []testCase
	walk(f.root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		callee := f.text(n.ChildByFieldName("function"))
		if callee != "it" && callee != "test" {
			return true
		}
		args := n.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return true
		}
		name := unquote(f.text(args.NamedChild(0)))
		tc := testCase{
			name:    name,
			line:    int(n.StartPoint().Row) + 1,
			comment: leadingComments(n, f.src),
		}
		for p := n.Parent(); p != nil; p = p.Parent() {
			if p.Type() != "call_expression" || f.text(p.ChildByFieldName("function")) != "describe" {
				continue
			}
			if pa := p.ChildByFieldName("arguments"); pa != nil && pa.NamedChildCount() > 0 {
				tc.subjects = append(tc.subjects, unquote(f.text(pa.NamedChild(0))))
			}
		}
		cases = append(cases, tc)
		return false
	})
	return cases
}
