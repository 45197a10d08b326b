package codescan

import (
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pyLang extracts facts from Python sources.
type pyLang struct{}

func (pyLang) name() string               { return "python" }
func (pyLang) grammar() *sitter.Language { return python.GetLanguage() }

var pyModelBases = []string{"BaseModel", "Schema", "Model", "TypedDict"}

var pyRouteMethods = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT", "patch": "PATCH",
	"delete": "DELETE", "head": "HEAD", "options": "OPTIONS", "route": "",
	"api_route": "",
}

func (p pyLang) facts(f *sourceFile) []artifact.CodeFact {
	var facts []artifact.CodeFact
	for i := 0; i < int(f.root.NamedChildCount()); i++ {
		stmt := f.root.NamedChild(i)
		def := stmt
		var decorators []*sitter.Node
		if stmt.Type() == "decorated_definition" {
			def = stmt.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			for d := 0; d < int(stmt.NamedChildCount()); d++ {
				if c := stmt.NamedChild(d); c.Type() == "decorator" {
					decorators = append(decorators, c)
				}
			}
		}

		switch def.Type() {
		case "class_definition":
			if fact, ok := p.class(f, def, stmt, decorators); ok {
				facts = append(facts, fact)
			}
		case "function_definition":
			name := f.text(def.ChildByFieldName("name"))
			for _, d := range decorators {
				if fact, ok := p.route(f, d, name); ok {
					facts = append(facts, fact)
				}
			}
			if strings.HasPrefix(name, "_") {
				continue
			}
			fact := f.fact(artifact.FactComponent, name, name, def, stmt)
			p.describeFunc(f, def, &fact)
			facts = append(facts, fact)
		}
	}
	return facts
}

func (p pyLang) class(f *sourceFile, def, outer *sitter.Node, decorators []*sitter.Node) (artifact.CodeFact, bool) {
	name := f.text(def.ChildByFieldName("name"))
	if name == "" || strings.HasPrefix(name, "_") {
		return artifact.CodeFact{}, false
	}

	isModel := false
	bases := f.text(def.ChildByFieldName("superclasses"))
	for _, b := range pyModelBases {
		if strings.Contains(bases, b) {
			isModel = true
		}
	}
	for _, d := range decorators {
		if strings.Contains(f.text(d), "dataclass") {
			isModel = true
		}
	}

	body := def.ChildByFieldName("body")
	if !isModel {
		fact := f.fact(artifact.FactComponent, name, name, def, outer)
		fact.Signature = "class " + name
		var methods []string
		for i := 0; body != nil && i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			if m.Type() == "decorated_definition" {
				m = m.ChildByFieldName("definition")
			}
			if m == nil || m.Type() != "function_definition" {
				continue
			}
			if mn := f.text(m.ChildByFieldName("name")); !strings.HasPrefix(mn, "_") {
				methods = append(methods, mn)
			}
		}
		if len(methods) > 0 {
			fact.Attributes["methods"] = joinSorted(methods)
		}
		return fact, true
	}

	fact := f.fact(artifact.FactDataModel, name, name, def, outer)
	fact.Signature = "class " + name
	var fields, required []string
	for i := 0; body != nil && i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		typ := assign.ChildByFieldName("type")
		if left == nil || left.Type() != "identifier" || typ == nil {
			continue
		}
		field := f.text(left)
		fields = append(fields, field)
		t := f.text(typ)
		if assign.ChildByFieldName("right") == nil && !strings.Contains(t, "Optional") && !strings.Contains(t, "None") {
			required = append(required, field)
		}
	}
	fact.Attributes["fields"] = strings.Join(fields, ", ")
	fact.Attributes["required_fields"] = joinSorted(required)
	return fact, true
}

func (pyLang) describeFunc(f *sourceFile, def *sitter.Node, fact *artifact.CodeFact) {
	if params := def.ChildByFieldName("parameters"); params != nil {
		fact.Attributes["parameters"] = collapse(strings.TrimSuffix(strings.TrimPrefix(f.text(params), "("), ")"))
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		fact.Attributes["returns"] = collapse(f.text(ret))
	}
	if body := def.ChildByFieldName("body"); body != nil {
		fact.Signature = strings.TrimSuffix(collapse(string(f.src[def.StartByte():body.StartByte()])), ":")
	}
}

// route recognises Flask and FastAPI decorators such as @app.get("/items").
func (pyLang) route(f *sourceFile, decorator *sitter.Node, handler string) (artifact.CodeFact, bool) {
	if decorator.NamedChildCount() == 0 {
		return artifact.CodeFact{}, false
	}
	call := decorator.NamedChild(0)
	if call.Type() != "call" {
		return artifact.CodeFact{}, false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return artifact.CodeFact{}, false
	}
	method, ok := pyRouteMethods[f.text(fn.ChildByFieldName("attribute"))]
	if !ok {
		return artifact.CodeFact{}, false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 || args.NamedChild(0).Type() != "string" {
		return artifact.CodeFact{}, false
	}
	path := unquote(f.text(args.NamedChild(0)))
	if !strings.HasPrefix(path, "/") {
		return artifact.CodeFact{}, false
	}

	if method == "" {
		method = "GET"
		for i := 1; i < int(args.NamedChildCount()); i++ {
			kw := args.NamedChild(i)
			if kw.Type() != "keyword_argument" || f.text(kw.ChildByFieldName("name")) != "methods" {
				continue
			}
			if list := kw.ChildByFieldName("value"); list != nil && list.NamedChildCount() > 0 {
				method = strings.ToUpper(unquote(f.text(list.NamedChild(0))))
			}
		}
	}
	return endpointFact(f, decorator, method, path, handler), true
}

func (pyLang) tests(f *sourceFile) []testCase {
	var cases []testCase
	var visit func(n *sitter.Node, class string)
	visit = func(n *sitter.Node, class string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "decorated_definition" {
				c = c.ChildByFieldName("definition")
			}
			if c == nil {
				continue
			}
			switch c.Type() {
			case "class_definition":
				name := f.text(c.ChildByFieldName("name"))
				if body := c.ChildByFieldName("body"); body != nil && strings.HasPrefix(name, "Test") {
					visit(body, strings.TrimPrefix(name, "Test"))
				}
			case "function_definition":
				name := f.text(c.ChildByFieldName("name"))
				if !strings.HasPrefix(name, "test") {
					continue
				}
				tc := testCase{name: name, line: int(c.StartPoint().Row) + 1, comment: leadingComments(c, f.src)}
				if class != "" {
					tc.subjects = []string{class}
				}
				if body := c.ChildByFieldName("body"); body != nil && body.NamedChildCount() > 0 {
					if doc := body.NamedChild(0); doc.Type() == "expression_statement" {
						tc.comment += "\n" + f.text(doc)
					}
				}
				cases = append(cases, tc)
			}
		}
	}
	visit(f.root, "")
	return cases
}
