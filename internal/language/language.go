package language

import (
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL. The GraphQL prelude (built-in scalars
// and directives) is included automatically.
func LoadSchema(name, sdl string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadQuery parses source and validates it against schema. Fields in the
// returned document carry their schema definitions.
func LoadQuery(schema *Schema, source string) (*QueryDocument, error) {
	doc, errs := gqlparser.LoadQuery(schema, source)
	if len(errs) > 0 {
		return nil, errs
	}
	return doc, nil
}

// FormatQuery prints doc in canonical form.
func FormatQuery(doc *QueryDocument) string {
	var sb strings.Builder
	formatter.NewFormatter(&sb).FormatQueryDocument(doc)
	return sb.String()
}
