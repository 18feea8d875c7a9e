package descriptor

import (
	"fmt"

	language "github.com/hanpama/ghcard/internal/language"
	"github.com/vektah/gqlparser/v2/ast"
)

// collectedFieldMap preserves field order from the source query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{ResponseName: responseName, Fields: []*language.Field{field}})
}

type builder struct {
	schema    *language.Schema
	fragments ast.FragmentDefinitionList
}

// selectionSet converts set on parent into descriptor selections. It also
// returns the equivalent flattened AST selection set used to print the
// operation text.
func (b *builder) selectionSet(parent *language.Definition, set language.SelectionSet) ([]*Selection, language.SelectionSet, error) {
	grouped := newCollectedFieldMap()
	if err := b.collect(parent, set, grouped, map[string]bool{}); err != nil {
		return nil, nil, err
	}

	var (
		sels []*Selection
		flat language.SelectionSet
	)
	for _, cf := range grouped.fields {
		sel, field, err := b.field(cf)
		if err != nil {
			return nil, nil, err
		}
		sels = append(sels, sel)
		flat = append(flat, field)
	}
	return sels, flat, nil
}

func (b *builder) collect(parent *language.Definition, set language.SelectionSet, grouped *collectedFieldMap, visited map[string]bool) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			if err := checkDirectives(sel.Directives); err != nil {
				return err
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			grouped.add(name, sel)
		case *language.InlineFragment:
			if err := checkDirectives(sel.Directives); err != nil {
				return err
			}
			if sel.TypeCondition != "" && sel.TypeCondition != parent.Name {
				return fmt.Errorf("%w: inline fragment on %s inside %s", ErrAbstractFragment, sel.TypeCondition, parent.Name)
			}
			if err := b.collect(parent, sel.SelectionSet, grouped, visited); err != nil {
				return err
			}
		case *language.FragmentSpread:
			if err := checkDirectives(sel.Directives); err != nil {
				return err
			}
			if visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def := b.fragments.ForName(sel.Name)
			if def == nil {
				return fmt.Errorf("descriptor: unknown fragment %q", sel.Name)
			}
			if def.TypeCondition != parent.Name {
				return fmt.Errorf("%w: fragment %s on %s inside %s", ErrAbstractFragment, def.Name, def.TypeCondition, parent.Name)
			}
			if err := b.collect(parent, def.SelectionSet, grouped, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) field(cf collectedField) (*Selection, *language.Field, error) {
	first := cf.Fields[0]
	if first.Definition == nil {
		return nil, nil, fmt.Errorf("descriptor: field %q has no definition", first.Name)
	}
	merged := &language.Field{
		Alias:            first.Alias,
		Name:             first.Name,
		Arguments:        first.Arguments,
		Definition:       first.Definition,
		ObjectDefinition: first.ObjectDefinition,
		Position:         first.Position,
	}
	sel := &Selection{
		Kind:      KindScalar,
		Name:      first.Name,
		Alias:     first.Alias,
		Arguments: arguments(first.Arguments),
		Plural:    isPlural(first.Definition.Type),
	}
	if sel.Alias == sel.Name {
		sel.Alias = ""
	}

	typeName := first.Definition.Type.Name()
	def := b.schema.Types[typeName]
	if def == nil || (def.Kind != language.Object && def.Kind != language.Interface && def.Kind != language.Union) {
		return sel, merged, nil
	}
	if def.Kind != language.Object {
		return nil, nil, fmt.Errorf("%w: field %s returns %s", ErrAbstractFragment, first.Name, typeName)
	}

	var children language.SelectionSet
	for _, f := range cf.Fields {
		children = append(children, f.SelectionSet...)
	}
	subs, flat, err := b.selectionSet(def, children)
	if err != nil {
		return nil, nil, err
	}
	if idDef := def.Fields.ForName(IDField); idDef != nil && !hasResponseKey(subs, IDField) {
		subs = append(subs, &Selection{Kind: KindScalar, Name: IDField, Generated: true})
		flat = append(flat, &language.Field{Alias: IDField, Name: IDField, Definition: idDef, ObjectDefinition: def})
	}

	sel.Kind = KindLinked
	sel.ConcreteType = def.Name
	sel.Selections = subs
	merged.SelectionSet = flat
	return sel, merged, nil
}

func checkDirectives(list ast.DirectiveList) error {
	for _, d := range list {
		if d.Name == "skip" || d.Name == "include" {
			return fmt.Errorf("%w: @%s", ErrUnsupportedDirective, d.Name)
		}
	}
	return nil
}

func isPlural(t *language.Type) bool { return t != nil && t.Elem != nil }

func hasResponseKey(sels []*Selection, key string) bool {
	for _, s := range sels {
		if s.ResponseKey() == key {
			return true
		}
	}
	return false
}
