// Package descriptor turns a GraphQL query document into an immutable
// description of the operation: its name, the text sent over the wire, its
// declared variables and the tree of fields it selects.
//
// Descriptors are built once (typically at startup from an embedded document)
// and then shared read-only by the transport, the normalized store and the
// query environment.
package descriptor

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	language "github.com/hanpama/ghcard/internal/language"
)

// IDField is the field used as the identity of an entity.
const IDField = "id"

// Descriptor describes one named query operation.
type Descriptor struct {
	// Name is the operation name.
	Name string
	// ID is a content hash of Text.
	ID string
	// Text is the operation as sent to the data service, including generated
	// id selections.
	Text string
	// Params are the declared variables in declaration order.
	Params []Param
	// Selections is the root selection set on the query type.
	Selections []*Selection
	// RootType is the schema's query type name.
	RootType string
}

// Param is a declared operation variable.
type Param struct {
	Name    string
	Type    *language.Type
	Default *language.Value
}

// Required reports whether the caller must supply the variable.
func (p Param) Required() bool { return p.Type.NonNull && p.Default == nil }

// Build validates source against schema and returns its descriptor. The
// document must contain exactly one named query operation.
func Build(schema *language.Schema, source string) (*Descriptor, error) {
	doc, err := language.LoadQuery(schema, source)
	if err != nil {
		return nil, fmt.Errorf("descriptor: %w", err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrOperationCount, len(doc.Operations))
	}
	op := doc.Operations[0]
	if op.Operation != language.Query {
		return nil, fmt.Errorf("%w: %s", ErrNotQuery, op.Operation)
	}
	if op.Name == "" {
		return nil, ErrAnonymous
	}
	if schema.Query == nil {
		return nil, fmt.Errorf("descriptor: schema has no query type")
	}

	b := &builder{schema: schema, fragments: doc.Fragments}
	sels, flat, err := b.selectionSet(schema.Query, op.SelectionSet)
	if err != nil {
		return nil, err
	}

	// The AST was rewritten with fragments inlined and generated id fields
	// appended, so the printed text requests exactly what Selections describe.
	op.SelectionSet = flat
	doc.Fragments = nil
	text := language.FormatQuery(doc)
	sum := md5.Sum([]byte(text))

	params := make([]Param, 0, len(op.VariableDefinitions))
	for _, v := range op.VariableDefinitions {
		params = append(params, Param{Name: v.Variable, Type: v.Type, Default: v.DefaultValue})
	}

	return &Descriptor{
		Name:       op.Name,
		ID:         hex.EncodeToString(sum[:]),
		Text:       text,
		Params:     params,
		Selections: sels,
		RootType:   schema.Query.Name,
	}, nil
}

// MustBuild is like Build but panics on error. It is meant for embedded
// documents that are known to be valid.
func MustBuild(schema *language.Schema, source string) *Descriptor {
	d, err := Build(schema, source)
	if err != nil {
		panic(err)
	}
	return d
}

// Param returns the declared variable with the given name.
func (d *Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
