package descriptor

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	language "github.com/hanpama/ghcard/internal/language"
)

// SelectionKind distinguishes leaf fields from fields with a sub-selection.
type SelectionKind int

const (
	KindScalar SelectionKind = iota
	KindLinked
)

func (k SelectionKind) String() string {
	if k == KindLinked {
		return "LinkedField"
	}
	return "ScalarField"
}

// Selection is one field of the response shape.
type Selection struct {
	Kind      SelectionKind
	Name      string
	Alias     string
	Arguments []Argument
	// ConcreteType is the object type of a linked field.
	ConcreteType string
	// Plural is set for list-typed fields.
	Plural bool
	// Generated marks selections added for normalization (id). They are
	// requested from the data service but not projected back to readers.
	Generated  bool
	Selections []*Selection
}

// Argument is a field argument; Value is either a literal or a variable.
type Argument struct {
	Name  string
	Value *language.Value
}

// ResponseKey is the key under which the field appears in a response.
func (s *Selection) ResponseKey() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// ArgumentValues resolves the field arguments against vars. Arguments
// resolving to null are omitted.
func (s *Selection) ArgumentValues(vars map[string]any) (map[string]any, error) {
	if len(s.Arguments) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(s.Arguments))
	for _, a := range s.Arguments {
		v, err := a.Value.Value(vars)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out[a.Name] = v
	}
	return out, nil
}

// StorageKey identifies the field within a normalized record:
// the bare name without arguments, otherwise name(arg:<json>,...) with
// arguments sorted by name, e.g. repositories(first:4).
func (s *Selection) StorageKey(vars map[string]any) (string, error) {
	args, err := s.ArgumentValues(vars)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return s.Name, nil
	}
	names := make([]string, 0, len(args))
	for n := range args {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteByte('(')
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		enc, err := marshalCompact(args[n])
		if err != nil {
			return "", err
		}
		sb.WriteString(n)
		sb.WriteByte(':')
		sb.Write(enc)
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func arguments(list language.ArgumentList) []Argument {
	if len(list) == 0 {
		return nil
	}
	out := make([]Argument, len(list))
	for i, a := range list {
		out[i] = Argument{Name: a.Name, Value: a.Value}
	}
	return out
}

// marshalCompact encodes v as JSON without HTML escaping or a trailing newline.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
