package language

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const testSDL = `
type Query { user(login: String!): User }
type User { id: ID! login: String! name: String }
`

func TestLoadQueryResolvesDefinitions(t *testing.T) {
	s, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	doc, err := LoadQuery(s, `query Q { user(login: "a") { login name } }`)
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)

	f := doc.Operations[0].SelectionSet[0].(*Field)
	require.NotNil(t, f.Definition)
	require.Equal(t, "User", f.Definition.Type.Name())
}

func TestLoadQueryReportsValidationErrors(t *testing.T) {
	s, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	_, err = LoadQuery(s, `query Q { user(login: "a") { nope } }`)
	require.Error(t, err)
	var list gqlerror.List
	require.True(t, errors.As(err, &list))
	require.Contains(t, list[0].Message, "nope")
}

func TestFormatQueryRoundTrip(t *testing.T) {
	doc, err := ParseQuery(`query Q{user(login:"a"){login}}`)
	require.NoError(t, err)
	out := FormatQuery(doc)
	require.True(t, strings.HasPrefix(out, "query Q {"), out)

	again, err := ParseQuery(out)
	require.NoError(t, err)
	require.Equal(t, "Q", again.Operations[0].Name)
}
