// Package profile holds the user profile queries and the Go shape of their
// results.
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	descriptor "github.com/hanpama/ghcard/internal/descriptor"
	language "github.com/hanpama/ghcard/internal/language"
)

// DefaultLogin is the login hardcoded in UserProfileQuery.
const DefaultLogin = "artem-tarasenko"

// RepositoryLimit is how many repositories the queries ask for by default.
const RepositoryLimit = 4

var (
	//go:embed schema.graphql
	schemaSDL string
	//go:embed user_profile.graphql
	userProfileSource string
	//go:embed user_profile_by_login.graphql
	userProfileByLoginSource string
)

var (
	loadOnce sync.Once
	schema   *language.Schema
	query    *descriptor.Descriptor
	byLogin  *descriptor.Descriptor
)

func load() {
	loadOnce.Do(func() {
		s, err := language.LoadSchema("schema.graphql", schemaSDL)
		if err != nil {
			panic(fmt.Sprintf("profile: load schema: %v", err))
		}
		schema = s
		query = descriptor.MustBuild(s, userProfileSource)
		byLogin = descriptor.MustBuild(s, userProfileByLoginSource)
	})
}

// Schema returns the GitHub schema subset the queries are validated against.
func Schema() *language.Schema { load(); return schema }

// Query returns the descriptor of UserProfileQuery, which takes no variables.
func Query() *descriptor.Descriptor { load(); return query }

// ByLoginQuery returns the descriptor of UserProfileByLoginQuery. It takes
// $login and an optional $first.
func ByLoginQuery() *descriptor.Descriptor { load(); return byLogin }

// Profile is the projection rendered by the views.
type Profile struct {
	Name         *string              `json:"name"`
	Login        string               `json:"login"`
	Location     *string              `json:"location"`
	CreatedAt    string               `json:"createdAt"`
	AvatarURL    string               `json:"avatarUrl"`
	URL          string               `json:"url"`
	Repositories RepositoryConnection `json:"repositories"`
}

type RepositoryConnection struct {
	TotalCount int                  `json:"totalCount"`
	Nodes      []*RepositorySummary `json:"nodes"`
}

type RepositorySummary struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Decode converts the data projected for either profile query into a
// Profile. A null user yields a nil Profile and no error.
func Decode(data map[string]any) (*Profile, error) {
	raw, ok := data["user"]
	if !ok {
		return nil, fmt.Errorf("profile: missing user field")
	}
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("profile: encode: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &p, nil
}

// DisplayName returns the name or, when it is null, the login.
func (p *Profile) DisplayName() string {
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return p.Login
}
