package view

import (
	"fmt"
	"io"
	"strings"

	profile "github.com/hanpama/ghcard/internal/profile"
)

// Text renders for a terminal.
type Text struct{}

func (Text) Fallback(w io.Writer) error {
	_, err := fmt.Fprintln(w, LoadingMessage)
	return err
}

func (Text) Profile(w io.Writer, p *profile.Profile) error {
	if p == nil {
		_, err := fmt.Fprintln(w, "User not found.")
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Avatar: %s\n", p.AvatarURL)
	fmt.Fprintf(&sb, "User name: %s\n", deref(p.Name))
	fmt.Fprintf(&sb, "Login: %s\n", p.Login)
	fmt.Fprintf(&sb, "Live in: %s\n", deref(p.Location))
	fmt.Fprintf(&sb, "Create date: %s\n", p.CreatedAt)
	fmt.Fprintf(&sb, "Url: %s\n", p.URL)
	fmt.Fprintf(&sb, "Repos: %d\n", p.Repositories.TotalCount)
	for _, r := range p.Repositories.Nodes {
		if r == nil {
			continue
		}
		if d := deref(r.Description); d != "" {
			fmt.Fprintf(&sb, "  - %s: %s\n", r.Name, d)
		} else {
			fmt.Fprintf(&sb, "  - %s\n", r.Name)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (Text) Failure(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %v\n", err)
	return werr
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
