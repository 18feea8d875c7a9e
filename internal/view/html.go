package view

import (
	"html/template"
	"io"

	profile "github.com/hanpama/ghcard/internal/profile"
)

const pageLayout = `{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{- if .Refresh}}
<meta http-equiv="refresh" content="{{.Refresh}}">
{{- end}}
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: sans-serif; }
.App-header { background: #282c34; min-height: 100vh; display: flex; flex-direction: column; align-items: center; justify-content: center; color: white; }
.App-header a { color: #61dafb; }
</style>
</head>
<body>
<div class="App">
<header class="App-header">
{{end}}
{{define "foot"}}</header>
</div>
</body>
</html>
{{end}}
{{define "fallback"}}{{template "head" .}}<p>{{.Message}}</p>
{{template "foot"}}{{end}}
{{define "failure"}}{{template "head" .}}<p>Something went wrong.</p>
<p>{{.Message}}</p>
{{template "foot"}}{{end}}
{{define "profile"}}{{template "head" .}}{{with .Profile}}<img src="{{.AvatarURL}}" alt="user" style="width: 120px; border-radius: 60px">
<p>User name: {{.Name | deref}}</p>
<p>Login: {{.Login}}</p>
<p>Live in: {{.Location | deref}}</p>
<p>Create date: {{.CreatedAt}}</p>
<p>Url: <a href="{{.URL}}">{{.URL}}</a></p>
<p>Repos: {{.Repositories.TotalCount}}</p>
<ul class="repositories">
{{- range .Repositories.Nodes}}{{if .}}
<li><strong>{{.Name}}</strong>{{with .Description | deref}} {{.}}{{end}}</li>
{{- end}}{{end}}
</ul>
{{else}}<p>User not found.</p>
{{end}}{{template "foot"}}{{end}}`

var pages = template.Must(template.New("page").Funcs(template.FuncMap{"deref": deref}).Parse(pageLayout))

type page struct {
	Title   string
	Refresh int
	Message string
	Profile *profile.Profile
}

// HTML renders a standalone page. RefreshSeconds > 0 makes the fallback page
// reload itself so a browser picks up the resolved card.
type HTML struct {
	RefreshSeconds int
}

func (h HTML) Fallback(w io.Writer) error {
	return pages.ExecuteTemplate(w, "fallback", page{Title: "ghcard", Refresh: h.RefreshSeconds, Message: LoadingMessage})
}

func (HTML) Profile(w io.Writer, p *profile.Profile) error {
	title := "ghcard"
	if p != nil {
		title = p.DisplayName()
	}
	return pages.ExecuteTemplate(w, "profile", page{Title: title, Profile: p})
}

func (HTML) Failure(w io.Writer, err error) error {
	return pages.ExecuteTemplate(w, "failure", page{Title: "ghcard", Message: err.Error()})
}
