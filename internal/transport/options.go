package transport

import (
	"net/http"
	"time"
)

// DefaultEndpoint is the GitHub GraphQL API.
const DefaultEndpoint = "https://api.github.com/graphql"

// Options configures the HTTP transport.
//
// Defaults:
// - Timeout:   30s
// - UserAgent: ghcard
// - Client:    a new http.Client with Timeout
type Options struct {
	Token     string
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Timeout:   30 * time.Second,
		UserAgent: "ghcard",
	}
}

// WithToken sets the static credential sent as a bearer token.
func WithToken(token string) Option { return func(o *Options) { o.Token = token } }

// WithTimeout bounds each request, including reading the body. Values <= 0
// keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option { return func(o *Options) { o.UserAgent = ua } }

// WithHTTPClient replaces the underlying client; WithTimeout is then ignored.
func WithHTTPClient(c *http.Client) Option { return func(o *Options) { o.Client = c } }
