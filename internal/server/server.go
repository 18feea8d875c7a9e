package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	environment "github.com/hanpama/ghcard/internal/environment"
	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	reqid "github.com/hanpama/ghcard/internal/reqid"
	view "github.com/hanpama/ghcard/internal/view"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Loader returns the handle of the profile query. It is called on every
// request, so it should go through Environment.Fetch to share one fetch.
type Loader func() (*environment.Handle, error)

// Handler is an http.Handler that serves the profile card as an HTML page
// and as a GraphQL-style JSON envelope.
type Handler struct {
	env  *environment.Environment
	load Loader
	opt  Options
}

type Options struct {
	// SuspendTimeout is how long a request waits for a pending handle before
	// the fallback is served. 0 means do not wait.
	SuspendTimeout time.Duration

	// RefreshSeconds is the meta refresh interval of the fallback page.
	RefreshSeconds int

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool
}

type Option func(*Options)

func WithPretty() Option { return func(o *Options) { o.Pretty = true } }
func WithSuspendTimeout(d time.Duration) Option {
	return func(o *Options) { o.SuspendTimeout = d }
}
func WithRefreshSeconds(n int) Option { return func(o *Options) { o.RefreshSeconds = n } }

// New creates a handler that reads the handle returned by load from env.
func New(env *environment.Environment, load Loader, opts ...Option) *Handler {
	op := Options{SuspendTimeout: 2 * time.Second, RefreshSeconds: 1}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{env: env, load: load, opt: op}
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, _ := reqid.NewContext(r.Context())
	status := http.StatusOK
	state := ""
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, HandleState: state, Duration: time.Since(start)})
	}()

	if r.URL.Path != "/" && r.URL.Path != "/profile.json" {
		status = http.StatusNotFound
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", status)
		return
	}

	h, err := s.handle(r)
	if err != nil {
		status = http.StatusInternalServerError
		if r.URL.Path == "/profile.json" {
			writeJSON(w, status, envelope{Errors: toList(err)}, s.opt.Pretty)
		} else {
			s.writeFailure(w, status, err)
		}
		return
	}
	s.suspend(ctx, h)
	state = h.State().String()

	if r.URL.Path == "/profile.json" {
		status = s.serveJSON(w, h)
		return
	}
	status = s.servePage(w, h)
}

// handle loads the handle, dropping a settled one first on ?refresh=1.
func (s *Handler) handle(r *http.Request) (*environment.Handle, error) {
	h, err := s.load()
	if err != nil || r.URL.Query().Get("refresh") != "1" {
		return h, err
	}
	if _, err := s.env.Invalidate(h.Descriptor(), h.Variables()); err != nil {
		return nil, err
	}
	return s.load()
}

func (s *Handler) suspend(ctx context.Context, h *environment.Handle) {
	if s.opt.SuspendTimeout <= 0 || h.State() != environment.Pending {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.opt.SuspendTimeout)
	defer cancel()
	_ = h.Wait(ctx)
}

func (s *Handler) servePage(w http.ResponseWriter, h *environment.Handle) int {
	r := view.HTML{RefreshSeconds: s.opt.RefreshSeconds}
	var buf bytes.Buffer
	st, err := view.RenderNow(&buf, s.env, h, r)
	if err == nil {
		return writeHTML(w, http.StatusOK, &buf)
	}
	status := http.StatusInternalServerError
	if st == environment.Failed {
		status = http.StatusBadGateway
	}
	return s.writeFailure(w, status, err)
}

func (s *Handler) writeFailure(w http.ResponseWriter, status int, err error) int {
	var buf bytes.Buffer
	if rerr := (view.HTML{}).Failure(&buf, err); rerr != nil {
		http.Error(w, err.Error(), status)
		return status
	}
	return writeHTML(w, status, &buf)
}

func writeHTML(w http.ResponseWriter, status int, buf *bytes.Buffer) int {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return status
}

// ------------------ JSON envelope ------------------

type envelope struct {
	Data       any            `json:"data"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (s *Handler) serveJSON(w http.ResponseWriter, h *environment.Handle) int {
	res := s.env.Read(h)
	var (
		status = http.StatusOK
		out    envelope
	)
	switch res.State {
	case environment.Pending:
		status = http.StatusAccepted
		out.Extensions = map[string]any{"state": res.State.String()}
	case environment.Failed:
		status = http.StatusBadGateway
		out.Errors = toList(res.Err)
	default:
		out.Data = res.Data
	}
	writeJSON(w, status, out, s.opt.Pretty)
	return status
}

func toList(err error) gqlerror.List {
	var gerr *environment.GraphQLError
	if errors.As(err, &gerr) && len(gerr.Errors) > 0 {
		return gerr.Errors
	}
	return gqlerror.List{{Message: err.Error()}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
