// Package view renders the user profile card. Rendering goes through a
// suspense boundary: while a handle is pending the renderer's fallback is
// shown, and the card replaces it once the handle resolves. Failures are not
// handled here; they are returned to the caller.
package view

import (
	"context"
	"io"

	environment "github.com/hanpama/ghcard/internal/environment"
	profile "github.com/hanpama/ghcard/internal/profile"
)

// LoadingMessage is the fallback text shown while data is pending.
const LoadingMessage = "Loading data..."

// Renderer draws the three states of a profile read.
type Renderer interface {
	// Fallback is drawn while the handle is pending.
	Fallback(w io.Writer) error
	// Profile draws the card. p is nil when the user does not exist.
	Profile(w io.Writer, p *profile.Profile) error
	// Failure draws the error boundary.
	Failure(w io.Writer, err error) error
}

// Render draws h once it is available. If h is still pending the fallback
// is drawn first. A failed handle, a decode error or a ctx error is
// returned without drawing anything further.
func Render(ctx context.Context, w io.Writer, env *environment.Environment, h *environment.Handle, r Renderer) error {
	res := env.Read(h)
	if res.State == environment.Pending {
		if err := r.Fallback(w); err != nil {
			return err
		}
		if err := h.Wait(ctx); err != nil {
			return err
		}
		res = env.Read(h)
	}
	return draw(w, res, r)
}

// RenderNow draws the current state of h without blocking: the fallback
// while pending, the card once resolved. A failure is returned, not drawn.
func RenderNow(w io.Writer, env *environment.Environment, h *environment.Handle, r Renderer) (environment.State, error) {
	res := env.Read(h)
	if res.State == environment.Pending {
		return res.State, r.Fallback(w)
	}
	return res.State, draw(w, res, r)
}

func draw(w io.Writer, res environment.Result, r Renderer) error {
	if res.State == environment.Failed {
		return res.Err
	}
	p, err := profile.Decode(res.Data)
	if err != nil {
		return err
	}
	return r.Profile(w, p)
}
