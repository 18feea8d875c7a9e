package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RequiresEndpoint(t *testing.T) {
	c, err := New("")
	require.ErrorIs(t, err, ErrNoEndpoint)
	require.Nil(t, c)
}

func TestExecute_RequestShape(t *testing.T) {
	var (
		gotMethod string
		gotHeader http.Header
		gotBody   map[string]any
	)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"user":{"login":"a"}}}`))
	})

	c, err := New(srv.URL, WithToken("secret"), WithUserAgent("ghcard-test"))
	require.NoError(t, err)
	require.Equal(t, srv.URL, c.Endpoint())

	resp, err := c.Execute(context.Background(), "Q", "query Q { user(login: \"a\") { login } }", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"user":{"login":"a"}}`, string(resp.Data))
	require.Empty(t, resp.Errors)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	require.Equal(t, "Bearer secret", gotHeader.Get("Authorization"))
	require.Equal(t, "ghcard-test", gotHeader.Get("User-Agent"))
	require.Equal(t, map[string]any{
		"query":     "query Q { user(login: \"a\") { login } }",
		"variables": map[string]any{},
	}, gotBody)
}

func TestExecute_SendsVariables(t *testing.T) {
	var got Request
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), "Q", "query Q($login: String!) { user(login: $login) { login } }", map[string]any{"login": "octo"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"login": "octo"}, got.Variables)
}

func TestExecute_NoTokenOmitsAuthorization(t *testing.T) {
	var auth []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "Q", "{ x }", nil)
	require.NoError(t, err)
	require.Empty(t, auth)
}

func TestExecute_GraphQLErrorsAreReturnedNotRaised(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"user":null},"errors":[{"message":"x","path":["user"]},{"message":"y"}]}`))
	})
	c, err := New(srv.URL)
	require.NoError(t, err)

	resp, err := c.Execute(context.Background(), "Q", "{ user }", nil)
	require.NoError(t, err)
	require.Len(t, resp.Errors, 2)
	require.Equal(t, "x", resp.Errors[0].Message)
	require.JSONEq(t, `{"user":null}`, string(resp.Data))
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantOp     string
		wantStatus int
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			},
			wantOp:     "status",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantOp:     "status",
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantOp:     "decode",
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.handler)
			c, err := New(srv.URL)
			require.NoError(t, err)

			resp, err := c.Execute(context.Background(), "Q", "{ x }", nil)
			require.Nil(t, resp)
			var te *TransportError
			require.True(t, errors.As(err, &te), "got %T", err)
			require.Equal(t, tt.wantOp, te.Op)
			require.Equal(t, tt.wantStatus, te.StatusCode)
		})
	}
}

func TestExecute_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := New("http://" + addr + "/graphql")
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "Q", "{ x }", nil)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "send", te.Op)
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "Q", "{ x }", nil)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "send", te.Op)
}

func TestExecute_PublishesEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var starts []events.TransportStart
	var finishes []events.TransportFinish
	defer eventbus.Subscribe(func(_ context.Context, e events.TransportStart) { starts = append(starts, e) })()
	defer eventbus.Subscribe(func(_ context.Context, e events.TransportFinish) { finishes = append(finishes, e) })()

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "Q", "{ x }", nil)
	require.Error(t, err)

	require.Equal(t, []events.TransportStart{{OperationName: "Q", Endpoint: srv.URL}}, starts)
	require.Len(t, finishes, 1)
	require.Equal(t, http.StatusTeapot, finishes[0].Status)
	require.Error(t, finishes[0].Err)
}
