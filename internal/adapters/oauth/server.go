package oauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	CallbackPath = "/auth/square/callback"
	LandingPath  = "/dashboard"
	RetryPath    = "/settings"
)

var ErrCallbackTimeout = errors.New("timed out waiting for square callback")

var pageTemplate = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .RefreshURL}}
<meta http-equiv="refresh" content="{{.RefreshSeconds}};url={{.RefreshURL}}">
{{- end}}
</head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{- if .RetryURL}}
<p><a href="{{.RetryURL}}">Try again</a></p>
{{- end}}
</body>
</html>
`))

type page struct {
	Title          string
	Message        string
	RefreshURL     string
	RefreshSeconds int
	RetryURL       string
}

// CallbackServer receives the Square redirect on a local port and hands the
// outcome to whoever waits on it.
type CallbackServer struct {
	handler    *Handler
	listener   net.Listener
	server     *http.Server
	outcomeCh  chan Outcome
	outcomeOne sync.Once
	closeOnce  sync.Once
}

// HandlerFactory builds the callback handler once the server knows its own
// redirect URI.
type HandlerFactory func(redirectURI string) (*Handler, error)

func StartCallbackServer(listenAddr string, newHandler HandlerFactory) (*CallbackServer, error) {
	if newHandler == nil {
		return nil, errors.New("handler factory is required")
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		listener:  listener,
		outcomeCh: make(chan Outcome, 1),
	}

	handler, err := newHandler(cb.RedirectURI())
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("build callback handler: %w", err)
	}
	cb.handler = handler

	cb.server = &http.Server{Handler: cb.routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.deliver(Outcome{Status: StatusFailure, Message: serveErr.Error()})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get(CallbackPath, c.handleCallback)
	r.Get(LandingPath, func(w http.ResponseWriter, _ *http.Request) {
		render(w, http.StatusOK, page{
			Title:   "Square connected",
			Message: "You can close this window and return to the terminal.",
		})
	})
	r.Get(RetryPath, func(w http.ResponseWriter, _ *http.Request) {
		render(w, http.StatusOK, page{
			Title:   "Connect Square",
			Message: "Run squarelink connect again to restart the authorization.",
		})
	})

	return r
}

func (c *CallbackServer) BaseURL() string {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d", tcpAddr.Port)
	}
	return "http://localhost"
}

func (c *CallbackServer) RedirectURI() string {
	return c.BaseURL() + CallbackPath
}

func (c *CallbackServer) Handler() *Handler {
	return c.handler
}

// Wait blocks until the callback has been handled or ctx ends.
func (c *CallbackServer) Wait(ctx context.Context) (Outcome, error) {
	select {
	case outcome := <-c.outcomeCh:
		return outcome, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{}, ErrCallbackTimeout
		}
		return Outcome{}, ctx.Err()
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.handler.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		closeErr = c.server.Shutdown(ctx)
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	outcome, err := c.handler.Handle(r.Context(), ParamsFromQuery(r.URL.Query()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	c.deliver(outcome)

	if outcome.Succeeded() {
		render(w, http.StatusOK, page{
			Title:          "Square account connected",
			Message:        outcome.Message,
			RefreshURL:     outcome.NavigateTo,
			RefreshSeconds: int(outcome.NavigateAfter / time.Second),
		})
		return
	}

	render(w, http.StatusBadRequest, page{
		Title:    "Connection failed",
		Message:  outcome.Message,
		RetryURL: outcome.RetryURL,
	})
}

func (c *CallbackServer) deliver(outcome Outcome) {
	c.outcomeOne.Do(func() {
		c.outcomeCh <- outcome
	})
}

func render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, p)
}
