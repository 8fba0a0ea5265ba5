package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultNavigationDelay = 2 * time.Second

	MessageConnected     = "Square account connected successfully! Authorization code sent to backend."
	MessageNoCode        = "No authorization code received"
	MessageStateMismatch = "OAuth state mismatch"
)

var ErrHandlerBusy = errors.New("oauth callback is already being handled")

// CallbackParams are the query fields of the terminal Square redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

func ParamsFromQuery(query url.Values) CallbackParams {
	return CallbackParams{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            query.Get("state"),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: query.Get("error_description"),
	}
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type Outcome struct {
	Status  Status
	Message string
	// NavigateTo is set on success; navigation happens NavigateAfter later.
	NavigateTo    string
	NavigateAfter time.Duration
	// RetryURL points back at the connection screen on failure.
	RetryURL string
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

type ConnectionRefresher interface {
	RefreshConnection(ctx context.Context) error
}

type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) {
	f(target)
}

type HandlerOptions struct {
	Tokens      ports.TokenStore
	Diagnostics ports.Diagnostics
	Session     ConnectionRefresher
	Navigator   Navigator

	// ExpectedState is checked only when set.
	ExpectedState   string
	RedirectURI     string
	LandingURL      string
	RetryURL        string
	NavigationDelay time.Duration

	Clock  ports.Clock
	Logger zerolog.Logger
}

// Handler processes one Square redirect. Each handler serves exactly one
// callback; later calls return the first outcome without side effects.
type Handler struct {
	opts     HandlerOptions
	latch    Latch
	done     chan struct{}
	outcome  Outcome
	schedule func(time.Duration, func())

	mu    sync.Mutex
	timer interface{ Stop() bool }
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	if opts.Diagnostics == nil {
		return nil, errors.New("diagnostics collaborator is required")
	}
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.NavigationDelay <= 0 {
		opts.NavigationDelay = DefaultNavigationDelay
	}

	h := &Handler{opts: opts, done: make(chan struct{})}
	h.schedule = func(delay time.Duration, fn func()) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.timer = time.AfterFunc(delay, fn)
	}
	return h, nil
}

// Handle runs the callback once. A concurrent duplicate waits for the first
// call to finish, or returns ErrHandlerBusy when ctx ends first.
func (h *Handler) Handle(ctx context.Context, params CallbackParams) (Outcome, error) {
	if !h.latch.TryFire() {
		select {
		case <-h.done:
			h.opts.Logger.Debug().Msg("duplicate oauth callback ignored")
			return h.outcome, nil
		case <-ctx.Done():
			return Outcome{}, ErrHandlerBusy
		}
	}
	defer close(h.done)

	h.outcome = h.process(ctx, params)
	return h.outcome, nil
}

// Outcome returns the result of the first call, if it has finished.
func (h *Handler) Outcome() (Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Stop cancels a pending navigation.
func (h *Handler) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *Handler) process(ctx context.Context, params CallbackParams) Outcome {
	now := h.opts.Clock.Now()

	if params.Error != "" {
		message := "OAuth Error: " + params.Error
		if description := strings.TrimSpace(params.ErrorDescription); description != "" {
			message += ": " + description
		}

		h.forward(ctx, domain.OAuthReport{
			Error:            params.Error,
			ErrorDescription: params.ErrorDescription,
			State:            params.State,
			Timestamp:        now,
		})
		return h.failure(message)
	}

	if params.Code == "" {
		return h.failure(MessageNoCode)
	}

	if h.opts.ExpectedState != "" && params.State != h.opts.ExpectedState {
		h.opts.Logger.Warn().Msg("oauth callback state mismatch")
		return h.failure(MessageStateMismatch)
	}

	report := domain.OAuthReport{
		Code:        params.Code,
		State:       params.State,
		Timestamp:   now,
		RedirectURI: h.opts.RedirectURI,
	}
	credential, err := h.opts.Tokens.Get(ctx)
	switch {
	case err == nil:
		report.HasCredential = true
		report.Credential = credential
	case !errors.Is(err, domain.ErrCredentialAbsent):
		h.opts.Logger.Warn().Err(err).Msg("read credential for oauth report")
	}
	h.forward(ctx, report)

	outcome := Outcome{
		Status:        StatusSuccess,
		Message:       MessageConnected,
		NavigateTo:    h.opts.LandingURL,
		NavigateAfter: h.opts.NavigationDelay,
	}

	if err := h.opts.Session.RefreshConnection(ctx); err != nil {
		h.opts.Logger.Warn().Err(err).Msg("refresh connection after oauth callback")
	}

	if h.opts.Navigator != nil {
		target := h.opts.LandingURL
		h.schedule(h.opts.NavigationDelay, func() { h.opts.Navigator.Navigate(target) })
	}

	return outcome
}

func (h *Handler) failure(message string) Outcome {
	return Outcome{Status: StatusFailure, Message: message, RetryURL: h.opts.RetryURL}
}

// forward delivers the report on a best effort basis.
func (h *Handler) forward(ctx context.Context, report domain.OAuthReport) {
	if err := h.opts.Diagnostics.ReportOAuth(ctx, report); err != nil {
		h.opts.Logger.Error().Err(err).Msg("send oauth data to backend")
		return
	}
	h.opts.Logger.Debug().Bool("failed", report.Failed()).Msg("oauth data sent to backend")
}
