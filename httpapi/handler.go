package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/middleware"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

const maxFormBytes = 4 << 10

// Engine is the part of goSocialAuth.Engine the handlers use.
type Engine interface {
	Authenticate(ctx context.Context, principal *identity.Principal) (pipeline.Result, error)
	SignIn(ctx context.Context, req goSocialAuth.SignInRequest) (pipeline.Result, error)
	ConfirmSignIn(ctx context.Context, sessionID, code string) (pipeline.Result, error)
	AuthorizeURL(provider string) (string, error)
	ParsePrincipal(token string) (*identity.Principal, error)
}

// Handler serves the sign-in endpoints.
type Handler struct {
	engine      Engine
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	limiter     *middleware.IPLimiter
	trustProxy  bool
	popupOrigin string
}

// Config holds the Handler dependencies.
type Config struct {
	Engine Engine
	Logger *slog.Logger
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Limiter throttles the sign-in endpoints per client IP. Nil disables it.
	Limiter *middleware.IPLimiter
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// PopupOrigin is the target origin the callback page posts its result
	// to. Empty means the page's own origin.
	PopupOrigin string
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:      cfg.Engine,
		logger:      logger,
		gatherer:    cfg.Gatherer,
		limiter:     cfg.Limiter,
		trustProxy:  cfg.TrustProxy,
		popupOrigin: cfg.PopupOrigin,
	}
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// AuthCheck runs the Authenticate flow for the request's bearer principal.
func (h *Handler) AuthCheck(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	res, err := h.engine.Authenticate(r.Context(), principal)
	h.writeResult(w, r, res, err)
}

// StartSignIn redirects the browser to the provider's authorization page.
func (h *Handler) StartSignIn(w http.ResponseWriter, r *http.Request) {
	target, err := h.engine.AuthorizeURL(r.PathValue("provider"))
	if err != nil {
		if errors.Is(err, goSocialAuth.ErrUnknownProvider) {
			writeJSON(w, http.StatusNotFound, pipeline.NewError(err.Error()))
			return
		}
		h.internalError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes a provider redirect and renders the popup page.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.engine.SignIn(r.Context(), goSocialAuth.SignInRequest{
		Provider:         r.PathValue("provider"),
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	status := http.StatusOK
	if err != nil {
		status, res = h.failureResult(r, err)
	}
	h.writePopup(w, r, status, res)
}

// ConfirmSignIn redeems a mailed confirmation code. It expects the form
// fields sessionId and code.
func (h *Handler) ConfirmSignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, pipeline.NewError("malformed form"))
		return
	}
	res, err := h.engine.ConfirmSignIn(r.Context(), r.PostForm.Get("sessionId"), r.PostForm.Get("code"))
	h.writeResult(w, r, res, err)
}
