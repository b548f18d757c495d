package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrEthical07/goSocialAuth/middleware"
)

// RegisterRoutes registers all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		ClientIP(h.trustProxy),
	)
	throttled := Chain(
		chain,
		middleware.Throttle(h.limiter, h.clientIP),
	)

	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	mux.Handle("GET /auth/check", chain(middleware.Principal(h.engine)(http.HandlerFunc(h.AuthCheck))))

	mux.Handle("GET /signin/{provider}", throttled(http.HandlerFunc(h.StartSignIn)))
	mux.Handle("GET /signin/{provider}/callback", throttled(http.HandlerFunc(h.Callback)))
	mux.Handle("POST /signin/confirm", throttled(http.HandlerFunc(h.ConfirmSignIn)))
}

func (h *Handler) clientIP(r *http.Request) string {
	return middleware.ClientIP(r, h.trustProxy)
}
