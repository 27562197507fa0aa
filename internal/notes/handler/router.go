package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronicle/pkg/platform/middleware/metadata"
	"chronicle/pkg/platform/middleware/requesttime"
	"chronicle/pkg/requestcontext"
	"chronicle/pkg/revision"
	revmetrics "chronicle/pkg/revision/metrics"
)

// ActorHeader carries the acting principal, normally injected by an
// authenticating proxy in front of the service.
const ActorHeader = "X-Actor"

// NewRouter wires the notes endpoints plus health and metrics.
func NewRouter(h *Handler, scopeMetrics *revmetrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(bridgeRequestID)
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(metadata.Actor(ActorHeader))
	r.Use(requesttime.Middleware)
	r.Use(seedTracker(scopeMetrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Register(r)
	return r
}

// seedTracker gives each request its own scope tracker. Requests are the
// unit of concurrency here, and seeding up front attaches scope metrics that
// a lazily created tracker would not carry.
func seedTracker(m *revmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trk := revision.NewTracker(revision.WithMetrics(m))
			next.ServeHTTP(w, r.WithContext(revision.WithTracker(r.Context(), trk)))
		})
	}
}

// bridgeRequestID copies chi's request ID into the transport-agnostic
// context, where the revision metadata picks it up.
func bridgeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			r = r.WithContext(requestcontext.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
