package telemetry

import (
	"log"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scalefx-mixer/internal/config"
)

// NewMux builds the read-only debug/metrics router: Prometheus scrape
// target, a liveness probe, and pprof for offline profiling. Grounded on
// the teacher's StartDebugServer, rebuilt on chi (as internal/api/router.go
// already uses for the teacher's main API router) instead of the teacher's
// bare http.ServeMux, so routing stays consistent across the module.
func NewMux() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			pprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
		})
	})

	return r
}

// StartServer starts the debug/metrics HTTP server in the background per
// cfg. Like the teacher's StartDebugServer, this binds loopback-only
// unless the caller has deliberately widened ListenAddr — the mixer itself
// never calls this; wiring it in is a demo-binary concern.
func StartServer(cfg config.TelemetryConfig) {
	if !cfg.Enabled {
		log.Println("telemetry: debug server disabled")
		return
	}

	mux := NewMux()
	go func() {
		log.Printf("telemetry: debug server listening on %s", cfg.ListenAddr)
		log.Printf("telemetry:   metrics  http://%s/metrics", cfg.ListenAddr)
		log.Printf("telemetry:   healthz  http://%s/healthz", cfg.ListenAddr)
		log.Printf("telemetry:   pprof    http://%s/debug/pprof/", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("telemetry: debug server error: %v", err)
		}
	}()
}
