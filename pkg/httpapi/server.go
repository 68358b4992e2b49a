// Package httpapi is nclav's HTTP edge: bearer-authenticated reconcile
// and teardown endpoints, the Terraform HTTP backend protocol, IaC run
// and event history reads, and open health checks. Routing follows
// lecafecloud-terrascope's bare net/http wiring (no third-party router
// appears anywhere in the dependency corpus).
package httpapi

import (
	"net/http"

	"github.com/dragon-panic/nclav/pkg/reconciler"
	"github.com/dragon-panic/nclav/pkg/store"
	"github.com/dragon-panic/nclav/pkg/telemetry"
)

// Server wires the reconciler and store to the HTTP surface.
type Server struct {
	reconciler  *reconciler.Reconciler
	store       store.Store
	tel         *telemetry.Telemetry
	bearerToken string

	fallbackLog *telemetry.Logger
}

// Config constructs a Server.
type Config struct {
	Reconciler  *reconciler.Reconciler
	Store       store.Store
	Telemetry   *telemetry.Telemetry
	BearerToken string
}

func NewServer(cfg Config) *Server {
	fallback, _ := telemetry.NewLogger(telemetry.LoggingConfig{Level: "info", Format: "console", Output: "stdout"})
	return &Server{
		reconciler:  cfg.Reconciler,
		store:       cfg.Store,
		tel:         cfg.Telemetry,
		bearerToken: cfg.BearerToken,
		fallbackLog: fallback,
	}
}

// Handler builds the routed, middleware-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /reconcile", s.handleReconcile)
	protected.HandleFunc("POST /reconcile/dry-run", s.handleReconcileDryRun)

	protected.HandleFunc("GET /enclaves/{id}", s.handleGetEnclave)
	protected.HandleFunc("DELETE /enclaves/{id}", s.handleDeleteEnclave)
	protected.HandleFunc("DELETE /enclaves/{id}/partitions/{part}", s.handleDeletePartition)

	protected.HandleFunc("GET /terraform/state/{enclave}/{partition}", s.handleGetState)
	protected.HandleFunc("POST /terraform/state/{enclave}/{partition}", s.handlePutState)
	protected.HandleFunc("DELETE /terraform/state/{enclave}/{partition}", s.handleDeleteState)
	protected.HandleFunc("POST /terraform/state/{enclave}/{partition}/lock", s.handleLockState)
	protected.HandleFunc("DELETE /terraform/state/{enclave}/{partition}/lock", s.handleUnlockState)

	protected.HandleFunc("GET /enclaves/{id}/partitions/{part}/iac/runs", s.handleListIacRuns)
	protected.HandleFunc("GET /enclaves/{id}/partitions/{part}/iac/runs/latest", s.handleLatestIacRun)
	protected.HandleFunc("GET /enclaves/{id}/partitions/{part}/iac/runs/{runId}", s.handleGetIacRun)

	protected.HandleFunc("GET /events", s.handleListEvents)

	mux.Handle("/", s.bearerAuth(protected))

	return s.requestLogger(mux)
}

func (s *Server) logger() *telemetry.Logger {
	if s.tel == nil {
		return s.fallbackLog
	}
	return s.tel.Logger.NewComponentLogger("httpapi")
}
