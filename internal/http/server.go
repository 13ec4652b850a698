package http

import (
	"context"
	"net/http"
	"time"

	"contas/internal/core"
	"contas/internal/log"
	"contas/internal/middleware/ratelimit"
	"contas/internal/middleware/security"
	"contas/internal/middleware/trace"
	"contas/internal/services"
	"contas/internal/storage"
)

// Server is the JSON API over the ledger, statement, and reserve services.
type Server struct {
	httpServer *http.Server
	ledger     *services.LedgerService
	statements *services.StatementService
	reserves   *services.ReserveService
	repo       *storage.SQLiteRepository
	limiter    *ratelimit.Limiter
	logger     *log.Logger

	// today is swappable so tests can pin the reference date.
	today func() core.Date
}

func NewServer(addr string, ledger *services.LedgerService, statements *services.StatementService, reserves *services.ReserveService, repo *storage.SQLiteRepository, logger *log.Logger) *Server {
	s := &Server{
		ledger:     ledger,
		statements: statements,
		reserves:   reserves,
		repo:       repo,
		limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		logger:     logger,
		today:      func() core.Date { return core.DateOf(time.Now()) },
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/projection", s.handleProjection)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)

	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/cards/{id}/statement", s.handleStatement)
	mux.HandleFunc("POST /api/cards/{id}/pay", s.handlePayInvoice)
	mux.HandleFunc("GET /api/cards/{id}/future", s.handleFutureCycles)

	mux.HandleFunc("GET /api/reserves", s.handleListReserves)
	mux.HandleFunc("POST /api/reserves", s.handleCreateReserve)
	mux.HandleFunc("GET /api/reserves/{id}", s.handleGetReserve)
	mux.HandleFunc("DELETE /api/reserves/{id}", s.handleDeleteReserve)
	mux.HandleFunc("POST /api/reserves/{id}/transactions", s.handleReserveTransaction)
	mux.HandleFunc("GET /api/reserves/{id}/plan", s.handleReservePlan)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(clientIP, s.rateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(clientIP).Middleware(handler)
	if s.logger != nil {
		handler = log.Middleware(s.logger)(handler)
	}
	return handler
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
