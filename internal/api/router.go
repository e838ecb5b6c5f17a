package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/scaffyhq/scaffy/internal/api/handlers"
	"github.com/scaffyhq/scaffy/internal/api/middleware"
)

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux        *http.ServeMux
	app        *App
	assignment *handlers.AssignmentHandler
	scaffold   *handlers.ScaffoldHandler
	hint       *handlers.HintHandler
	run        *handlers.RunHandler
	expensive  func(http.HandlerFunc) http.HandlerFunc
}

// NewRouter creates a new API router with all routes configured
func NewRouter(app *App) (http.Handler, error) {
	r := &Router{
		mux: http.NewServeMux(),
		app: app,
	}

	// Initialize handlers. The publisher is nil without a queue, which
	// makes test generation happen inline during parsing.
	var publisher handlers.TestGenPublisher
	if app.Producer != nil {
		publisher = app.Producer
	}
	r.assignment = handlers.NewAssignmentHandler(app.Parser, app.Store, publisher, app.logger)
	r.scaffold = handlers.NewScaffoldHandler(app.Codegen, app.Store)
	r.hint = handlers.NewHintHandler(app.Helper, app.Store, app.logger)
	r.run = handlers.NewRunHandler(app.Runner, app.Store)

	// Endpoints that call the LLM or the sandbox get a tighter limit.
	if app.Config.Debug {
		r.expensive = func(next http.HandlerFunc) http.HandlerFunc { return next }
	} else {
		r.expensive = middleware.ExpensiveRateLimit(middleware.DefaultRateLimitConfig())
	}

	// Register routes
	r.registerRoutes()

	// Build middleware chain
	handler := r.buildMiddlewareChain(r.mux, app)

	return handler, nil
}

func (r *Router) registerRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)

	// Assignments and breakdowns
	r.mux.HandleFunc("POST /api/v1/assignments", r.expensive(r.assignment.Create))
	r.mux.HandleFunc("GET /api/v1/assignments", r.assignment.List)
	r.mux.HandleFunc("GET /api/v1/assignments/{id}", r.assignment.Get)
	r.mux.HandleFunc("DELETE /api/v1/assignments/{id}", r.assignment.Delete)

	// Scaffolds
	r.mux.HandleFunc("POST /api/v1/starter-code", r.expensive(r.scaffold.StarterCode))
	r.mux.HandleFunc("POST /api/v1/assignments/{id}/scaffold", r.expensive(r.scaffold.ScaffoldFile))

	// Hints
	r.mux.HandleFunc("POST /api/v1/assignments/{id}/tasks/{task_id}/hints", r.expensive(r.hint.RequestHint))

	// Runs
	r.mux.HandleFunc("POST /api/v1/runs", r.expensive(r.run.Run))
	r.mux.HandleFunc("POST /api/v1/assignments/{id}/runs", r.expensive(r.run.RunWithTests))
}

func (r *Router) buildMiddlewareChain(handler http.Handler, app *App) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)

	// Apply rate limiting (skip in debug mode for easier development)
	if !app.Config.Debug {
		handler = middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig())(handler)
	}

	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)

	return handler
}

// Health check handlers
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.app.CheckStore(req.Context()); err != nil {
		slog.Error("storage health check failed",
			"error", err,
			"request_id", middleware.GetRequestID(req.Context()),
		)
		r.jsonResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": map[string]string{
				"storage": "unhealthy",
			},
		})
		return
	}

	checks := map[string]string{
		"storage": "healthy",
	}
	if r.app.Queue != nil {
		checks["queue"] = "healthy"
		if !r.app.Queue.IsConnected() {
			checks["queue"] = "reconnecting"
		}
	}

	r.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": checks,
	})
}

// Helper for JSON responses
func (r *Router) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
