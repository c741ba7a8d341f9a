// Package pushservice assembles the push dispatch HTTP service.
package pushservice

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/cors"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"

	"github.com/tinywideclouds/go-push-dispatch/internal/api"
	"github.com/tinywideclouds/go-push-dispatch/internal/metrics"
	"github.com/tinywideclouds/go-push-dispatch/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pushservice/config"
)

const (
	dispatchPath   = "/dispatch"
	registerPath   = "/devices/register"
	unregisterPath = "/devices/unregister"

	corsMethods = "POST, OPTIONS"
	corsHeaders = "Content-Type, Authorization, x-token"
)

type Wrapper struct {
	*microservice.BaseServer
	logger *slog.Logger
}

// routeRegistrar is satisfied by *http.ServeMux.
type routeRegistrar interface {
	Handle(pattern string, handler http.Handler)
}

// New assembles the service.
func New(
	cfg *config.Config,
	provider dispatch.PushProvider,
	registry dispatch.DeviceRegistry,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Engine
	engine := pipeline.NewEngine(pipeline.EngineConfig{
		Dispatcher: pipeline.DispatcherConfig{
			MaxConcurrency: cfg.Dispatch.MaxConcurrency,
			SendTimeout:    cfg.Dispatch.SendTimeout,
		},
		Timeout: cfg.Dispatch.Timeout,
	}, provider, registry, logger)

	// 3. Routes
	registerRoutes(baseServer.Mux(), cfg, engine, registry, logger)

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}, nil
}

func registerRoutes(
	mux routeRegistrar,
	cfg *config.Config,
	engine api.Engine,
	registry dispatch.DeviceRegistry,
	logger *slog.Logger,
) {
	dispatchAPI := api.NewDispatchAPI(engine, logger)
	tokenAPI := api.NewTokenAPI(registry, logger)

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Cors.AllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "x-token"},
		MaxAge:         300,
		// Preflights fall through to preflight() so they answer 204.
		OptionsPassthrough: true,
	})
	authMiddleware := api.NewSharedSecretMiddleware(cfg.SharedSecret, logger)

	// Helper for clean route definition
	handle := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, metrics.Middleware(corsMiddleware(handler)))
	}

	for path, handler := range map[string]http.HandlerFunc{
		dispatchPath:   dispatchAPI.Dispatch,
		registerPath:   tokenAPI.Register,
		unregisterPath: tokenAPI.Unregister,
	} {
		handle("POST "+path, authMiddleware(handler))
		handle("OPTIONS "+path, preflight(cfg.Cors.AllowedOrigins))
		// Method-less pattern: everything that is neither POST nor OPTIONS.
		handle(path, http.HandlerFunc(methodNotAllowed))
	}

	mux.Handle("GET /metrics", metrics.Handler())
}

// preflight answers every OPTIONS with the full method and header lists,
// including bare requests the CORS middleware does not treat as preflights.
func preflight(allowedOrigins []string) http.Handler {
	wildcard := slices.Contains(allowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		if wildcard && h.Get("Access-Control-Allow-Origin") == "" {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		w.WriteHeader(http.StatusNoContent)
	})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", corsMethods)
	api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// Start blocks serving HTTP until Shutdown is called.
func (w *Wrapper) Start(_ context.Context) error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	w.SetReady(false)
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
