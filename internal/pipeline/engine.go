package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-push-dispatch/internal/metrics"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// reconcileTimeout bounds registry cleanup, which runs even when the request
// deadline has already elapsed.
const reconcileTimeout = 5 * time.Second

// EngineConfig configures one Engine.
type EngineConfig struct {
	Dispatcher DispatcherConfig
	// Timeout is the end-to-end deadline of one Dispatch call. Zero means the
	// caller's context is the only deadline.
	Timeout time.Duration
}

// Outcome is the aggregated result of one Dispatch call.
type Outcome struct {
	ID      string
	Results []dispatch.DispatchResult
	// NoTokens is set when fan-out found no registered devices.
	NoTokens bool
	Pruned   int
}

// Engine runs a normalized request through resolve, build, send and
// reconcile. It holds no per-request state.
type Engine struct {
	registry   dispatch.DeviceRegistry
	provider   dispatch.PushProvider
	dispatcher *Dispatcher
	reconciler *Reconciler
	timeout    time.Duration
	logger     *slog.Logger
}

// NewEngine wires the engine's stages.
func NewEngine(
	cfg EngineConfig,
	provider dispatch.PushProvider,
	registry dispatch.DeviceRegistry,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		registry:   registry,
		provider:   provider,
		dispatcher: NewDispatcher(provider, cfg.Dispatcher, logger),
		reconciler: NewReconciler(registry, logger),
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "Engine"),
	}
}

// Ready reports whether the provider can be used, initializing it on first
// use. It returns a *dispatch.ConfigError when credentials are missing.
func (e *Engine) Ready(ctx context.Context) error {
	return e.provider.Ready(ctx)
}

// Dispatch sends req to every resolved destination. Only registry lookup
// failures are returned as errors; per-destination failures are reported in
// Outcome.Results.
func (e *Engine) Dispatch(ctx context.Context, req dispatch.NotificationRequest) (*Outcome, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out := &Outcome{ID: uuid.NewString()}
	logger := e.logger.With("dispatch_id", out.ID, "type", req.Type)

	resolution, err := Resolve(ctx, e.registry, req)
	if err != nil {
		metrics.DispatchRequests.WithLabelValues("registry_error").Inc()
		logger.Error("Failed to resolve destinations", "user", req.TargetUserID, "err", err)
		return nil, fmt.Errorf("resolve destinations: %w", err)
	}
	if resolution.NoDestinations() {
		metrics.DispatchRequests.WithLabelValues("no_tokens").Inc()
		logger.Info("No devices registered for user; nothing to send.", "user", resolution.UserID)
		out.NoTokens = true
		return out, nil
	}

	msgs := make([]dispatch.PushMessage, len(resolution.Tokens))
	for i, token := range resolution.Tokens {
		msgs[i] = BuildMessage(req, token)
	}

	out.Results = e.dispatcher.Send(ctx, msgs)

	if resolution.UserID != "" {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
		out.Pruned = e.reconciler.Reconcile(rctx, resolution.UserID, out.Results)
		cancel()
	}

	metrics.DispatchRequests.WithLabelValues("sent").Inc()
	logger.Info("Dispatch complete",
		"destinations", len(out.Results),
		"succeeded", countSuccess(out.Results),
		"pruned", out.Pruned,
	)
	return out, nil
}

func countSuccess(results []dispatch.DispatchResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
