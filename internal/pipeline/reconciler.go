package pipeline

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-push-dispatch/internal/metrics"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// Reconciler prunes registrations the provider reported as dead.
type Reconciler struct {
	registry dispatch.DeviceRegistry
	logger   *slog.Logger
}

func NewReconciler(registry dispatch.DeviceRegistry, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		logger:   logger.With("component", "Reconciler"),
	}
}

// Reconcile deletes (userID, token) for every TokenDead result and returns how
// many deletions succeeded. An empty userID means a direct-token send, which
// has no registration context, so nothing is deleted. Deletion is best effort:
// a failure is logged and the remaining results are still processed.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, results []dispatch.DispatchResult) int {
	if userID == "" {
		return 0
	}

	pruned := 0
	for _, res := range results {
		if res.ErrorKind != dispatch.ErrorKindTokenDead {
			continue
		}
		if err := r.registry.DeleteToken(ctx, userID, res.Token); err != nil {
			metrics.PruneFailures.Inc()
			r.logger.Warn("Failed to prune dead token", "user", userID, "token", Redact(res.Token), "err", err)
			continue
		}
		pruned++
		metrics.TokensPruned.Inc()
		r.logger.Info("Pruned dead token", "user", userID, "token", Redact(res.Token), "code", res.Code)
	}
	return pruned
}
