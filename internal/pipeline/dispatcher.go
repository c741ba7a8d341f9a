package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tinywideclouds/go-push-dispatch/internal/metrics"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// DispatcherConfig bounds the fan-out of a single request.
type DispatcherConfig struct {
	// MaxConcurrency is the number of sends in flight at once. Values < 1 mean 1.
	MaxConcurrency int
	// SendTimeout caps one provider call. Zero means no per-send cap.
	SendTimeout time.Duration
}

// Dispatcher sends built messages to the PushProvider, one call per
// destination and no retries.
type Dispatcher struct {
	provider dispatch.PushProvider
	cfg      DispatcherConfig
	logger   *slog.Logger
}

func NewDispatcher(provider dispatch.PushProvider, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Dispatcher{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "Dispatcher"),
	}
}

// Send returns one result per message, in message order. A failed send never
// stops the others. Once ctx is done no new sends start; sends already in
// flight run to completion and every unattempted message is reported as
// Transient with TimedOut set.
func (d *Dispatcher) Send(ctx context.Context, msgs []dispatch.PushMessage) []dispatch.DispatchResult {
	results := make([]dispatch.DispatchResult, len(msgs))
	sem := semaphore.NewWeighted(int64(d.cfg.MaxConcurrency))
	var wg sync.WaitGroup

	next := 0
	for ; next < len(msgs); next++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = d.sendOne(ctx, &msgs[i])
		}(next)
	}

	for i := next; i < len(msgs); i++ {
		results[i] = dispatch.DispatchResult{
			Token:     msgs[i].Token,
			ErrorKind: dispatch.ErrorKindTransient,
			Code:      dispatch.CodeTimeout,
			TimedOut:  true,
		}
	}
	if skipped := len(msgs) - next; skipped > 0 {
		d.logger.Warn("Deadline elapsed mid fan-out; destinations not attempted", "skipped", skipped)
	}

	wg.Wait()

	for _, r := range results {
		kind := string(r.ErrorKind)
		if r.Success {
			kind = "ok"
		}
		metrics.DispatchResults.WithLabelValues(kind).Inc()
	}
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, msg *dispatch.PushMessage) dispatch.DispatchResult {
	// In-flight sends are allowed to finish after the request deadline.
	sendCtx := context.WithoutCancel(ctx)
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, d.cfg.SendTimeout)
		defer cancel()
	}

	messageID, err := d.provider.Send(sendCtx, msg)
	if err != nil {
		kind, code := Classify(err)
		d.logger.Warn("Push send failed", "token", Redact(msg.Token), "kind", kind, "code", code, "err", err)
		return dispatch.DispatchResult{Token: msg.Token, ErrorKind: kind, Code: code}
	}
	return dispatch.DispatchResult{Token: msg.Token, Success: true, MessageID: messageID}
}
