package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-push-dispatch/internal/pipeline"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// maxBodyBytes caps an inbound dispatch body.
const maxBodyBytes = 1 << 20

// Engine is the part of pipeline.Engine the HTTP layer drives.
type Engine interface {
	Ready(ctx context.Context) error
	Dispatch(ctx context.Context, req dispatch.NotificationRequest) (*pipeline.Outcome, error)
}

type DispatchAPI struct {
	Engine Engine
	Logger *slog.Logger
}

func NewDispatchAPI(engine Engine, logger *slog.Logger) *DispatchAPI {
	return &DispatchAPI{
		Engine: engine,
		Logger: logger.With("component", "DispatchAPI"),
	}
}

type resultJSON struct {
	Token     string `json:"token"`
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId,omitempty"`
	// Code is the error kind; ProviderCode is the raw provider code behind it.
	Code         string `json:"code,omitempty"`
	ProviderCode string `json:"providerCode,omitempty"`
	Timeout      bool   `json:"timeout,omitempty"`
}

type dispatchResponse struct {
	OK      bool         `json:"ok"`
	Sent    int          `json:"sent"`
	Reason  string       `json:"reason,omitempty"`
	Results []resultJSON `json:"results,omitempty"`
}

// Dispatch handles POST /dispatch. Auth has already been checked.
func (api *DispatchAPI) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := api.Engine.Ready(ctx); err != nil {
		var cfgErr *dispatch.ConfigError
		if errors.As(err, &cfgErr) {
			api.Logger.Error("Push provider is not configured", "err", err)
			WriteError(w, http.StatusInternalServerError, cfgErr.Error())
			return
		}
		api.Logger.Error("Push provider failed to initialize", "err", err)
		WriteError(w, http.StatusInternalServerError, "Push provider unavailable")
		return
	}

	body, err := decodeBody(w, r)
	if err != nil {
		api.Logger.Warn("Dispatch: JSON Decode failed", "err", err)
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req, err := pipeline.Normalize(body)
	if err != nil {
		api.Logger.Warn("Dispatch: Validation failed", "reason", err.Error())
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := api.Engine.Dispatch(ctx, req)
	if err != nil {
		api.Logger.Error("Dispatch failed", "err", err)
		WriteError(w, http.StatusServiceUnavailable, "Device registry unavailable")
		return
	}

	if out.NoTokens {
		writeJSON(w, http.StatusOK, dispatchResponse{OK: true, Sent: 0, Reason: "no_tokens"})
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{
		OK:      true,
		Sent:    len(out.Results),
		Results: toResultJSON(out.Results),
	})
}

// decodeBody parses the body as exactly one JSON object. An empty body is an
// empty object; numbers are kept as json.Number so ids are not rounded.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	body := make(map[string]any)
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return body, nil
		}
		return nil, err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON body")
	}
	if body == nil {
		// A literal null.
		body = make(map[string]any)
	}
	return body, nil
}

func toResultJSON(results []dispatch.DispatchResult) []resultJSON {
	out := make([]resultJSON, len(results))
	for i, res := range results {
		out[i] = resultJSON{
			Token:        pipeline.Redact(res.Token),
			OK:           res.Success,
			MessageID:    res.MessageID,
			Code:         string(res.ErrorKind),
			ProviderCode: res.Code,
			Timeout:      res.TimedOut,
		}
	}
	return out
}
