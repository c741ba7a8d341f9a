package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// TokenAPI is the external path by which devices enter and leave the registry.
type TokenAPI struct {
	Registry dispatch.DeviceRegistry
	Logger   *slog.Logger
}

func NewTokenAPI(registry dispatch.DeviceRegistry, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Registry: registry,
		Logger:   logger.With("component", "TokenAPI"),
	}
}

type DeviceRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (api *TokenAPI) decode(w http.ResponseWriter, r *http.Request) (DeviceRequest, bool) {
	var req DeviceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return req, false
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Token = strings.TrimSpace(req.Token)
	if req.UserID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing userId")
		return req, false
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return req, false
	}
	return req, true
}

func (api *TokenAPI) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := api.decode(w, r)
	if !ok {
		return
	}

	if err := api.Registry.RegisterToken(r.Context(), req.UserID, req.Token); err != nil {
		api.Logger.Error("failed to register device", "user", req.UserID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Register: Device registered", "user", req.UserID)

	w.WriteHeader(http.StatusNoContent)
}

// Unregister is idempotent: removing an unknown device still returns 204.
func (api *TokenAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	req, ok := api.decode(w, r)
	if !ok {
		return
	}

	if err := api.Registry.DeleteToken(r.Context(), req.UserID, req.Token); err != nil {
		api.Logger.Warn("failed to unregister device", "user", req.UserID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unregister device")
		return
	}
	api.Logger.Info("Unregister: Device unregistered", "user", req.UserID)

	w.WriteHeader(http.StatusNoContent)
}
