// Package settings provides HTTP handlers for application settings
// endpoints.
package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/services"
)

// ScanSubnetRequest is the body for POST /settings/scan-subnet.
type ScanSubnetRequest struct {
	Subnet string `json:"subnet"`
}

// ScanSubnetResponse carries the configured scan subnet.
type ScanSubnetResponse struct {
	Subnet string `json:"subnet"`
}

// Handler provides HTTP handlers for settings endpoints.
type Handler struct {
	interfaces *services.InterfaceService
	settings   services.SettingsRepository
	logger     *zap.Logger
}

// NewHandler creates a settings Handler.
func NewHandler(settings services.SettingsRepository, logger *zap.Logger) *Handler {
	return &Handler{
		interfaces: services.NewInterfaceService(),
		settings:   settings,
		logger:     logger,
	}
}

// RegisterRoutes registers settings-related routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/settings/subnets", h.handleListSubnets)
	mux.HandleFunc("GET /api/v1/settings/scan-subnet", h.handleGetScanSubnet)
	mux.HandleFunc("POST /api/v1/settings/scan-subnet", h.handleSetScanSubnet)
}

// handleListSubnets returns the subnets reachable from the host's
// interfaces, so a UI can offer them as scan candidates.
func (h *Handler) handleListSubnets(w http.ResponseWriter, _ *http.Request) {
	interfaces, err := h.interfaces.ListNetworkInterfaces()
	if err != nil {
		h.logger.Error("failed to list interfaces", zap.Error(err))
		writeSettingsError(w, http.StatusInternalServerError, "failed to list network interfaces")
		return
	}
	writeJSON(w, http.StatusOK, interfaces)
}

// handleGetScanSubnet returns the configured scan subnet, empty when
// auto-detection is in effect.
func (h *Handler) handleGetScanSubnet(w http.ResponseWriter, r *http.Request) {
	setting, err := h.settings.Get(r.Context(), services.SettingScanSubnet)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeJSON(w, http.StatusOK, ScanSubnetResponse{})
			return
		}
		h.logger.Error("failed to read scan subnet", zap.Error(err))
		writeSettingsError(w, http.StatusInternalServerError, "failed to read scan subnet")
		return
	}
	writeJSON(w, http.StatusOK, ScanSubnetResponse{Subnet: setting.Value})
}

// handleSetScanSubnet stores the subnet override. An empty subnet
// clears the override and returns discovery to auto-detection.
func (h *Handler) handleSetScanSubnet(w http.ResponseWriter, r *http.Request) {
	var req ScanSubnetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettingsError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Subnet != "" && !services.ValidSubnetPrefix(req.Subnet) {
		writeSettingsError(w, http.StatusBadRequest,
			"subnet must be a three-octet IPv4 prefix such as 192.168.1")
		return
	}

	if err := h.settings.Set(r.Context(), services.SettingScanSubnet, req.Subnet); err != nil {
		h.logger.Error("failed to store scan subnet", zap.Error(err))
		writeSettingsError(w, http.StatusInternalServerError, "failed to store scan subnet")
		return
	}

	h.logger.Info("scan subnet updated", zap.String("subnet", req.Subnet))
	writeJSON(w, http.StatusOK, ScanSubnetResponse{Subnet: req.Subnet})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSettingsError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
