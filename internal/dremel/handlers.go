package dremel

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/pkg/models"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

// maxUploadBytes caps the size of an uploaded print file.
const maxUploadBytes = 256 << 20

// deviceResponse is a printer plus its live connection state.
type deviceResponse struct {
	models.Printer
	Connected bool    `json:"connected"`
	Printing  bool    `json:"printing"`
	Progress  float64 `json:"progress"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/scan", Handler: m.handleStartScan},
		{Method: "DELETE", Path: "/scan", Handler: m.handleStopScan},
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleRemoveDevice},
		{Method: "POST", Path: "/devices/{id}/print", Handler: m.handlePrint},
		{Method: "GET", Path: "/jobs", Handler: m.handleListJobs},
	}
}

// handleStartScan kicks off a discovery sweep.
func (m *Module) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if m.scanner.Running() {
		dremelWriteError(w, http.StatusConflict, "scan already running")
		return
	}
	m.scanner.Start(m.scanContext())
	dremelWriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (m *Module) handleStopScan(w http.ResponseWriter, r *http.Request) {
	m.scanner.Stop()
	dremelWriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	opts := services.ListOptions{
		Limit:  dremelParseLimit(r, 50),
		Offset: dremelParseOffset(r),
	}
	result, err := m.printers.List(r.Context(), opts)
	if err != nil {
		m.logger.Warn("failed to list printers", zap.Error(err))
		dremelWriteError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	devices := make([]deviceResponse, 0, len(result.Items))
	for _, p := range result.Items {
		devices = append(devices, m.deviceView(p))
	}
	dremelWriteJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"total":   result.Total,
	})
}

func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	printer, err := m.printers.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			dremelWriteError(w, http.StatusNotFound, "device not found")
			return
		}
		m.logger.Warn("failed to get printer", zap.String("id", id), zap.Error(err))
		dremelWriteError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	dremelWriteJSON(w, http.StatusOK, m.deviceView(*printer))
}

func (m *Module) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := m.printers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			dremelWriteError(w, http.StatusNotFound, "device not found")
			return
		}
		m.logger.Warn("failed to delete printer", zap.String("id", id), zap.Error(err))
		dremelWriteError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	m.manager.Remove(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// handlePrint accepts a multipart form with a "file" part and submits it
// to the printer as a print job.
func (m *Module) handlePrint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn := m.manager.Get(id)
	if conn == nil {
		dremelWriteError(w, http.StatusNotFound, "device not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		dremelWriteError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		dremelWriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	node := &DataNode{NodeName: nodeNameFromHeader(header.Filename), Payload: data}
	err = conn.RequestWrite(r.Context(), []SceneNode{node}, r.FormValue("filename"))
	if err != nil {
		if errors.Is(err, ErrPrinterBusy) {
			dremelWriteError(w, http.StatusConflict, "printer is busy")
			return
		}
		dremelWriteError(w, http.StatusBadGateway, "print submission failed")
		return
	}
	dremelWriteJSON(w, http.StatusAccepted, map[string]string{"status": "printing"})
}

func (m *Module) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := services.ListOptions{
		Limit:  dremelParseLimit(r, 50),
		Offset: dremelParseOffset(r),
	}
	result, err := m.jobs.List(r.Context(), opts)
	if err != nil {
		m.logger.Warn("failed to list jobs", zap.Error(err))
		dremelWriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	dremelWriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  result.Items,
		"total": result.Total,
	})
}

func (m *Module) deviceView(p models.Printer) deviceResponse {
	view := deviceResponse{Printer: p}
	if conn := m.manager.Get(p.ID); conn != nil {
		state := conn.State()
		view.Connected = state.Connected
		view.Printing = state.Printing
		view.Progress = state.Progress
	}
	return view
}

// nodeNameFromHeader strips the extension so the derived upload name
// does not double it.
func nodeNameFromHeader(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
		if filename[i] == '/' || filename[i] == '\\' {
			break
		}
	}
	return filename
}

func dremelWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func dremelWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func dremelParseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}

func dremelParseOffset(r *http.Request) int {
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
