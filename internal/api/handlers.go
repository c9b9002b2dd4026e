package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/store"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/catalog"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}

	mux.HandleFunc("POST /api/mcp/connect", s.handleConnect)
	mux.HandleFunc("GET /api/mcp/connections", s.handleConnections)
	mux.HandleFunc("POST /api/mcp/servers/{id}/connect", s.handleConnectStored)
	mux.HandleFunc("POST /api/mcp/servers/{id}/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/mcp/servers/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /api/mcp/servers/{id}/tools/{name}", s.handleCallTool)
	mux.HandleFunc("POST /api/mcp/servers/{id}/prompts/{name}", s.handleGetPrompt)
	mux.HandleFunc("POST /api/mcp/servers/{id}/resources/read", s.handleReadResource)

	mux.HandleFunc("GET /api/mcp/catalog", s.handleCatalog)
	mux.HandleFunc("POST /api/chat/execute-function", s.handleExecuteFunction)

	mux.HandleFunc("GET /api/mcp/servers", s.handleListConfigs)
	mux.HandleFunc("POST /api/mcp/servers", s.handleCreateConfig)
	mux.HandleFunc("GET /api/mcp/servers/export", s.handleExport)
	mux.HandleFunc("POST /api/mcp/servers/import", s.handleImport)
	mux.HandleFunc("GET /api/mcp/servers/{id}", s.handleGetConfig)
	mux.HandleFunc("PUT /api/mcp/servers/{id}", s.handleUpdateConfig)
	mux.HandleFunc("DELETE /api/mcp/servers/{id}", s.handleDeleteConfig)
}

// handleHealth reports the circuit breaker state of every connection.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.ListIDs()
	breakers := make(map[string]string, len(ids))
	for _, id := range ids {
		breakers[id] = s.manager.BreakerState(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": len(ids),
		"breakers":    breakers,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var cfg mcpmgr.ServerConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	s.connect(w, r, cfg)
}

func (s *Server) handleConnectStored(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.connect(w, r, cfg)
}

// connect answers 200 with the snapshot on success and 500 with the snapshot
// under data on failure.
func (s *Server) connect(w http.ResponseWriter, r *http.Request, cfg mcpmgr.ServerConfig) {
	snap := s.manager.Connect(r.Context(), cfg)
	s.catalog.Apply(snap)
	s.markActive(r.Context(), cfg.ID, snap.IsConnected)
	if !snap.IsConnected {
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Error:   snap.LastError,
			Kind:    snap.ErrorKind,
			Hint:    snap.Hint,
			Data:    snap,
		})
		return
	}
	writeData(w, http.StatusOK, snap)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.manager.Disconnect(r.Context(), id)
	s.catalog.Remove(id)
	s.markActive(r.Context(), id, false)
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

// handleStatus answers 404 when the server is not connected. A connection
// found dead is dropped from the catalog and flagged inactive.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.manager.Describe(r.Context(), id)
	if !ok {
		s.catalog.Remove(id)
		s.markActive(r.Context(), id, false)
		writeJSON(w, http.StatusNotFound, envelope{
			Success: false,
			Error:   fmt.Sprintf("server %q is not connected", id),
			Kind:    mcpmgr.KindNotConnected,
		})
		return
	}
	s.catalog.Apply(snap)
	writeData(w, http.StatusOK, snap)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.manager.ListIDs())
}

type argumentsRequest struct {
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req argumentsRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.manager.CallTool(r.Context(), r.PathValue("id"), r.PathValue("name"), req.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	var req argumentsRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.manager.GetPrompt(r.Context(), r.PathValue("id"), r.PathValue("name"), req.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleReadResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		writeError(w, badRequest("uri is required"))
		return
	}
	res, err := s.manager.ReadResource(r.Context(), r.PathValue("id"), req.URI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// handleCatalog lists function definitions. ?server= filters (repeatable) and
// ?refresh=true re-describes every connection first.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("refresh") == "true" {
		s.catalog.Sync(r.Context(), s.manager)
	}
	writeData(w, http.StatusOK, s.catalog.Functions(q["server"]...))
}

type executeFunctionRequest struct {
	ServerID     string               `json:"serverId"`
	FunctionCall catalog.FunctionCall `json:"functionCall"`
}

func (s *Server) handleExecuteFunction(w http.ResponseWriter, r *http.Request) {
	var req executeFunctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.executor.Execute(r.Context(), req.ServerID, req.FunctionCall)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range configs {
		configs[i] = configs[i].Redacted()
	}
	writeData(w, http.StatusOK, configs)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg mcpmgr.ServerConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.store.Create(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, created.Redacted())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, cfg.Redacted())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg mcpmgr.ServerConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	cfg.ID = r.PathValue("id")
	updated, err := s.store.Update(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, updated.Redacted())
}

// handleDeleteConfig also tears down a live connection built from the config.
func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if s.manager.IsConnected(id) {
		s.manager.Disconnect(r.Context(), id)
		s.catalog.Remove(id)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := store.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	data, err := s.store.Export(r.Context(), format)
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := "application/json"
	if format == store.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mcp-servers.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := store.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, badRequest("read body: "+err.Error()))
		return
	}
	res, err := s.store.Import(r.Context(), data, format)
	if err != nil {
		writeError(w, badRequest(err.Error()))
		return
	}
	writeData(w, http.StatusOK, res)
}

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool             `json:"success"`
	Data    any              `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
	Kind    mcpmgr.ErrorKind `json:"kind,omitempty"`
	Hint    string           `json:"hint,omitempty"`
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("invalid JSON body: " + err.Error())
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{
		Success: false,
		Error:   err.Error(),
		Kind:    mcpmgr.KindOf(err),
		Hint:    mcpmgr.HintOf(err),
	})
}

// statusClientClosedRequest is the de facto code for a request whose client
// went away before the answer.
const statusClientClosedRequest = 499

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict
	case errors.Is(err, mcpmgr.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, mcpmgr.ErrToolCall):
		return http.StatusBadGateway
	case errors.Is(err, mcpmgr.ErrConfig), errors.Is(err, mcpmgr.ErrUnsupportedTransport):
		return http.StatusBadRequest
	case errors.Is(err, mcpmgr.ErrCanceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
