// Package server exposes the analysis pipeline over HTTP: CSV upload,
// streamed question answering, and read-only SQL access to stored uploads.
// Authentication is out of scope; callers are identified by the X-User-ID
// header plus a session_id they manage.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DevHack1010/NemHemAI/internal/analyze"
	"github.com/DevHack1010/NemHemAI/internal/dataset"
	"github.com/DevHack1010/NemHemAI/internal/decode"
	"github.com/DevHack1010/NemHemAI/internal/store"
)

const defaultMaxUploadBytes = 10 << 20

// Server handles the HTTP surface. Raw upload bytes are cached per
// (user, session) with latest-wins overwrite, so an analysis request always
// sees the most recent upload of its session.
type Server struct {
	store     *store.Store
	orch      *analyze.Orchestrator
	log       *slog.Logger
	maxUpload int64

	mu      sync.RWMutex
	uploads map[uploadKey]*uploadEntry
}

type uploadKey struct {
	userID    string
	sessionID string
}

type uploadEntry struct {
	filename string
	raw      []byte
	table    string
}

// New builds a server around a store and an orchestrator.
func New(st *store.Store, orch *analyze.Orchestrator, maxUpload int64, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Server{
		store:     st,
		orch:      orch,
		log:       log,
		maxUpload: maxUpload,
		uploads:   map[uploadKey]*uploadEntry{},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-csv", s.handleUploadCSV)
	mux.HandleFunc("POST /data-analysis", s.handleDataAnalysis)
	mux.HandleFunc("POST /execute-sql", s.handleExecuteSQL)
	mux.HandleFunc("GET /csv-info", s.handleCSVInfo)
	mux.HandleFunc("GET /list-tables", s.handleListTables)
	mux.HandleFunc("GET /describe-table", s.handleDescribeTable)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	if u := r.Header.Get("X-User-ID"); u != "" {
		return u
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// uploadResponse is the CSV metadata contract returned after an upload.
type uploadResponse struct {
	Filename   string            `json:"filename"`
	Shape      [2]int            `json:"shape"`
	Columns    []string          `json:"columns"`
	Dtypes     map[string]string `json:"dtypes"`
	SampleData []dataset.Row     `json:"sample_data"`
}

func metadataFor(filename string, sch *dataset.Schema) uploadResponse {
	return uploadResponse{
		Filename:   filename,
		Shape:      [2]int{sch.Rows, sch.Cols},
		Columns:    sch.Names(),
		Dtypes:     sch.Dtypes(),
		SampleData: sch.Sample,
	}
}

func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or malformed upload")
		return
	}
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "Only .csv files are accepted")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if int64(len(raw)) > s.maxUpload {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "Saved file is empty")
		return
	}

	ds, err := decode.Decode(raw)
	if err != nil {
		s.log.Warn("upload decode failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest,
			"Could not read CSV file. The file might have an unsupported format or encoding.")
		return
	}

	user := userID(r)
	table := store.TableName(user, sessionID, time.Now())
	ctx := r.Context()
	if err := s.store.SaveDataset(ctx, table, ds); err != nil {
		s.log.Error("saving dataset", "table", table, "error", err)
		writeError(w, http.StatusInternalServerError, "Error storing CSV data")
		return
	}
	if err := s.store.RecordUpload(ctx, store.Upload{
		UserID:     user,
		SessionID:  sessionID,
		Filename:   header.Filename,
		TableName:  table,
		UploadedAt: time.Now(),
	}); err != nil {
		s.log.Error("recording upload", "table", table, "error", err)
		writeError(w, http.StatusInternalServerError, "Error storing upload metadata")
		return
	}

	s.mu.Lock()
	s.uploads[uploadKey{user, sessionID}] = &uploadEntry{
		filename: header.Filename,
		raw:      raw,
		table:    table,
	}
	s.mu.Unlock()

	s.log.Info("csv uploaded", "user", user, "session", sessionID,
		"filename", header.Filename, "rows", ds.Rows(), "cols", ds.Cols())
	writeJSON(w, http.StatusOK, metadataFor(header.Filename, ds.Schema(5)))
}

type analysisRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

func (s *Server) handleDataAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt and session_id are required")
		return
	}

	s.mu.RLock()
	entry := s.uploads[uploadKey{userID(r), req.SessionID}]
	s.mu.RUnlock()
	if entry == nil {
		writeError(w, http.StatusBadRequest, "No CSV file uploaded for this session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "application/jsonl")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range s.orch.Run(r.Context(), analyze.Request{
		Question: req.Prompt,
		Model:    req.Model,
		Raw:      entry.raw,
	}) {
		if err := enc.Encode(ev); err != nil {
			s.log.Warn("client went away mid-stream", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleExecuteSQL(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	res, err := s.store.Query(r.Context(), query)
	if err != nil {
		var ve *store.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Reason)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"row_count": res.RowCount,
		"columns":   res.Columns,
		"data":      res.Data,
	})
}

func (s *Server) handleCSVInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	up, err := s.store.LatestUpload(r.Context(), userID(r), sessionID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"has_csv": false})
		return
	}

	s.mu.RLock()
	entry := s.uploads[uploadKey{userID(r), sessionID}]
	s.mu.RUnlock()

	resp := map[string]any{
		"has_csv":     true,
		"filename":    up.Filename,
		"table_name":  up.TableName,
		"uploaded_at": up.UploadedAt,
	}
	if entry != nil {
		if ds, err := decode.Decode(entry.raw); err == nil {
			sch := ds.Schema(5)
			resp["shape"] = [2]int{sch.Rows, sch.Cols}
			resp["columns"] = sch.Names()
			resp["dtypes"] = sch.Dtypes()
			resp["sample_data"] = sch.Sample
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListTables(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error listing tables")
		return
	}
	if len(tables) == 0 {
		writeError(w, http.StatusNotFound, "No tables found in the database.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table_name")
	if table == "" {
		writeError(w, http.StatusBadRequest, "table_name is required")
		return
	}
	cols, err := s.store.DescribeTable(r.Context(), table)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Table '%s' not found.", table))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": cols})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
