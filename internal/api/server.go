package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SyfSchydea/osrs-flip/internal/db"
	"github.com/SyfSchydea/osrs-flip/internal/flipper"
	"github.com/SyfSchydea/osrs-flip/internal/logger"
	"github.com/SyfSchydea/osrs-flip/internal/render"
)

// HealthChecker reports data source health. *wiki.Client implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
	LastSuccess() time.Time
}

// Options wires the server. Session is required; the rest are optional.
type Options struct {
	Session *flipper.Session
	DB      *db.DB
	Health  HealthChecker
	Hub     *Hub
	Metrics http.Handler
}

// Server is the HTTP API over a flip session.
type Server struct {
	session *flipper.Session
	db      *db.DB
	health  HealthChecker
	hub     *Hub
	metrics http.Handler
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	return &Server{
		session: opts.Session,
		db:      opts.DB,
		health:  opts.Health,
		hub:     opts.Hub,
		metrics: opts.Metrics,
	}
}

// Handler returns the HTTP handler with all routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/flips", s.handleFlips)
	mux.HandleFunc("GET /api/flips.xlsx", s.handleFlipsXLSX)
	mux.HandleFunc("GET /api/history", s.handleGetHistory)
	mux.HandleFunc("GET /api/history/{id}/results", s.handleGetHistoryResults)
	if s.hub != nil {
		mux.Handle("GET /api/ws", s.hub)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- Handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	fetched := make(map[string]int64, len(st.FetchedAt))
	for k, t := range st.FetchedAt {
		fetched[k] = t.Unix()
	}
	result := map[string]interface{}{
		"state":      st.State,
		"fetched_at": fetched,
		"renders":    st.Renders,
		"rows":       st.Rows,
	}
	if !st.LastRender.IsZero() {
		result["last_render"] = st.LastRender.Unix()
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		result["wiki_ok"] = s.health.HealthCheck(ctx)
		cancel()
		if last := s.health.LastSuccess(); !last.IsZero() {
			result["wiki_last_ok"] = last.Unix()
		}
	}
	if s.hub != nil {
		result["ws_clients"] = s.hub.Clients()
	}
	writeJSON(w, result)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Inputs())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, 400, err.Error())
		return
	}

	inputs, err := s.session.Apply(r.Context(), req.patch())
	if err != nil {
		var ie *flipper.InputError
		if errors.As(err, &ie) {
			writeError(w, 400, err.Error())
			return
		}
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, inputs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Refresh(r.Context()); err != nil {
		writeError(w, 502, err.Error())
		return
	}
	writeJSON(w, s.session.Status())
}

func (s *Server) handleFlips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"inputs": s.session.Inputs(),
		"rows":   s.session.Rows(),
	})
}

func (s *Server) handleFlipsXLSX(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="flips.xlsx"`)
	if err := render.WriteWorkbook(w, s.session.Rows()); err != nil {
		logger.Warn("API", "xlsx export: "+err.Error())
	}
}

// --- Render History ---

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, []db.RenderRecord{})
		return
	}
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, s.db.GetHistory(q.Limit))
}

func (s *Server) handleGetHistoryResults(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, 400, "invalid id")
		return
	}
	if s.db == nil {
		writeError(w, 404, "not found")
		return
	}
	record := s.db.GetHistoryByID(id)
	if record == nil {
		writeError(w, 404, "not found")
		return
	}
	writeJSON(w, map[string]interface{}{
		"render":  record,
		"results": s.db.GetResults(id),
	})
}
