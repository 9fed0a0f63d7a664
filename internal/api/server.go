package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"craftdesk/internal/config"
	"craftdesk/internal/db"
	"craftdesk/internal/workshop"
)

// Server is the local HTTP API that connects the workshop engine to the
// desktop UI. The engine itself is pure; the server is the orchestrator the
// engine contract requires: mutations serialize on a mutex and follow
// load state, compute, whole-document replace. Read endpoints coalesce
// concurrent state loads through a singleflight group.
type Server struct {
	cfg *config.Settings
	db  *db.DB

	mu    sync.Mutex // serializes mutating calls against the backing state
	loads singleflight.Group
}

// NewServer creates a Server over the given settings and database.
func NewServer(cfg *config.Settings, database *db.DB) *Server {
	return &Server{cfg: cfg, db: database}
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleSetSettings)
	// Catalog
	mux.HandleFunc("GET /api/items", s.handleGetItems)
	mux.HandleFunc("POST /api/items", s.handleUpsertItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	mux.HandleFunc("GET /api/recipes", s.handleGetRecipes)
	mux.HandleFunc("POST /api/recipes", s.handleUpsertRecipe)
	mux.HandleFunc("DELETE /api/recipes/{id}", s.handleDeleteRecipe)
	mux.HandleFunc("POST /api/prices", s.handleAddPrice)
	mux.HandleFunc("POST /api/inventory", s.handleSetInventory)
	mux.HandleFunc("GET /api/rule", s.handleGetRule)
	mux.HandleFunc("POST /api/rule", s.handleSetRule)
	// Imports
	mux.HandleFunc("POST /api/import/catalog", s.handleImportCatalog)
	mux.HandleFunc("POST /api/import/ocr", s.handleImportOCR)
	// Simulation and analysis
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	mux.HandleFunc("GET /api/craft-options", s.handleCraftOptions)
	mux.HandleFunc("GET /api/craft-options/near", s.handleNearCraftable)
	mux.HandleFunc("GET /api/history/{itemID}", s.handleHistory)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loadState reads the current state document, deduplicating concurrent
// loads. Each caller still gets its own snapshot value to compute over.
func (s *Server) loadState() (*workshop.State, error) {
	v, err, _ := s.loads.Do("state", func() (interface{}, error) {
		return s.db.LoadState()
	})
	if err != nil {
		return nil, err
	}
	return v.(*workshop.State), nil
}

// mutate runs one serialized load → compute → replace cycle. The callback
// must either mutate the passed state and return nil, or return an error to
// abort without writing (partial application would corrupt the economics).
func (s *Server) mutate(fn func(*workshop.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.db.LoadState()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.db.ReplaceState(state)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"items":     len(state.Items),
		"recipes":   len(state.Recipes),
		"snapshots": len(state.Prices),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg)
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req config.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	*s.cfg = req
	if err := s.db.SaveSettings(s.cfg); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, s.cfg)
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
