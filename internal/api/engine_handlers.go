package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"craftdesk/internal/engine"
	"craftdesk/internal/logger"
	"craftdesk/internal/parser"
	"craftdesk/internal/workshop"
)

func (s *Server) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	parsed, err := parser.ParseCatalog(req.Text)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	var result *parser.CatalogMergeResult
	err = s.mutate(func(state *workshop.State) error {
		result = parser.MergeCatalog(state, parsed, time.Now().UTC())
		return nil
	})
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	logger.Info("Import", "Catalog: "+strconv.Itoa(result.CreatedItems)+" created, "+
		strconv.Itoa(result.UpdatedItems)+" updated, "+strconv.Itoa(len(result.Warnings))+" warnings")
	writeJSON(w, result)
}

func (s *Server) handleImportOCR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		AutoCreate *bool  `json:"auto_create"` // nil = settings default
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	parsed, err := parser.ParseOCRLines(req.Text)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	autoCreate := s.cfg.OCRAutoCreate
	if req.AutoCreate != nil {
		autoCreate = *req.AutoCreate
	}
	var result *parser.OCRMergeResult
	err = s.mutate(func(state *workshop.State) error {
		result = parser.MergeOCR(state, parsed.Rows, autoCreate, time.Now().UTC())
		return nil
	})
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"applied":       result.Applied,
		"created_items": result.CreatedItems,
		"unknown":       result.Unknown,
		"warnings":      result.Warnings,
		"invalid_lines": parsed.Invalid,
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipeID     string   `json:"recipe_id"`
		OutputItemID string   `json:"output_item_id"`
		Runs         int64    `json:"runs"`
		TaxRate      *float64 `json:"tax_rate"` // nil = settings default
		Mode         string   `json:"mode"`     // "expanded" (default) | "direct"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if req.RecipeID == "" && req.OutputItemID == "" {
		writeError(w, 400, "recipe_id or output_item_id is required")
		return
	}
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	taxRate := s.cfg.TaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	var result *engine.SimulationResult
	if req.RecipeID != "" {
		result, err = engine.Expand(state, req.RecipeID, req.Runs, taxRate, engine.Mode(req.Mode))
	} else {
		result, err = engine.ExpandForOutput(state, req.OutputItemID, req.Runs, taxRate, engine.Mode(req.Mode))
	}
	if err != nil {
		var cycle *engine.CycleError
		if errors.As(err, &cycle) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(422)
			json.NewEncoder(w).Encode(map[string]interface{}{"error": cycle.Error(), "cycle_path": cycle.Path})
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleCraftOptions(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	taxRate := queryFloat(r, "tax_rate", s.cfg.TaxRate)
	options, warnings := engine.RankCraftOptions(state, taxRate)
	writeJSON(w, map[string]interface{}{"options": options, "warnings": warnings})
}

func (s *Server) handleNearCraftable(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	taxRate := queryFloat(r, "tax_rate", s.cfg.TaxRate)
	budget := queryInt(r, "budget", s.cfg.DefaultBudget)
	sortBy := engine.NearSortBudgetProfit
	if r.URL.Query().Get("sort") == string(engine.NearSortShortfall) {
		sortBy = engine.NearSortShortfall
	}
	options, warnings := engine.NearCraftable(state, taxRate, budget, sortBy)
	writeJSON(w, map[string]interface{}{"options": options, "warnings": warnings})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	result, err := engine.QueryPriceHistory(state, r.PathValue("itemID"), window, time.Now().UTC())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	query := engine.SignalQuery{Window: window}
	if r.URL.Query().Get("threshold") != "" || r.URL.Query().Get("enabled") != "" {
		rule := state.Rule
		if v := r.URL.Query().Get("threshold"); v != "" {
			if ratio, err := strconv.ParseFloat(v, 64); err == nil {
				rule.DropRatio = ratio
			}
		}
		if v := r.URL.Query().Get("enabled"); v != "" {
			rule.Enabled = v != "false" && v != "0"
		}
		query.Rule = &rule
	}
	result, err := engine.ComputeSignals(state, query, time.Now().UTC())
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, result)
}

// windowFromQuery reads days / from / to query params. An unparsable explicit
// bound is an error, never silently corrected.
func windowFromQuery(r *http.Request) (engine.Window, error) {
	var window engine.Window
	q := r.URL.Query()
	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return window, errors.New("days is not a number")
		}
		window.LookbackDays = days
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return window, errors.New("from is not RFC3339")
		}
		window.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return window, errors.New("to is not RFC3339")
		}
		window.To = &t
	}
	return window, nil
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func queryInt(r *http.Request, key string, fallback int64) int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
