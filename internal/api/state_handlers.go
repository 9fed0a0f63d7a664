package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"craftdesk/internal/workshop"
)

func statusFor(err error) int {
	if errors.Is(err, workshop.ErrItemNotFound) || errors.Is(err, workshop.ErrRecipeNotFound) {
		return 404
	}
	return 400
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, state.Items)
}

func (s *Server) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Icon     string `json:"icon"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	var id string
	err := s.mutate(func(state *workshop.State) error {
		var err error
		id, err = state.UpsertItem(workshop.ItemInput{
			Name:     req.Name,
			Category: workshop.ParseCategory(req.Category),
			Icon:     req.Icon,
			Notes:    req.Notes,
		}, time.Now().UTC())
		return err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]string{"id": id})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.mutate(func(state *workshop.State) error {
		return state.DeleteItem(id)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

func (s *Server) handleGetRecipes(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, state.Recipes)
}

func (s *Server) handleUpsertRecipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutputItemID   string `json:"output_item_id"`
		OutputQuantity int64  `json:"output_quantity"`
		Inputs         []struct {
			ItemID   string `json:"item_id"`
			Quantity int64  `json:"quantity"`
		} `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	inputs := make([]workshop.RecipeInputQty, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		inputs = append(inputs, workshop.RecipeInputQty{ItemID: in.ItemID, Quantity: in.Quantity})
	}
	var id string
	err := s.mutate(func(state *workshop.State) error {
		var err error
		id, err = state.UpsertRecipe(req.OutputItemID, req.OutputQuantity, inputs, time.Now().UTC())
		return err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]string{"id": id})
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.mutate(func(state *workshop.State) error {
		return state.DeleteRecipe(id)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

func (s *Server) handleAddPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID     string `json:"item_id"`
		UnitPrice  int64  `json:"unit_price"`
		CapturedAt string `json:"captured_at"` // RFC3339, empty = now
		Note       string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	capturedAt := time.Now().UTC()
	if req.CapturedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			writeError(w, 400, "captured_at is not RFC3339")
			return
		}
		capturedAt = t
	}
	var id int64
	err := s.mutate(func(state *workshop.State) error {
		var err error
		id, err = state.AddSnapshot(req.ItemID, req.UnitPrice, capturedAt, workshop.SourceManual, req.Note)
		return err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]int64{"id": id})
}

func (s *Server) handleSetInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   string `json:"item_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	err := s.mutate(func(state *workshop.State) error {
		return state.SetInventory(req.ItemID, req.Quantity, time.Now().UTC())
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, map[string]bool{"saved": true})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	state, err := s.loadState()
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, state.Rule)
}

func (s *Server) handleSetRule(w http.ResponseWriter, r *http.Request) {
	var req workshop.SignalRule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	var saved workshop.SignalRule
	err := s.mutate(func(state *workshop.State) error {
		state.SetSignalRule(req)
		saved = state.Rule
		return nil
	})
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, saved)
}
