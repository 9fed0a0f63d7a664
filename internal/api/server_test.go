package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"craftdesk/internal/config"
	"craftdesk/internal/db"
	"craftdesk/internal/engine"
	"craftdesk/internal/workshop"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(config.Default(), database)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// createItem posts an item and returns its id.
func createItem(t *testing.T, srv *Server, name, category string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/items", `{"name":"`+name+`","category":"`+category+`"}`)
	if rec.Code != 200 {
		t.Fatalf("POST /api/items(%s) status = %d: %s", name, rec.Code, rec.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, rec, &out)
	return out.ID
}

func TestHandleStatus_CountsDocuments(t *testing.T) {
	srv := newTestServer(t)
	createItem(t, srv, "Iron Ore", "material")

	rec := do(t, srv, http.MethodGet, "/api/status", "")
	if rec.Code != 200 {
		t.Fatalf("GET /api/status status = %d", rec.Code)
	}
	var out map[string]int
	decode(t, rec, &out)
	if out["items"] != 1 || out["recipes"] != 0 || out["snapshots"] != 0 {
		t.Errorf("status = %v", out)
	}
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/settings", `{"tax_rate":0.12,"default_budget":5000,"ocr_auto_create":true}`)
	if rec.Code != 200 {
		t.Fatalf("POST /api/settings status = %d", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/settings", "")
	var out config.Settings
	decode(t, rec, &out)
	if out.TaxRate != 0.12 || out.DefaultBudget != 5000 || !out.OCRAutoCreate {
		t.Errorf("settings = %+v", out)
	}
}

func TestItemLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	id := createItem(t, srv, "Iron Ore", "material")

	rec := do(t, srv, http.MethodGet, "/api/items", "")
	var items []workshop.Item
	decode(t, rec, &items)
	if len(items) != 1 || items[0].ID != id || items[0].Category != workshop.CategoryMaterial {
		t.Fatalf("items = %+v", items)
	}

	rec = do(t, srv, http.MethodDelete, "/api/items/"+id, "")
	if rec.Code != 200 {
		t.Fatalf("DELETE status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodDelete, "/api/items/"+id, "")
	if rec.Code != 404 {
		t.Errorf("second DELETE status = %d, want 404", rec.Code)
	}
}

func TestRecipeValidationStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	sword := createItem(t, srv, "Iron Sword", "equipment")
	ingot := createItem(t, srv, "Iron Ingot", "material")

	rec := do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+sword+`","output_quantity":1,"inputs":[{"item_id":"`+ingot+`","quantity":2}]}`)
	if rec.Code != 200 {
		t.Fatalf("POST /api/recipes status = %d: %s", rec.Code, rec.Body.String())
	}

	// Unknown output item is 404, bad quantity is 400.
	rec = do(t, srv, http.MethodPost, "/api/recipes", `{"output_item_id":"ghost","output_quantity":1,"inputs":[]}`)
	if rec.Code != 404 {
		t.Errorf("unknown output status = %d, want 404", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+sword+`","output_quantity":0,"inputs":[]}`)
	if rec.Code != 400 {
		t.Errorf("zero quantity status = %d, want 400", rec.Code)
	}
}

func TestSimulateOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	sword := createItem(t, srv, "Iron Sword", "equipment")
	ingot := createItem(t, srv, "Iron Ingot", "material")
	do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+sword+`","output_quantity":1,"inputs":[{"item_id":"`+ingot+`","quantity":3}]}`)
	do(t, srv, http.MethodPost, "/api/prices", `{"item_id":"`+ingot+`","unit_price":10}`)
	do(t, srv, http.MethodPost, "/api/prices", `{"item_id":"`+sword+`","unit_price":100}`)

	rec := do(t, srv, http.MethodPost, "/api/simulate",
		`{"output_item_id":"`+sword+`","runs":2,"tax_rate":0}`)
	if rec.Code != 200 {
		t.Fatalf("POST /api/simulate status = %d: %s", rec.Code, rec.Body.String())
	}
	var sim engine.SimulationResult
	decode(t, rec, &sim)
	if sim.Runs != 2 || len(sim.Materials) != 1 || sim.Materials[0].Required != 6 {
		t.Errorf("simulation = %+v", sim)
	}
	if sim.MaterialCost == nil || *sim.MaterialCost != 60 {
		t.Errorf("materialCost = %v, want 60", sim.MaterialCost)
	}
	if sim.Profit == nil || *sim.Profit != 140 {
		t.Errorf("profit = %v, want 140 (200 gross - 60 cost)", sim.Profit)
	}

	rec = do(t, srv, http.MethodPost, "/api/simulate", `{"runs":1}`)
	if rec.Code != 400 {
		t.Errorf("missing target status = %d, want 400", rec.Code)
	}
}

func TestSimulateCycleReturns422WithPath(t *testing.T) {
	srv := newTestServer(t)
	a := createItem(t, srv, "Alpha Ore", "material")
	b := createItem(t, srv, "Beta Bar", "material")
	do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+a+`","output_quantity":1,"inputs":[{"item_id":"`+b+`","quantity":1}]}`)
	do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+b+`","output_quantity":1,"inputs":[{"item_id":"`+a+`","quantity":1}]}`)

	rec := do(t, srv, http.MethodPost, "/api/simulate", `{"output_item_id":"`+a+`","runs":1}`)
	if rec.Code != 422 {
		t.Fatalf("cycle status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Error     string   `json:"error"`
		CyclePath []string `json:"cycle_path"`
	}
	decode(t, rec, &out)
	if len(out.CyclePath) != 3 || out.CyclePath[0] != "Alpha Ore" {
		t.Errorf("cycle path = %v, want the full display-name path", out.CyclePath)
	}
}

func TestImportCatalogOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	body := `{"text":"# Smithing\nIron Ore | material\n[recipes]\nIron Sword | 1 | Iron Ore 3"}`
	rec := do(t, srv, http.MethodPost, "/api/import/catalog", body)
	if rec.Code != 200 {
		t.Fatalf("POST /api/import/catalog status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		CreatedItems int `json:"created_items"`
		SavedRecipes int `json:"saved_recipes"`
	}
	decode(t, rec, &out)
	if out.CreatedItems != 1 || out.SavedRecipes != 1 {
		t.Errorf("import = %+v", out)
	}

	rec = do(t, srv, http.MethodPost, "/api/import/catalog", `{"text":"   "}`)
	if rec.Code != 400 {
		t.Errorf("empty import status = %d, want 400", rec.Code)
	}
}

func TestImportOCROverHTTP(t *testing.T) {
	srv := newTestServer(t)
	createItem(t, srv, "Mana Potion", "material")

	rec := do(t, srv, http.MethodPost, "/api/import/ocr",
		`{"text":"Mana Potion | 5O0\nUnknown Thing 12"}`)
	if rec.Code != 200 {
		t.Fatalf("POST /api/import/ocr status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Applied int               `json:"applied"`
		Unknown []json.RawMessage `json:"unknown"`
	}
	decode(t, rec, &out)
	if out.Applied != 1 || len(out.Unknown) != 1 {
		t.Errorf("ocr import = applied %d unknown %d, want 1 and 1", out.Applied, len(out.Unknown))
	}

	// auto_create overrides the settings default.
	rec = do(t, srv, http.MethodPost, "/api/import/ocr",
		`{"text":"Unknown Thing 12","auto_create":true}`)
	var again struct {
		Applied      int      `json:"applied"`
		CreatedItems []string `json:"created_items"`
	}
	decode(t, rec, &again)
	if again.Applied != 1 || len(again.CreatedItems) != 1 {
		t.Errorf("auto-create import = %+v", again)
	}
}

func TestHistoryAndSignalsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ore := createItem(t, srv, "Iron Ore", "material")
	do(t, srv, http.MethodPost, "/api/prices",
		`{"item_id":"`+ore+`","unit_price":100,"captured_at":"2026-08-10T09:00:00Z"}`)
	do(t, srv, http.MethodPost, "/api/prices",
		`{"item_id":"`+ore+`","unit_price":80,"captured_at":"2026-08-17T09:00:00Z"}`)

	window := "from=2026-08-01T00:00:00Z&to=2026-09-01T00:00:00Z"
	rec := do(t, srv, http.MethodGet, "/api/history/"+ore+"?"+window, "")
	if rec.Code != 200 {
		t.Fatalf("GET /api/history status = %d: %s", rec.Code, rec.Body.String())
	}
	var hist engine.HistoryResult
	decode(t, rec, &hist)
	if hist.SampleCount != 2 || hist.MinPrice == nil || *hist.MinPrice != 80 {
		t.Errorf("history = sampleCount %d min %v", hist.SampleCount, hist.MinPrice)
	}

	rec = do(t, srv, http.MethodGet, "/api/history/"+ore+"?days=oops", "")
	if rec.Code != 400 {
		t.Errorf("bad days status = %d, want 400", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/history/ghost?days=30", "")
	if rec.Code != 404 {
		t.Errorf("unknown item status = %d, want 404", rec.Code)
	}

	// Both snapshots land on a Monday: weekday average 90, latest 80,
	// deviation -1/9 triggers at threshold 0.05.
	rec = do(t, srv, http.MethodGet, "/api/signals?"+window+"&threshold=0.05", "")
	if rec.Code != 200 {
		t.Fatalf("GET /api/signals status = %d: %s", rec.Code, rec.Body.String())
	}
	var sig engine.SignalResult
	decode(t, rec, &sig)
	if len(sig.Rows) != 1 || !sig.Rows[0].Triggered {
		t.Errorf("signals = %+v, want one triggered row", sig.Rows)
	}
}

func TestCraftOptionsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	sword := createItem(t, srv, "Iron Sword", "equipment")
	ingot := createItem(t, srv, "Iron Ingot", "material")
	do(t, srv, http.MethodPost, "/api/recipes",
		`{"output_item_id":"`+sword+`","output_quantity":1,"inputs":[{"item_id":"`+ingot+`","quantity":2}]}`)
	do(t, srv, http.MethodPost, "/api/inventory", `{"item_id":"`+ingot+`","quantity":5}`)
	do(t, srv, http.MethodPost, "/api/prices", `{"item_id":"`+ingot+`","unit_price":10}`)

	rec := do(t, srv, http.MethodGet, "/api/craft-options", "")
	if rec.Code != 200 {
		t.Fatalf("GET /api/craft-options status = %d", rec.Code)
	}
	var out struct {
		Options []engine.CraftOption `json:"options"`
	}
	decode(t, rec, &out)
	if len(out.Options) != 1 || out.Options[0].CraftableRuns != 2 {
		t.Errorf("options = %+v, want one option craftable twice", out.Options)
	}

	rec = do(t, srv, http.MethodGet, "/api/craft-options/near?budget=100", "")
	if rec.Code != 200 {
		t.Fatalf("GET /api/craft-options/near status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodOptions, "/api/items", "")
	if rec.Code != 204 {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
