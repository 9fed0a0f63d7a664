package db

import (
	"fmt"
	"strconv"
	"time"

	"craftdesk/internal/workshop"
)

// LoadState reads the whole workshop document. The result is renormalized so
// callers always see a valid state, even after a partial or legacy write.
func (d *DB) LoadState() (*workshop.State, error) {
	s := workshop.NewState()

	rows, err := d.sql.Query("SELECT id, name, category, icon, notes, created_at, updated_at FROM items")
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it workshop.Item
		var cat, createdAt, updatedAt string
		if err := rows.Scan(&it.ID, &it.Name, &cat, &it.Icon, &it.Notes, &createdAt, &updatedAt); err != nil {
			continue
		}
		it.Category = workshop.Category(cat)
		it.CreatedAt = parseTime(createdAt)
		it.UpdatedAt = parseTime(updatedAt)
		s.Items = append(s.Items, it)
	}
	rows.Close()

	if err := d.loadRecipes(s); err != nil {
		return nil, err
	}

	prows, err := d.sql.Query("SELECT id, item_id, unit_price, captured_at, source, note FROM price_snapshots ORDER BY captured_at, id")
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p workshop.PriceSnapshot
		var capturedAt, source string
		if err := prows.Scan(&p.ID, &p.ItemID, &p.UnitPrice, &capturedAt, &source, &p.Note); err != nil {
			continue
		}
		p.CapturedAt = parseTime(capturedAt)
		p.Source = workshop.Source(source)
		s.Prices = append(s.Prices, p)
	}
	prows.Close()

	irows, err := d.sql.Query("SELECT item_id, quantity, updated_at FROM inventory")
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var row workshop.InventoryRow
		var updatedAt string
		if err := irows.Scan(&row.ItemID, &row.Quantity, &updatedAt); err != nil {
			continue
		}
		row.UpdatedAt = parseTime(updatedAt)
		s.Inventory = append(s.Inventory, row)
	}
	irows.Close()

	var enabled int
	err = d.sql.QueryRow("SELECT enabled, lookback_days, drop_ratio FROM signal_rule WHERE id = 1").
		Scan(&enabled, &s.Rule.LookbackDays, &s.Rule.DropRatio)
	if err == nil {
		s.Rule.Enabled = enabled != 0
	} else {
		s.Rule = workshop.DefaultSignalRule()
	}

	if v, ok := d.getSetting("next_snapshot_id"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.NextSnapshotID = n
		}
	}

	workshop.Normalize(s)
	return s, nil
}

func (d *DB) loadRecipes(s *workshop.State) error {
	rrows, err := d.sql.Query("SELECT id, output_item_id, output_quantity, created_at, updated_at FROM recipes")
	if err != nil {
		return fmt.Errorf("load recipes: %w", err)
	}
	defer rrows.Close()
	byID := make(map[string]int)
	for rrows.Next() {
		var r workshop.Recipe
		var createdAt, updatedAt string
		if err := rrows.Scan(&r.ID, &r.OutputItemID, &r.OutputQuantity, &createdAt, &updatedAt); err != nil {
			continue
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		byID[r.ID] = len(s.Recipes)
		s.Recipes = append(s.Recipes, r)
	}
	rrows.Close()

	inRows, err := d.sql.Query("SELECT recipe_id, item_id, quantity FROM recipe_inputs")
	if err != nil {
		return fmt.Errorf("load recipe inputs: %w", err)
	}
	defer inRows.Close()
	for inRows.Next() {
		var recipeID string
		var in workshop.RecipeInput
		if err := inRows.Scan(&recipeID, &in.ItemID, &in.Quantity); err != nil {
			continue
		}
		if idx, ok := byID[recipeID]; ok {
			s.Recipes[idx].Inputs = append(s.Recipes[idx].Inputs, in)
		}
	}
	return nil
}

// ReplaceState writes the whole document in one transaction, replacing
// whatever was stored before. Partial patches are never written; the engine
// contract is load, compute, replace.
func (d *DB) ReplaceState(s *workshop.State) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"recipe_inputs", "recipes", "price_snapshots", "inventory", "items"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	itemStmt, err := tx.Prepare("INSERT INTO items (id, name, category, icon, notes, created_at, updated_at) VALUES (?,?,?,?,?,?,?)")
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer itemStmt.Close()
	for _, it := range s.Items {
		if _, err := itemStmt.Exec(it.ID, it.Name, string(it.Category), it.Icon, it.Notes,
			formatTime(it.CreatedAt), formatTime(it.UpdatedAt)); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}

	recipeStmt, err := tx.Prepare("INSERT INTO recipes (id, output_item_id, output_quantity, created_at, updated_at) VALUES (?,?,?,?,?)")
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer recipeStmt.Close()
	inputStmt, err := tx.Prepare("INSERT INTO recipe_inputs (recipe_id, item_id, quantity) VALUES (?,?,?)")
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer inputStmt.Close()
	for _, r := range s.Recipes {
		if _, err := recipeStmt.Exec(r.ID, r.OutputItemID, r.OutputQuantity,
			formatTime(r.CreatedAt), formatTime(r.UpdatedAt)); err != nil {
			return fmt.Errorf("insert recipe %s: %w", r.ID, err)
		}
		for _, in := range r.Inputs {
			if _, err := inputStmt.Exec(r.ID, in.ItemID, in.Quantity); err != nil {
				return fmt.Errorf("insert recipe input %s/%s: %w", r.ID, in.ItemID, err)
			}
		}
	}

	priceStmt, err := tx.Prepare("INSERT INTO price_snapshots (id, item_id, unit_price, captured_at, source, note) VALUES (?,?,?,?,?,?)")
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer priceStmt.Close()
	for _, p := range s.Prices {
		if _, err := priceStmt.Exec(p.ID, p.ItemID, p.UnitPrice,
			formatTime(p.CapturedAt), string(p.Source), p.Note); err != nil {
			return fmt.Errorf("insert snapshot %d: %w", p.ID, err)
		}
	}

	invStmt, err := tx.Prepare("INSERT INTO inventory (item_id, quantity, updated_at) VALUES (?,?,?)")
	if err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	defer invStmt.Close()
	for _, row := range s.Inventory {
		if _, err := invStmt.Exec(row.ItemID, row.Quantity, formatTime(row.UpdatedAt)); err != nil {
			return fmt.Errorf("insert inventory %s: %w", row.ItemID, err)
		}
	}

	enabled := 0
	if s.Rule.Enabled {
		enabled = 1
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO signal_rule (id, enabled, lookback_days, drop_ratio) VALUES (1,?,?,?)",
		enabled, s.Rule.LookbackDays, s.Rule.DropRatio); err != nil {
		return fmt.Errorf("save signal rule: %w", err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES ('next_snapshot_id', ?)",
		strconv.FormatInt(s.NextSnapshotID, 10)); err != nil {
		return fmt.Errorf("save snapshot sequence: %w", err)
	}

	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
