package engine

import (
	"fmt"
	"sort"
	"strings"

	"craftdesk/internal/workshop"
)

// Mode selects how a recipe's inputs are interpreted.
type Mode string

const (
	// ModeExpanded follows recipe chains down to base materials.
	ModeExpanded Mode = "expanded"
	// ModeDirect treats the root recipe's immediate inputs as the full
	// material bill, ignoring nested recipes. Used for single-tier previews.
	ModeDirect Mode = "direct"
)

// MaterialRow is one required material of a simulation, with inventory and
// price context. Cost fields are nil when no price is known for the item.
type MaterialRow struct {
	ItemID       string `json:"item_id"`
	Name         string `json:"name"`
	Required     int64  `json:"required"`
	Owned        int64  `json:"owned"`
	Missing      int64  `json:"missing"`
	UnitPrice    *int64 `json:"unit_price"`
	RequiredCost *int64 `json:"required_cost"`
	MissingCost  *int64 `json:"missing_cost"`
}

// CraftRun reports how many times an intermediate recipe must run.
type CraftRun struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Runs   int64  `json:"runs"`
}

// SimulationResult is the full outcome of expanding a recipe for N runs.
// Aggregates follow strict null propagation: one material without a known
// price nulls MaterialCost and everything derived from it.
type SimulationResult struct {
	RecipeID        string        `json:"recipe_id"`
	OutputItemID    string        `json:"output_item_id"`
	OutputName      string        `json:"output_name"`
	OutputQuantity  int64         `json:"output_quantity"`
	Runs            int64         `json:"runs"`
	Mode            Mode          `json:"mode"`
	TaxRate         float64       `json:"tax_rate"`
	Materials       []MaterialRow `json:"materials"`
	CraftRuns       []CraftRun    `json:"craft_runs"`
	MaterialCost    *int64        `json:"material_cost"`
	OutputUnitPrice *int64        `json:"output_unit_price"`
	GrossRevenue    *int64        `json:"gross_revenue"`
	NetRevenue      *float64      `json:"net_revenue"`
	Profit          *float64      `json:"profit"`
	ProfitRate      *float64      `json:"profit_rate"`
}

// CycleError reports a recipe graph cycle found during expansion. Path holds
// the display names from the entry item down to the repeated one.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("recipe cycle detected: %s", strings.Join(e.Path, " -> "))
}

// ClampTaxRate coerces a tax rate into [0, 0.95]. Out-of-range values are
// configuration noise, not a reason to fail a simulation.
func ClampTaxRate(rate float64) float64 {
	if rate < 0 || rate != rate {
		return 0
	}
	if rate > 0.95 {
		return 0.95
	}
	return rate
}

// Expand runs the simulation for the recipe with the given id.
func Expand(s *workshop.State, recipeID string, runs int64, taxRate float64, mode Mode) (*SimulationResult, error) {
	idx := workshop.BuildIndex(s)
	for i := range s.Recipes {
		if s.Recipes[i].ID == recipeID {
			return expand(idx, &s.Recipes[i], runs, taxRate, mode)
		}
	}
	return nil, fmt.Errorf("expand %s: %w", recipeID, workshop.ErrRecipeNotFound)
}

// ExpandForOutput runs the simulation for the recipe producing an item.
func ExpandForOutput(s *workshop.State, outputItemID string, runs int64, taxRate float64, mode Mode) (*SimulationResult, error) {
	idx := workshop.BuildIndex(s)
	r, ok := idx.RecipeFor(outputItemID)
	if !ok {
		return nil, fmt.Errorf("no recipe produces %q: %w", idx.DisplayNameOf(outputItemID), workshop.ErrRecipeNotFound)
	}
	return expand(idx, r, runs, taxRate, mode)
}

func expand(idx *workshop.Index, r *workshop.Recipe, runs int64, taxRate float64, mode Mode) (*SimulationResult, error) {
	if runs < 1 {
		runs = 1
	}
	taxRate = ClampTaxRate(taxRate)
	if mode != ModeDirect {
		mode = ModeExpanded
	}

	required := make(map[string]int64)
	craftRuns := make(map[string]int64)

	if mode == ModeDirect {
		for _, in := range r.Inputs {
			required[in.ItemID] += in.Quantity * runs
		}
	} else {
		walker := &expansionWalk{idx: idx, required: required, craftRuns: craftRuns}
		walker.push(r.OutputItemID)
		for _, in := range r.Inputs {
			if err := walker.visit(in.ItemID, in.Quantity*runs); err != nil {
				return nil, err
			}
		}
	}

	res := &SimulationResult{
		RecipeID:       r.ID,
		OutputItemID:   r.OutputItemID,
		OutputName:     idx.DisplayNameOf(r.OutputItemID),
		OutputQuantity: r.OutputQuantity,
		Runs:           runs,
		Mode:           mode,
		TaxRate:        taxRate,
	}
	res.Materials = buildMaterialRows(idx, required)
	res.CraftRuns = buildCraftRuns(idx, craftRuns)
	applyEconomics(idx, res)
	return res, nil
}

// expansionWalk carries the depth-first state: the set of items on the
// active recursion path (and the path itself, for error reporting).
type expansionWalk struct {
	idx       *workshop.Index
	required  map[string]int64
	craftRuns map[string]int64
	path      []string
	onPath    map[string]bool
}

func (w *expansionWalk) push(itemID string) {
	if w.onPath == nil {
		w.onPath = make(map[string]bool)
	}
	w.path = append(w.path, itemID)
	w.onPath[itemID] = true
}

func (w *expansionWalk) pop() {
	last := w.path[len(w.path)-1]
	w.path = w.path[:len(w.path)-1]
	delete(w.onPath, last)
}

// visit processes one needed (item, quantity) pair. Base materials
// accumulate into the required map; craftable items recurse through their
// recipe scaled by the run count. The path membership check happens before
// recursing, which bounds the call depth on cyclic graphs.
func (w *expansionWalk) visit(itemID string, quantity int64) error {
	recipe, ok := w.idx.RecipeFor(itemID)
	if !ok {
		w.required[itemID] += quantity
		return nil
	}
	if w.onPath[itemID] {
		return w.cycleError(itemID)
	}
	runsNeeded := ceilDiv(quantity, recipe.OutputQuantity)
	w.craftRuns[itemID] += runsNeeded
	w.push(itemID)
	defer w.pop()
	for _, in := range recipe.Inputs {
		if err := w.visit(in.ItemID, in.Quantity*runsNeeded); err != nil {
			return err
		}
	}
	return nil
}

func (w *expansionWalk) cycleError(repeated string) *CycleError {
	names := make([]string, 0, len(w.path)+1)
	for _, id := range w.path {
		names = append(names, w.idx.DisplayNameOf(id))
	}
	names = append(names, w.idx.DisplayNameOf(repeated))
	return &CycleError{Path: names}
}

func ceilDiv(quantity, perRun int64) int64 {
	if perRun < 1 {
		perRun = 1
	}
	runs := quantity / perRun
	if quantity%perRun != 0 {
		runs++
	}
	return runs
}

func buildMaterialRows(idx *workshop.Index, required map[string]int64) []MaterialRow {
	rows := make([]MaterialRow, 0, len(required))
	for itemID, qty := range required {
		if qty < 0 {
			qty = 0
		}
		owned := idx.Owned(itemID)
		missing := qty - owned
		if missing < 0 {
			missing = 0
		}
		row := MaterialRow{
			ItemID:   itemID,
			Name:     idx.DisplayNameOf(itemID),
			Required: qty,
			Owned:    owned,
			Missing:  missing,
		}
		if p, ok := idx.LatestPrice(itemID); ok {
			price := p.UnitPrice
			row.UnitPrice = &price
			row.RequiredCost = i64(price * qty)
			row.MissingCost = i64(price * missing)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Missing != rows[j].Missing {
			return rows[i].Missing > rows[j].Missing
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
	return rows
}

func buildCraftRuns(idx *workshop.Index, craftRuns map[string]int64) []CraftRun {
	out := make([]CraftRun, 0, len(craftRuns))
	for itemID, runs := range craftRuns {
		out = append(out, CraftRun{ItemID: itemID, Name: idx.DisplayNameOf(itemID), Runs: runs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Runs != out[j].Runs {
			return out[i].Runs > out[j].Runs
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// applyEconomics fills the aggregate money fields. A single material row
// without a known price nulls MaterialCost, and any derived value whose
// operands are nil stays nil.
func applyEconomics(idx *workshop.Index, res *SimulationResult) {
	var materialCost int64
	costKnown := true
	for _, row := range res.Materials {
		if row.RequiredCost == nil {
			costKnown = false
			break
		}
		materialCost += *row.RequiredCost
	}
	if costKnown {
		res.MaterialCost = i64(materialCost)
	}

	if p, ok := idx.LatestPrice(res.OutputItemID); ok {
		res.OutputUnitPrice = i64(p.UnitPrice)
		gross := p.UnitPrice * res.OutputQuantity * res.Runs
		res.GrossRevenue = i64(gross)
		res.NetRevenue = f64(float64(gross) * (1 - res.TaxRate))
	}

	if res.NetRevenue != nil && res.MaterialCost != nil {
		res.Profit = f64(*res.NetRevenue - float64(*res.MaterialCost))
		if *res.MaterialCost > 0 {
			res.ProfitRate = f64(*res.Profit / float64(*res.MaterialCost))
		}
	}
}

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }
