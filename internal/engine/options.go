package engine

import (
	"sort"
	"strings"

	"craftdesk/internal/workshop"
)

// CraftOption is one recipe evaluated for feasibility and profitability
// under current inventory and prices (one-run expanded simulation).
type CraftOption struct {
	RecipeID          string        `json:"recipe_id"`
	OutputItemID      string        `json:"output_item_id"`
	OutputName        string        `json:"output_name"`
	OutputQuantity    int64         `json:"output_quantity"`
	CraftableRuns     int64         `json:"craftable_runs"`
	ProfitPerRun      *float64      `json:"profit_per_run"`
	ProfitRate        *float64      `json:"profit_rate"`
	MaterialCost      *int64        `json:"material_cost"`
	MissingCostPerRun *int64        `json:"missing_cost_per_run"`
	Materials         []MaterialRow `json:"materials"`
}

// RankCraftOptions evaluates every known recipe with a one-run expanded
// simulation and ranks the results: craftable runs descending, then profit
// per run descending (unknown profit sorts as worst), then output name
// ascending. Recipes whose expansion fails (cyclic graphs) are reported as
// warnings rather than failing the whole ranking.
func RankCraftOptions(s *workshop.State, taxRate float64) ([]CraftOption, []string) {
	idx := workshop.BuildIndex(s)
	options := make([]CraftOption, 0, len(s.Recipes))
	var warnings []string

	for i := range s.Recipes {
		r := &s.Recipes[i]
		sim, err := expand(idx, r, 1, taxRate, ModeExpanded)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		options = append(options, CraftOption{
			RecipeID:          r.ID,
			OutputItemID:      r.OutputItemID,
			OutputName:        sim.OutputName,
			OutputQuantity:    r.OutputQuantity,
			CraftableRuns:     craftableRuns(sim.Materials),
			ProfitPerRun:      sim.Profit,
			ProfitRate:        sim.ProfitRate,
			MaterialCost:      sim.MaterialCost,
			MissingCostPerRun: missingCost(sim.Materials),
			Materials:         sim.Materials,
		})
	}

	sort.Slice(options, func(i, j int) bool {
		if options[i].CraftableRuns != options[j].CraftableRuns {
			return options[i].CraftableRuns > options[j].CraftableRuns
		}
		if c := compareProfitDesc(options[i].ProfitPerRun, options[j].ProfitPerRun); c != 0 {
			return c < 0
		}
		return strings.ToLower(options[i].OutputName) < strings.ToLower(options[j].OutputName)
	})
	return options, warnings
}

// craftableRuns is the bottleneck count: min over rows with required>0 of
// floor(owned/required). A recipe with no positive requirement consumes
// nothing and is not actionable, so it ranks as 0.
func craftableRuns(rows []MaterialRow) int64 {
	best := int64(-1)
	for _, row := range rows {
		if row.Required <= 0 {
			continue
		}
		runs := row.Owned / row.Required
		if best < 0 || runs < best {
			best = runs
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// missingCost sums the per-run shortfall cost; nil when any row with a
// shortfall has no known price.
func missingCost(rows []MaterialRow) *int64 {
	var total int64
	for _, row := range rows {
		if row.Missing <= 0 {
			continue
		}
		if row.MissingCost == nil {
			return nil
		}
		total += *row.MissingCost
	}
	return i64(total)
}

// compareProfitDesc orders known profits descending with nil as worst.
func compareProfitDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	default:
		return 0
	}
}

// NearSort selects the ordering of the near-craftable view.
type NearSort string

const (
	// NearSortBudgetProfit orders by budget-scoped profit, highest first.
	NearSortBudgetProfit NearSort = "budget_profit"
	// NearSortShortfall orders by per-run shortfall cost, cheapest first.
	NearSortShortfall NearSort = "shortfall"
)

// NearOption is a budget-scoped view of a recipe that is short on at least
// one material but whose shortfall cost is fully known.
type NearOption struct {
	CraftOption
	ShortfallPerRun int64    `json:"shortfall_per_run"`
	AffordableRuns  int64    `json:"affordable_runs"`
	BudgetProfit    *float64 `json:"budget_profit"`
}

// NearCraftable builds the budget-scoped derived view: recipes with at least
// one missing material and a fully known missing cost, given a budget.
// AffordableRuns = floor(budget / missingCostPerRun); BudgetProfit =
// ProfitPerRun * AffordableRuns, nil when the profit is unknown or no run is
// affordable. A zero shortfall cost cannot scope a budget, so such recipes
// report zero affordable runs.
func NearCraftable(s *workshop.State, taxRate float64, budget int64, sortBy NearSort) ([]NearOption, []string) {
	options, warnings := RankCraftOptions(s, taxRate)
	if budget < 0 {
		budget = 0
	}

	near := make([]NearOption, 0, len(options))
	for _, opt := range options {
		if !hasShortfall(opt.Materials) || opt.MissingCostPerRun == nil {
			continue
		}
		n := NearOption{CraftOption: opt, ShortfallPerRun: *opt.MissingCostPerRun}
		if n.ShortfallPerRun > 0 {
			n.AffordableRuns = budget / n.ShortfallPerRun
		}
		if opt.ProfitPerRun != nil && n.AffordableRuns > 0 {
			n.BudgetProfit = f64(*opt.ProfitPerRun * float64(n.AffordableRuns))
		}
		near = append(near, n)
	}

	sort.Slice(near, func(i, j int) bool {
		if sortBy == NearSortShortfall {
			if near[i].ShortfallPerRun != near[j].ShortfallPerRun {
				return near[i].ShortfallPerRun < near[j].ShortfallPerRun
			}
		} else {
			if c := compareProfitDesc(near[i].BudgetProfit, near[j].BudgetProfit); c != 0 {
				return c < 0
			}
		}
		return strings.ToLower(near[i].OutputName) < strings.ToLower(near[j].OutputName)
	})
	return near, warnings
}

func hasShortfall(rows []MaterialRow) bool {
	for _, row := range rows {
		if row.Missing > 0 {
			return true
		}
	}
	return false
}
