package workshop

import (
	"strings"
	"time"
)

// Category classifies an item in the workshop catalog.
type Category string

const (
	CategoryMaterial  Category = "material"
	CategoryEquipment Category = "equipment"
	CategoryComponent Category = "component"
	CategoryOther     Category = "other"
)

// ParseCategory maps a free-form category label to a known category.
// Unknown labels coerce to CategoryOther; this guards imported text, not
// financial results, so it never fails.
func ParseCategory(label string) Category {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "material", "materials", "mat", "素材":
		return CategoryMaterial
	case "equipment", "equip", "gear", "装備":
		return CategoryEquipment
	case "component", "components", "part", "parts", "中間素材":
		return CategoryComponent
	default:
		return CategoryOther
	}
}

// Source marks where a price snapshot came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

// SnapshotRetention caps the price snapshot log per item; the oldest
// snapshots are dropped first once the cap is exceeded.
const SnapshotRetention = 200

// Item is a named catalog entry. Names are unique after normalization
// (case and whitespace insensitive, "(imprint)" tag stripped).
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Icon      string    `json:"icon,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipeInput is one material requirement of a recipe.
type RecipeInput struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// Recipe produces OutputQuantity units of the output item per run.
// Inputs are deduplicated by item id (quantities summed) and sorted.
// At most one recipe exists per output item.
type Recipe struct {
	ID             string        `json:"id"`
	OutputItemID   string        `json:"output_item_id"`
	OutputQuantity int64         `json:"output_quantity"`
	Inputs         []RecipeInput `json:"inputs"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// PriceSnapshot is one observed unit price for an item. Snapshots form an
// append-only log; ids increase monotonically within a state document.
type PriceSnapshot struct {
	ID         int64     `json:"id"`
	ItemID     string    `json:"item_id"`
	UnitPrice  int64     `json:"unit_price"`
	CapturedAt time.Time `json:"captured_at"`
	Source     Source    `json:"source"`
	Note       string    `json:"note,omitempty"`
}

// InventoryRow records how many units of an item are owned.
// At most one row exists per item.
type InventoryRow struct {
	ItemID    string    `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignalRule is the persisted default for price-drop signal detection.
// Queries may override it per call.
type SignalRule struct {
	Enabled      bool    `json:"enabled"`
	LookbackDays int     `json:"lookback_days"`
	DropRatio    float64 `json:"drop_ratio"` // trigger when deviation <= -DropRatio
}

// DefaultSignalRule returns the rule used when none has been saved.
func DefaultSignalRule() SignalRule {
	return SignalRule{Enabled: true, LookbackDays: 30, DropRatio: 0.10}
}

// Clamped returns the rule with its numeric fields coerced into range.
func (r SignalRule) Clamped() SignalRule {
	if r.LookbackDays < 1 {
		r.LookbackDays = 30
	}
	if r.LookbackDays > 365 {
		r.LookbackDays = 365
	}
	if r.DropRatio < 0.01 {
		r.DropRatio = 0.01
	}
	if r.DropRatio > 0.5 {
		r.DropRatio = 0.5
	}
	return r
}

// State is the whole workshop document: catalog, recipe graph, price log,
// inventory, and the signal rule. Engine calls treat it as a value: load,
// compute, replace. Callers must not mutate a shared State concurrently;
// the owning orchestrator serializes mutations (snapshot-read, compute,
// atomic replace).
type State struct {
	Items          []Item          `json:"items"`
	Recipes        []Recipe        `json:"recipes"`
	Prices         []PriceSnapshot `json:"prices"`
	Inventory      []InventoryRow  `json:"inventory"`
	Rule           SignalRule      `json:"rule"`
	NextSnapshotID int64           `json:"next_snapshot_id"`
}

// NewState returns an empty state with defaults applied.
func NewState() *State {
	return &State{
		Rule:           DefaultSignalRule(),
		NextSnapshotID: 1,
	}
}
