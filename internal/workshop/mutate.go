package workshop

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrEmptyName      = errors.New("item name is empty")
)

// ItemInput is the payload for creating or updating an item by name.
type ItemInput struct {
	Name     string
	Category Category
	Icon     string
	Notes    string
}

// UpsertItem resolves the input by normalized name: an existing item is
// refreshed, otherwise a new one is created. Returns the touched item id.
func (s *State) UpsertItem(in ItemInput, now time.Time) (string, error) {
	name := DisplayName(in.Name)
	if NormalizeName(name) == "" {
		return "", ErrEmptyName
	}
	cat := in.Category
	if cat == "" {
		cat = CategoryOther
	}
	idx := BuildIndex(s)
	if it, ok := idx.ItemByName(name); ok {
		it.Category = cat
		if in.Icon != "" {
			it.Icon = in.Icon
		}
		if in.Notes != "" {
			it.Notes = in.Notes
		}
		it.UpdatedAt = now
		Normalize(s)
		return it.ID, nil
	}
	it := Item{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  cat,
		Icon:      in.Icon,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Items = append(s.Items, it)
	Normalize(s)
	return it.ID, nil
}

// DeleteItem removes an item and cascades: recipes whose output or inputs
// reference it, its price snapshots, and its inventory row all go with it.
func (s *State) DeleteItem(itemID string) error {
	found := false
	items := s.Items[:0]
	for _, it := range s.Items {
		if it.ID == itemID {
			found = true
			continue
		}
		items = append(items, it)
	}
	if !found {
		return fmt.Errorf("delete item %s: %w", itemID, ErrItemNotFound)
	}
	s.Items = items

	recipes := s.Recipes[:0]
	for _, r := range s.Recipes {
		if r.OutputItemID == itemID || recipeUsesInput(r, itemID) {
			continue
		}
		recipes = append(recipes, r)
	}
	s.Recipes = recipes

	prices := s.Prices[:0]
	for _, p := range s.Prices {
		if p.ItemID == itemID {
			continue
		}
		prices = append(prices, p)
	}
	s.Prices = prices

	inv := s.Inventory[:0]
	for _, row := range s.Inventory {
		if row.ItemID == itemID {
			continue
		}
		inv = append(inv, row)
	}
	s.Inventory = inv

	Normalize(s)
	return nil
}

func recipeUsesInput(r Recipe, itemID string) bool {
	for _, in := range r.Inputs {
		if in.ItemID == itemID {
			return true
		}
	}
	return false
}

// RecipeInputQty is one (item, quantity) pair of a recipe payload.
type RecipeInputQty struct {
	ItemID   string
	Quantity int64
}

// UpsertRecipe validates and saves the recipe for an output item, replacing
// any existing recipe for the same output. Validation is fail-fast: an
// unknown item, a non-positive quantity, or the output appearing among its
// own inputs aborts without touching the state.
//
// Acyclicity is deliberately not checked here. A cycle introduced by one
// edit can be broken by the next; the simulation reports the full offending
// path when a cyclic graph is actually expanded.
func (s *State) UpsertRecipe(outputItemID string, outputQuantity int64, inputs []RecipeInputQty, now time.Time) (string, error) {
	idx := BuildIndex(s)
	if _, ok := idx.Item(outputItemID); !ok {
		return "", fmt.Errorf("recipe output %s: %w", outputItemID, ErrItemNotFound)
	}
	if outputQuantity < 1 {
		return "", fmt.Errorf("recipe output quantity must be >= 1, got %d", outputQuantity)
	}
	merged := make(map[string]int64, len(inputs))
	for _, in := range inputs {
		if in.ItemID == outputItemID {
			return "", fmt.Errorf("recipe for %q lists its own output as an input", idx.DisplayNameOf(outputItemID))
		}
		if _, ok := idx.Item(in.ItemID); !ok {
			return "", fmt.Errorf("recipe input %s: %w", in.ItemID, ErrItemNotFound)
		}
		if in.Quantity < 1 {
			return "", fmt.Errorf("recipe input %q quantity must be >= 1, got %d", idx.DisplayNameOf(in.ItemID), in.Quantity)
		}
		merged[in.ItemID] += in.Quantity
	}

	names := make(map[string]string, len(s.Items))
	for _, it := range s.Items {
		names[it.ID] = it.Name
	}
	recipeInputs := sortedInputs(merged, names)

	for i := range s.Recipes {
		if s.Recipes[i].OutputItemID == outputItemID {
			s.Recipes[i].OutputQuantity = outputQuantity
			s.Recipes[i].Inputs = recipeInputs
			s.Recipes[i].UpdatedAt = now
			id := s.Recipes[i].ID
			Normalize(s)
			return id, nil
		}
	}
	r := Recipe{
		ID:             uuid.NewString(),
		OutputItemID:   outputItemID,
		OutputQuantity: outputQuantity,
		Inputs:         recipeInputs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Recipes = append(s.Recipes, r)
	Normalize(s)
	return r.ID, nil
}

// DeleteRecipe removes the recipe with the given id.
func (s *State) DeleteRecipe(recipeID string) error {
	for i := range s.Recipes {
		if s.Recipes[i].ID == recipeID {
			s.Recipes = append(s.Recipes[:i], s.Recipes[i+1:]...)
			Normalize(s)
			return nil
		}
	}
	return fmt.Errorf("delete recipe %s: %w", recipeID, ErrRecipeNotFound)
}

// AddSnapshot appends one observed price to the item's log, assigning the
// next snapshot id and enforcing the retention cap (oldest dropped first).
func (s *State) AddSnapshot(itemID string, unitPrice int64, capturedAt time.Time, source Source, note string) (int64, error) {
	idx := BuildIndex(s)
	if _, ok := idx.Item(itemID); !ok {
		return 0, fmt.Errorf("price snapshot for %s: %w", itemID, ErrItemNotFound)
	}
	if unitPrice < 0 {
		return 0, fmt.Errorf("unit price must be >= 0, got %d", unitPrice)
	}
	if source != SourceManual && source != SourceImport {
		source = SourceManual
	}
	id := s.NextSnapshotID
	s.NextSnapshotID++
	s.Prices = append(s.Prices, PriceSnapshot{
		ID:         id,
		ItemID:     itemID,
		UnitPrice:  unitPrice,
		CapturedAt: capturedAt,
		Source:     source,
		Note:       note,
	})
	sort.SliceStable(s.Prices, func(i, j int) bool {
		if !s.Prices[i].CapturedAt.Equal(s.Prices[j].CapturedAt) {
			return s.Prices[i].CapturedAt.Before(s.Prices[j].CapturedAt)
		}
		return s.Prices[i].ID < s.Prices[j].ID
	})
	capSnapshots(s)
	return id, nil
}

// SetInventory sets the owned quantity for an item (one row per item).
func (s *State) SetInventory(itemID string, quantity int64, now time.Time) error {
	idx := BuildIndex(s)
	if _, ok := idx.Item(itemID); !ok {
		return fmt.Errorf("inventory for %s: %w", itemID, ErrItemNotFound)
	}
	if quantity < 0 {
		return fmt.Errorf("inventory quantity must be >= 0, got %d", quantity)
	}
	for i := range s.Inventory {
		if s.Inventory[i].ItemID == itemID {
			s.Inventory[i].Quantity = quantity
			s.Inventory[i].UpdatedAt = now
			return nil
		}
	}
	s.Inventory = append(s.Inventory, InventoryRow{ItemID: itemID, Quantity: quantity, UpdatedAt: now})
	sort.SliceStable(s.Inventory, func(i, j int) bool {
		return s.Inventory[i].ItemID < s.Inventory[j].ItemID
	})
	return nil
}

// SetSignalRule saves the default signal rule, silently clamping its numeric
// fields into range (it guards configuration, not financial results).
func (s *State) SetSignalRule(rule SignalRule) {
	s.Rule = rule.Clamped()
}
