package workshop

import (
	"sort"
	"strings"
)

// NormalizeName produces the canonical lookup key for an item name:
// trimmed, case-folded, internal whitespace collapsed to single spaces,
// with one trailing "(imprint)" tag stripped. ASCII and full-width
// parentheses are both accepted for the tag.
func NormalizeName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	for _, tag := range []string{"(imprint)", "（imprint）"} {
		if strings.HasSuffix(s, tag) {
			s = strings.TrimSpace(strings.TrimSuffix(s, tag))
			break
		}
	}
	return s
}

// DisplayName cleans a raw name for storage while preserving its case:
// trimmed with internal whitespace collapsed.
func DisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// foldName is the sort key for display ordering.
func foldName(name string) string {
	return strings.ToLower(DisplayName(name))
}

// Normalize renormalizes the whole state in place and returns it.
// It is total and idempotent: duplicate items merge into the first
// occurrence (references remapped), recipes with a missing or invalid
// output are dropped, inputs are deduplicated and re-sorted, dangling
// snapshots and inventory rows are pruned, the snapshot log is capped,
// and the signal rule is clamped.
func Normalize(s *State) *State {
	remap := dedupeItems(s)
	normalizeRecipes(s, remap)
	normalizePrices(s, remap)
	normalizeInventory(s, remap)
	s.Rule = s.Rule.Clamped()
	if s.NextSnapshotID < 1 {
		s.NextSnapshotID = 1
	}
	for _, p := range s.Prices {
		if p.ID >= s.NextSnapshotID {
			s.NextSnapshotID = p.ID + 1
		}
	}
	return s
}

// dedupeItems merges items sharing a normalized name into the first
// occurrence and returns the dropped-id → kept-id remapping.
func dedupeItems(s *State) map[string]string {
	remap := make(map[string]string)
	seen := make(map[string]int) // normalized name → index in kept
	kept := s.Items[:0]
	for _, it := range s.Items {
		it.Name = DisplayName(it.Name)
		key := NormalizeName(it.Name)
		if key == "" {
			continue
		}
		if idx, ok := seen[key]; ok {
			remap[it.ID] = kept[idx].ID
			continue
		}
		if it.Category == "" {
			it.Category = CategoryOther
		}
		seen[key] = len(kept)
		kept = append(kept, it)
	}
	s.Items = kept
	sort.SliceStable(s.Items, func(i, j int) bool {
		return foldName(s.Items[i].Name) < foldName(s.Items[j].Name)
	})
	return remap
}

func normalizeRecipes(s *State, remap map[string]string) {
	ids := make(map[string]bool, len(s.Items))
	names := make(map[string]string, len(s.Items))
	for _, it := range s.Items {
		ids[it.ID] = true
		names[it.ID] = it.Name
	}
	resolve := func(id string) string {
		if to, ok := remap[id]; ok {
			return to
		}
		return id
	}

	seenOutput := make(map[string]bool)
	kept := s.Recipes[:0]
	for _, r := range s.Recipes {
		r.OutputItemID = resolve(r.OutputItemID)
		if !ids[r.OutputItemID] || r.OutputQuantity < 1 || seenOutput[r.OutputItemID] {
			continue
		}
		merged := make(map[string]int64)
		for _, in := range r.Inputs {
			id := resolve(in.ItemID)
			if !ids[id] || id == r.OutputItemID || in.Quantity < 1 {
				continue
			}
			merged[id] += in.Quantity
		}
		r.Inputs = sortedInputs(merged, names)
		seenOutput[r.OutputItemID] = true
		kept = append(kept, r)
	}
	s.Recipes = kept
	sort.SliceStable(s.Recipes, func(i, j int) bool {
		return foldName(names[s.Recipes[i].OutputItemID]) < foldName(names[s.Recipes[j].OutputItemID])
	})
}

// sortedInputs converts a dedup-merge map back to the stored slice form,
// ordered by input item display name (then id, for items sharing a name key).
func sortedInputs(merged map[string]int64, names map[string]string) []RecipeInput {
	inputs := make([]RecipeInput, 0, len(merged))
	for id, qty := range merged {
		inputs = append(inputs, RecipeInput{ItemID: id, Quantity: qty})
	}
	sort.Slice(inputs, func(i, j int) bool {
		ni, nj := foldName(names[inputs[i].ItemID]), foldName(names[inputs[j].ItemID])
		if ni != nj {
			return ni < nj
		}
		return inputs[i].ItemID < inputs[j].ItemID
	})
	return inputs
}

func normalizePrices(s *State, remap map[string]string) {
	ids := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		ids[it.ID] = true
	}
	kept := s.Prices[:0]
	for _, p := range s.Prices {
		if to, ok := remap[p.ItemID]; ok {
			p.ItemID = to
		}
		if !ids[p.ItemID] || p.UnitPrice < 0 {
			continue
		}
		if p.Source != SourceManual && p.Source != SourceImport {
			p.Source = SourceManual
		}
		kept = append(kept, p)
	}
	s.Prices = kept
	sort.SliceStable(s.Prices, func(i, j int) bool {
		if !s.Prices[i].CapturedAt.Equal(s.Prices[j].CapturedAt) {
			return s.Prices[i].CapturedAt.Before(s.Prices[j].CapturedAt)
		}
		return s.Prices[i].ID < s.Prices[j].ID
	})
	capSnapshots(s)
}

// capSnapshots enforces the per-item retention limit, dropping the oldest
// snapshots first. Assumes s.Prices is already in (capturedAt, id) order.
func capSnapshots(s *State) {
	count := make(map[string]int)
	for _, p := range s.Prices {
		count[p.ItemID]++
	}
	over := false
	for _, n := range count {
		if n > SnapshotRetention {
			over = true
			break
		}
	}
	if !over {
		return
	}
	drop := make(map[string]int)
	for id, n := range count {
		if n > SnapshotRetention {
			drop[id] = n - SnapshotRetention
		}
	}
	kept := s.Prices[:0]
	for _, p := range s.Prices {
		if drop[p.ItemID] > 0 {
			drop[p.ItemID]--
			continue
		}
		kept = append(kept, p)
	}
	s.Prices = kept
}

func normalizeInventory(s *State, remap map[string]string) {
	ids := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		ids[it.ID] = true
	}
	byItem := make(map[string]int)
	kept := s.Inventory[:0]
	for _, row := range s.Inventory {
		if to, ok := remap[row.ItemID]; ok {
			row.ItemID = to
		}
		if !ids[row.ItemID] {
			continue
		}
		if row.Quantity < 0 {
			row.Quantity = 0
		}
		if idx, ok := byItem[row.ItemID]; ok {
			// Remapped duplicates collapse to the most recently updated row.
			if row.UpdatedAt.After(kept[idx].UpdatedAt) {
				kept[idx] = row
			}
			continue
		}
		byItem[row.ItemID] = len(kept)
		kept = append(kept, row)
	}
	s.Inventory = kept
	sort.SliceStable(s.Inventory, func(i, j int) bool {
		return s.Inventory[i].ItemID < s.Inventory[j].ItemID
	})
}
