package workshop

// Index holds lookup maps built once per computation over a state value,
// the same way the simulation and ranking code wants to read it: by id,
// by normalized name, recipe by output item, latest price, owned quantity.
type Index struct {
	items   map[string]*Item
	byName  map[string]*Item
	recipes map[string]*Recipe // keyed by output item id
	latest  map[string]*PriceSnapshot
	owned   map[string]int64
}

// BuildIndex indexes the state for read-only lookups. The index borrows the
// state's backing arrays; it is only valid while the state is unchanged.
func BuildIndex(s *State) *Index {
	idx := &Index{
		items:   make(map[string]*Item, len(s.Items)),
		byName:  make(map[string]*Item, len(s.Items)),
		recipes: make(map[string]*Recipe, len(s.Recipes)),
		latest:  make(map[string]*PriceSnapshot, len(s.Items)),
		owned:   make(map[string]int64, len(s.Inventory)),
	}
	for i := range s.Items {
		it := &s.Items[i]
		idx.items[it.ID] = it
		idx.byName[NormalizeName(it.Name)] = it
	}
	for i := range s.Recipes {
		r := &s.Recipes[i]
		idx.recipes[r.OutputItemID] = r
	}
	for i := range s.Prices {
		p := &s.Prices[i]
		cur, ok := idx.latest[p.ItemID]
		if !ok {
			idx.latest[p.ItemID] = p
			continue
		}
		// Most recent capture wins; capture-time ties go to the higher id.
		if p.CapturedAt.After(cur.CapturedAt) ||
			(p.CapturedAt.Equal(cur.CapturedAt) && p.ID > cur.ID) {
			idx.latest[p.ItemID] = p
		}
	}
	for _, row := range s.Inventory {
		q := row.Quantity
		if q < 0 {
			q = 0
		}
		idx.owned[row.ItemID] = q
	}
	return idx
}

// Item returns the item with the given id.
func (idx *Index) Item(id string) (*Item, bool) {
	it, ok := idx.items[id]
	return it, ok
}

// ItemByName resolves an item by normalized name.
func (idx *Index) ItemByName(name string) (*Item, bool) {
	it, ok := idx.byName[NormalizeName(name)]
	return it, ok
}

// RecipeFor returns the recipe producing the given item, if any.
// An item with no recipe is a base material.
func (idx *Index) RecipeFor(outputItemID string) (*Recipe, bool) {
	r, ok := idx.recipes[outputItemID]
	return r, ok
}

// LatestPrice returns the most recent known price snapshot for an item.
func (idx *Index) LatestPrice(itemID string) (*PriceSnapshot, bool) {
	p, ok := idx.latest[itemID]
	return p, ok
}

// Owned returns the inventory quantity for an item (0 when untracked).
func (idx *Index) Owned(itemID string) int64 {
	return idx.owned[itemID]
}

// DisplayNameOf returns the item's display name, or the id itself when the
// item is unknown (error paths still need something to print).
func (idx *Index) DisplayNameOf(itemID string) string {
	if it, ok := idx.items[itemID]; ok {
		return it.Name
	}
	return itemID
}
