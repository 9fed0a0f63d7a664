package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"craftdesk/internal/workshop"
)

func newItemID() string { return uuid.NewString() }

// importNotePrefix tags notes written by importers. Notes without the prefix
// were edited by hand and are preserved on re-import.
const importNotePrefix = "imported:"

// CatalogMergeResult summarizes applying a parsed catalog to the state.
type CatalogMergeResult struct {
	CreatedItems   int       `json:"created_items"`
	UpdatedItems   int       `json:"updated_items"`
	SavedRecipes   int       `json:"saved_recipes"`
	Warnings       []Warning `json:"warnings"`
	ImplicitlyMade []string  `json:"implicitly_made,omitempty"` // names created to satisfy recipe rows
}

// MergeCatalog resolves parsed catalog rows against the state. Item rows
// update the matching item by normalized name or create a new one with an
// inferred icon; recipe rows resolve their names the same way, implicitly
// creating unresolved items with a provenance note. A second recipe row for
// an output already touched in this run is skipped with a warning.
func MergeCatalog(s *workshop.State, res *CatalogResult, now time.Time) *CatalogMergeResult {
	out := &CatalogMergeResult{Warnings: append([]Warning(nil), res.Warnings...)}

	for _, row := range res.Items {
		created := upsertCatalogItem(s, row, now)
		if created {
			out.CreatedItems++
		} else {
			out.UpdatedItems++
		}
	}

	touched := make(map[string]int) // output item id → line that claimed it
	for _, row := range res.Recipes {
		outputID, made := resolveOrCreate(s, row.OutputName, row.Line, now)
		out.ImplicitlyMade = append(out.ImplicitlyMade, made...)
		if prev, ok := touched[outputID]; ok {
			out.Warnings = append(out.Warnings, Warning{
				Line:   row.Line,
				Text:   row.OutputName,
				Reason: fmt.Sprintf("recipe for this output was already imported at line %d; skipped", prev),
			})
			continue
		}

		inputs := make([]workshop.RecipeInputQty, 0, len(row.Inputs))
		for _, in := range row.Inputs {
			inputID, alsoMade := resolveOrCreate(s, in.Name, row.Line, now)
			out.ImplicitlyMade = append(out.ImplicitlyMade, alsoMade...)
			inputs = append(inputs, workshop.RecipeInputQty{ItemID: inputID, Quantity: in.Quantity})
		}

		if _, err := s.UpsertRecipe(outputID, row.OutputQuantity, inputs, now); err != nil {
			out.Warnings = append(out.Warnings, Warning{Line: row.Line, Text: row.OutputName, Reason: err.Error()})
			continue
		}
		touched[outputID] = row.Line
		out.SavedRecipes++
	}

	workshop.Normalize(s)
	return out
}

// upsertCatalogItem applies one item row and reports whether it created a
// new item. Existing items keep a manually edited note.
func upsertCatalogItem(s *workshop.State, row ItemRow, now time.Time) bool {
	cat := workshop.ParseCategory(row.CategoryLabel)
	idx := workshop.BuildIndex(s)
	note := ""
	if row.Alias != "" {
		note = fmt.Sprintf("%s alias %q", importNotePrefix, row.Alias)
	}
	if it, ok := idx.ItemByName(row.Name); ok {
		it.Category = cat
		if note != "" && isImportNote(it.Notes) {
			it.Notes = note
		}
		if it.Icon == "" {
			it.Icon = InferIcon(cat, row.Name)
		}
		it.UpdatedAt = now
		return false
	}
	s.Items = append(s.Items, workshop.Item{
		ID:        newItemID(),
		Name:      workshop.DisplayName(row.Name),
		Category:  cat,
		Icon:      InferIcon(cat, row.Name),
		Notes:     note,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return true
}

// resolveOrCreate finds an item by normalized name or creates it with a
// provenance note pointing at the catalog line that needed it.
func resolveOrCreate(s *workshop.State, name string, line int, now time.Time) (string, []string) {
	idx := workshop.BuildIndex(s)
	if it, ok := idx.ItemByName(name); ok {
		return it.ID, nil
	}
	display := workshop.DisplayName(name)
	it := workshop.Item{
		ID:        newItemID(),
		Name:      display,
		Category:  workshop.CategoryOther,
		Icon:      InferIcon(workshop.CategoryOther, name),
		Notes:     fmt.Sprintf("%s catalog line %d", importNotePrefix, line),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Items = append(s.Items, it)
	return it.ID, []string{display}
}

func isImportNote(note string) bool {
	return note == "" || strings.HasPrefix(note, importNotePrefix)
}

// iconKeywords maps name fragments to icon tokens, checked in order.
var iconKeywords = []struct {
	keyword string
	icon    string
}{
	{"sword", "weapon"}, {"blade", "weapon"}, {"axe", "weapon"}, {"bow", "weapon"},
	{"armor", "armor"}, {"plate", "armor"}, {"helm", "armor"}, {"shield", "armor"},
	{"potion", "potion"}, {"elixir", "potion"}, {"tonic", "potion"},
	{"ore", "ore"}, {"ingot", "ore"}, {"scrap", "ore"},
	{"herb", "plant"}, {"leaf", "plant"}, {"flower", "plant"}, {"seed", "plant"},
	{"gem", "gem"}, {"crystal", "gem"}, {"jewel", "gem"},
}

// InferIcon picks an icon token from name keywords, falling back to a
// per-category default.
func InferIcon(cat workshop.Category, name string) string {
	lower := strings.ToLower(name)
	for _, kw := range iconKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.icon
		}
	}
	switch cat {
	case workshop.CategoryMaterial:
		return "ore"
	case workshop.CategoryEquipment:
		return "weapon"
	case workshop.CategoryComponent:
		return "gear"
	default:
		return "box"
	}
}

// OCRMergeResult summarizes applying parsed OCR price rows to the state.
type OCRMergeResult struct {
	Applied      int       `json:"applied"`
	CreatedItems []string  `json:"created_items,omitempty"`
	Unknown      []OCRRow  `json:"unknown,omitempty"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// MergeOCR resolves OCR rows against the catalog and records a price
// snapshot per resolved row. Resolution tries the normalized name first and
// then a fuzzy match (unique item within a small edit distance); unresolved
// rows are auto-created with a provenance note when autoCreate is set,
// otherwise reported as unknown.
func MergeOCR(s *workshop.State, rows []OCRRow, autoCreate bool, capturedAt time.Time) *OCRMergeResult {
	out := &OCRMergeResult{}
	for _, row := range rows {
		idx := workshop.BuildIndex(s)
		item, ok := idx.ItemByName(row.ItemName)
		if !ok {
			item = fuzzyResolve(s, row.ItemName)
		}
		if item == nil {
			if !autoCreate {
				out.Unknown = append(out.Unknown, row)
				continue
			}
			display := workshop.DisplayName(row.ItemName)
			created := workshop.Item{
				ID:        newItemID(),
				Name:      display,
				Category:  workshop.CategoryOther,
				Icon:      InferIcon(workshop.CategoryOther, display),
				Notes:     fmt.Sprintf("%s ocr line %d", importNotePrefix, row.Line),
				CreatedAt: capturedAt,
				UpdatedAt: capturedAt,
			}
			s.Items = append(s.Items, created)
			out.CreatedItems = append(out.CreatedItems, display)
			item = &s.Items[len(s.Items)-1]
		}
		note := fmt.Sprintf("%s ocr line %d", importNotePrefix, row.Line)
		if _, err := s.AddSnapshot(item.ID, row.UnitPrice, capturedAt, workshop.SourceImport, note); err != nil {
			out.Warnings = append(out.Warnings, Warning{Line: row.Line, Text: row.RawText, Reason: err.Error()})
			continue
		}
		out.Applied++
	}
	workshop.Normalize(s)
	return out
}

// fuzzyResolve finds the unique item within edit distance 1 (2 for names of
// 8+ runes) of the normalized OCR name. Ambiguous matches resolve to nothing
// rather than guessing.
func fuzzyResolve(s *workshop.State, name string) *workshop.Item {
	key := workshop.NormalizeName(name)
	if key == "" {
		return nil
	}
	limit := 1
	if len([]rune(key)) >= 8 {
		limit = 2
	}
	var best *workshop.Item
	bestDist := limit + 1
	ambiguous := false
	for i := range s.Items {
		d := levenshtein.ComputeDistance(key, workshop.NormalizeName(s.Items[i].Name))
		if d < bestDist {
			best = &s.Items[i]
			bestDist = d
			ambiguous = false
		} else if d == bestDist {
			ambiguous = true
		}
	}
	if best == nil || bestDist > limit || ambiguous {
		return nil
	}
	return best
}
