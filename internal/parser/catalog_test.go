package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCatalog_ItemsAndHeadings(t *testing.T) {
	text := strings.Join([]string{
		"# Smithing",
		"Iron Ore | material",
		"",
		"Iron Sword | equipment | Sword of Beginnings",
		"# Alchemy",
		"Red Herb",
	}, "\n")

	res, err := ParseCatalog(text)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(res.Items))
	}
	if res.Items[0].Name != "Iron Ore" || res.Items[0].CategoryLabel != "material" || res.Items[0].MainCategory != "Smithing" {
		t.Errorf("first item = %+v", res.Items[0])
	}
	if res.Items[1].Alias != "Sword of Beginnings" {
		t.Errorf("alias = %q, want %q", res.Items[1].Alias, "Sword of Beginnings")
	}
	// No explicit category: the heading context fills in.
	if res.Items[2].CategoryLabel != "Alchemy" {
		t.Errorf("heading-derived category = %q, want Alchemy", res.Items[2].CategoryLabel)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

func TestParseCatalog_RecipeMode(t *testing.T) {
	text := strings.Join([]string{
		"[recipes]",
		"Iron Sword | 1 | Iron Ingot 2; Oak Handle 1",
		"Iron Ingot | 2 | Iron Ore 3",
	}, "\n")

	res, err := ParseCatalog(text)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(res.Recipes) != 2 {
		t.Fatalf("recipes = %d, want 2", len(res.Recipes))
	}
	r := res.Recipes[0]
	if r.OutputName != "Iron Sword" || r.OutputQuantity != 1 {
		t.Errorf("output = %q ×%d, want Iron Sword ×1", r.OutputName, r.OutputQuantity)
	}
	if len(r.Inputs) != 2 || r.Inputs[0].Name != "Iron Ingot" || r.Inputs[0].Quantity != 2 {
		t.Errorf("inputs = %+v", r.Inputs)
	}
	if res.Recipes[1].OutputQuantity != 2 {
		t.Errorf("second recipe output qty = %d, want 2", res.Recipes[1].OutputQuantity)
	}
}

func TestParseCatalog_ModeTogglesBothWays(t *testing.T) {
	text := strings.Join([]string{
		"Early Item",
		"[recipes]",
		"Thing | 1 | Stuff 2",
		"[items]",
		"Late Item",
	}, "\n")
	res, err := ParseCatalog(text)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(res.Items) != 2 || len(res.Recipes) != 1 {
		t.Errorf("items = %d recipes = %d, want 2 and 1", len(res.Items), len(res.Recipes))
	}
}

func TestParseCatalog_MalformedRecipeLinesBecomeWarnings(t *testing.T) {
	text := strings.Join([]string{
		"[recipes]",
		"Good Sword | 1 | Iron Ingot 2",
		"No Quantity Sword",
		"Bad Quantity Sword | lots | Iron Ingot 2",
		"Zero Sword | 0 | Iron Ingot 2",
		"Empty Sword | 1 |",
		"Bad Input Sword | 1 | Iron Ingot nine",
	}, "\n")

	res, err := ParseCatalog(text)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(res.Recipes) != 1 || res.Recipes[0].OutputName != "Good Sword" {
		t.Fatalf("recipes = %+v, want only Good Sword", res.Recipes)
	}
	if len(res.Warnings) != 5 {
		t.Fatalf("warnings = %d, want 5: %+v", len(res.Warnings), res.Warnings)
	}
	// Warnings carry the 1-based line number and original text.
	if res.Warnings[0].Line != 3 || res.Warnings[0].Text != "No Quantity Sword" {
		t.Errorf("first warning = %+v", res.Warnings[0])
	}
	if res.Warnings[1].Line != 4 {
		t.Errorf("second warning line = %d, want 4", res.Warnings[1].Line)
	}
}

func TestParseCatalog_EmptyInputIsError(t *testing.T) {
	if _, err := ParseCatalog("   \n\t\n"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("ParseCatalog(blank) = %v, want ErrEmptyInput", err)
	}
}
