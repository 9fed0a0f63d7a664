// Package parser ingests untrusted free text into candidate workshop
// records: a structured catalog listing and noisy OCR output. Both parsers
// are maximally tolerant: a malformed line becomes a warning or invalid-line
// entry and parsing continues; only empty input is a hard failure.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyInput is returned when a parser receives no usable text at all.
var ErrEmptyInput = errors.New("input text is empty")

// ItemRow is one candidate item from a catalog listing.
type ItemRow struct {
	Line          int    `json:"line"`
	Name          string `json:"name"`
	CategoryLabel string `json:"category_label"`
	Alias         string `json:"alias,omitempty"`
	MainCategory  string `json:"main_category,omitempty"` // from the current heading
}

// NameQuantity is a "name quantity" pair from a recipe input list.
type NameQuantity struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// RecipeRow is one candidate recipe from a catalog listing.
type RecipeRow struct {
	Line           int            `json:"line"`
	OutputName     string         `json:"output_name"`
	OutputQuantity int64          `json:"output_quantity"`
	Inputs         []NameQuantity `json:"inputs"`
}

// Warning records a line that could not be used, by 1-based line number.
type Warning struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// CatalogResult is the ordered outcome of parsing a catalog listing.
type CatalogResult struct {
	Items    []ItemRow   `json:"items"`
	Recipes  []RecipeRow `json:"recipes"`
	Warnings []Warning   `json:"warnings"`
}

// Catalog line kinds:
//
//	# Heading            sets the current main category context
//	[items] / [recipes]  header rows toggling the parsing mode
//	name | category | alias          (item mode)
//	output | qty | in 2; other in 1  (recipe mode)
//
// Blank lines are ignored. Malformed recipe lines (missing quantity field,
// non-numeric or non-positive quantity, empty input list) are collected as
// warnings and parsing continues.
func ParseCatalog(text string) (*CatalogResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("parse catalog: %w", ErrEmptyInput)
	}

	res := &CatalogResult{}
	mode := "item"
	heading := ""

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			heading = strings.TrimSpace(strings.TrimLeft(line, "#"))
			continue
		}
		switch strings.ToLower(line) {
		case "[items]":
			mode = "item"
			continue
		case "[recipes]":
			mode = "recipe"
			continue
		}

		if mode == "recipe" {
			row, reason := parseRecipeLine(line)
			if reason != "" {
				res.Warnings = append(res.Warnings, Warning{Line: lineNo, Text: raw, Reason: reason})
				continue
			}
			row.Line = lineNo
			res.Recipes = append(res.Recipes, *row)
			continue
		}

		row, reason := parseItemLine(line, heading)
		if reason != "" {
			res.Warnings = append(res.Warnings, Warning{Line: lineNo, Text: raw, Reason: reason})
			continue
		}
		row.Line = lineNo
		res.Items = append(res.Items, *row)
	}
	return res, nil
}

// parseItemLine reads "name | category | alias"; category and alias are
// optional and the category falls back to the current heading.
func parseItemLine(line, heading string) (*ItemRow, string) {
	fields := splitFields(line)
	if len(fields) == 0 || fields[0] == "" {
		return nil, "item line has no name"
	}
	row := &ItemRow{
		Name:         fields[0],
		MainCategory: heading,
	}
	if len(fields) > 1 {
		row.CategoryLabel = fields[1]
	}
	if row.CategoryLabel == "" {
		row.CategoryLabel = heading
	}
	if len(fields) > 2 {
		row.Alias = fields[2]
	}
	return row, ""
}

// parseRecipeLine reads "output | qty | name qty; name qty".
func parseRecipeLine(line string) (*RecipeRow, string) {
	fields := splitFields(line)
	if len(fields) < 2 {
		return nil, "recipe line is missing its quantity field"
	}
	if fields[0] == "" {
		return nil, "recipe line has no output name"
	}
	qty, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Sprintf("output quantity %q is not a number", fields[1])
	}
	if qty < 1 {
		return nil, fmt.Sprintf("output quantity must be positive, got %d", qty)
	}
	if len(fields) < 3 || strings.TrimSpace(fields[2]) == "" {
		return nil, "recipe line has an empty input list"
	}

	row := &RecipeRow{OutputName: fields[0], OutputQuantity: qty}
	for _, part := range strings.Split(fields[2], ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, inQty, reason := parseNameQuantity(part)
		if reason != "" {
			return nil, reason
		}
		row.Inputs = append(row.Inputs, NameQuantity{Name: name, Quantity: inQty})
	}
	if len(row.Inputs) == 0 {
		return nil, "recipe line has an empty input list"
	}
	return row, ""
}

// parseNameQuantity splits a "name quantity" token; the quantity is the last
// whitespace-separated field, everything before it is the name.
func parseNameQuantity(token string) (string, int64, string) {
	fields := strings.Fields(token)
	if len(fields) < 2 {
		return "", 0, fmt.Sprintf("input %q is missing its quantity", token)
	}
	qty, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return "", 0, fmt.Sprintf("input quantity %q is not a number", fields[len(fields)-1])
	}
	if qty < 1 {
		return "", 0, fmt.Sprintf("input quantity must be positive, got %d", qty)
	}
	return strings.Join(fields[:len(fields)-1], " "), qty, ""
}

func splitFields(line string) []string {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
