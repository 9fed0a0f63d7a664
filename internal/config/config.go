package config

// Settings holds application settings (in-memory representation).
// Persistence is handled by the internal/db package.
type Settings struct {
	// TaxRate is the sale tax applied to gross revenue in simulations,
	// clamped to [0, 0.95] at use sites.
	TaxRate float64 `json:"tax_rate"`
	// DefaultBudget scopes the near-craftable view when the query gives none.
	DefaultBudget int64 `json:"default_budget"`
	// OCRAutoCreate controls whether OCR imports create unknown items or
	// report them back for review.
	OCRAutoCreate bool `json:"ocr_auto_create"`
}

// Default returns Settings with sensible defaults.
func Default() *Settings {
	return &Settings{
		TaxRate:       0.05,
		DefaultBudget: 10000,
		OCRAutoCreate: false,
	}
}
