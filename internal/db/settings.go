package db

import (
	"strconv"

	"craftdesk/internal/config"
)

// LoadSettings reads app settings from the settings table. Missing keys keep
// their defaults.
func (d *DB) LoadSettings() *config.Settings {
	cfg := config.Default()
	if v, ok := d.getSetting("tax_rate"); ok {
		cfg.TaxRate, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := d.getSetting("default_budget"); ok {
		cfg.DefaultBudget, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := d.getSetting("ocr_auto_create"); ok {
		cfg.OCRAutoCreate, _ = strconv.ParseBool(v)
	}
	return cfg
}

// SaveSettings persists app settings to the settings table.
func (d *DB) SaveSettings(cfg *config.Settings) error {
	pairs := map[string]string{
		"tax_rate":        strconv.FormatFloat(cfg.TaxRate, 'f', -1, 64),
		"default_budget":  strconv.FormatInt(cfg.DefaultBudget, 10),
		"ocr_auto_create": strconv.FormatBool(cfg.OCRAutoCreate),
	}
	for k, v := range pairs {
		if _, err := d.sql.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?,?)", k, v); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) getSetting(key string) (string, bool) {
	var v string
	if err := d.sql.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return "", false
	}
	return v, true
}
