package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"craftdesk/internal/api"
	"craftdesk/internal/db"
	"craftdesk/internal/logger"
)

var version = "dev"

func main() {
	godotenv.Load()

	port := flag.Int("port", 14480, "HTTP server port")
	dbPath := flag.String("db", envOrDefault("CRAFTDESK_DB", ""), "SQLite database path (default: craftdesk.db in the working directory)")
	flag.Parse()

	logger.Banner(version)

	database, err := db.Open(*dbPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	cfg := database.LoadSettings()
	state, err := database.LoadState()
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to load workshop state: %v", err))
		os.Exit(1)
	}
	logger.Stats("items", len(state.Items))
	logger.Stats("recipes", len(state.Recipes))
	logger.Stats("snapshots", len(state.Prices))

	srv := api.NewServer(cfg, database)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
