package config

import (
	"os"
	"strconv"
)

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.WorkerProcesses = 1
}

func loadProductionConfig(cfg *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.CatalogProviderURL = os.Getenv("CATALOG_PROVIDER_URL")
	cfg.DatabaseFilePath = envOr("DATABASE_FILE_PATH", "/data/tonearm.sqlite")
	cfg.LyricsProviderURL = os.Getenv("LYRICS_PROVIDER_URL")
	cfg.ServerHost = "0.0.0.0"
}
