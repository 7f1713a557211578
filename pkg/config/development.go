package config

import (
	"os"
	"strconv"
)

func loadDevelopmentConfig(cfg *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.CatalogProviderURL = envOr("CATALOG_PROVIDER_URL", "http://localhost:8801")
	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/data.sqlite"
	cfg.LyricsProviderURL = envOr("LYRICS_PROVIDER_URL", "http://localhost:8802")
	cfg.ServerHost = "127.0.0.1"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
