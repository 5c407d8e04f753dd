package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/klimakarte/station-map/internal/stations"
)

type AppConfig struct {
	// Mode selects the dated production snapshot or the fixed debug
	// fixture (see stations.SnapshotResolver).
	Mode stations.Mode

	// DataBaseURL is the open-data host serving the CSV resources.
	DataBaseURL string

	// DebugSnapshotPath is the fixed snapshot locator used in debug mode.
	DebugSnapshotPath string

	// CitiesMetadataPath locates the static city grid metadata.
	CitiesMetadataPath string

	// DefaultStationName is picked automatically after a load when
	// nothing is selected yet.
	DefaultStationName string

	// RefreshInterval controls how often the snapshot is reloaded.
	RefreshInterval time.Duration

	// HTTPTimeout bounds outbound fetches.
	HTTPTimeout time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	mode := getenvDefault("APP_MODE", string(stations.ModeProduction))
	switch stations.Mode(mode) {
	case stations.ModeProduction, stations.ModeDebug:
		cfg.Mode = stations.Mode(mode)
	default:
		return nil, fmt.Errorf("invalid APP_MODE %q: want %q or %q", mode, stations.ModeProduction, stations.ModeDebug)
	}

	cfg.DataBaseURL = os.Getenv("DATA_BASE_URL")
	if cfg.DataBaseURL == "" && cfg.Mode == stations.ModeProduction {
		return nil, fmt.Errorf("DATA_BASE_URL is required in production mode")
	}

	cfg.DebugSnapshotPath = getenvDefault("DEBUG_SNAPSHOT_PATH", "active_stations_daily.csv")
	cfg.CitiesMetadataPath = getenvDefault("CITIES_METADATA_PATH", "cities_metadata.csv")
	cfg.DefaultStationName = getenvDefault("DEFAULT_STATION_NAME", "Berlin")

	// Refresh interval: default 15 minutes.
	intervalStr := getenvDefault("REFRESH_INTERVAL", "15m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
