// Package config provides centralized default values for the tracking engine
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err == nil {
			log.Println("Loading configuration overrides from .env file...")
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%f (default: %f)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Collector API client
	CollectorBaseURL   string
	SendTimeout        time.Duration
	RetrySendTimeout   time.Duration
	MigrationTimeout   time.Duration
	FetchTimeout       time.Duration
	CollectorUserAgent string

	// Visit segmentation
	VisitGapThreshold time.Duration
	VisitDebounce     time.Duration

	// Interaction sampling
	MoveThrottle   time.Duration
	ScrollThrottle time.Duration
	MoveSampleRate float64

	// Point weights for heatmap rendering
	ClickPointWeight int
	MovePointWeight  int

	// Delivery retry queue
	RetryQueueCap        int
	MaxRetryAttempts     int
	MaxRetryObservations int
	RetryDrainInterval   time.Duration

	// Durable store
	StoreDatabaseURL   string
	StoreAuthToken     string
	PageBufferCap      int
	StoreRowBudget     int
	GuestInactiveEvict time.Duration
	SlowQueryThreshold time.Duration

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int

	// Replay engine
	MaxAnimationDuration time.Duration
	ReplaySpeedFactor    float64
	HighlightDuration    time.Duration

	// Heatmap overlay rendering
	HeatmapPointRadius  float64
	HeatmapMaxOpacity   float64
	HeatmapExportFormat string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Collector API client
	CollectorBaseURL = getEnvString("COLLECTOR_BASE_URL", "http://localhost:8080/api/v1")
	SendTimeout = getEnvDuration("SEND_TIMEOUT", 5*time.Second)
	RetrySendTimeout = getEnvDuration("RETRY_SEND_TIMEOUT", 3*time.Second)
	MigrationTimeout = getEnvDuration("MIGRATION_TIMEOUT", 10*time.Second)
	FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	CollectorUserAgent = getEnvString("COLLECTOR_USER_AGENT", "newvital-tracker/1.0")

	// Visit segmentation
	VisitGapThreshold = getEnvDuration("VISIT_GAP_THRESHOLD", 5*time.Minute)
	VisitDebounce = getEnvDuration("VISIT_DEBOUNCE", 2*time.Second)

	// Interaction sampling
	MoveThrottle = getEnvDuration("MOVE_THROTTLE", 100*time.Millisecond)
	ScrollThrottle = getEnvDuration("SCROLL_THROTTLE", 500*time.Millisecond)
	MoveSampleRate = getEnvFloat("MOVE_SAMPLE_RATE", 0.1)

	// Point weights
	ClickPointWeight = getEnvInt("CLICK_POINT_WEIGHT", 5)
	MovePointWeight = getEnvInt("MOVE_POINT_WEIGHT", 1)

	// Delivery retry queue
	RetryQueueCap = getEnvInt("RETRY_QUEUE_CAP", 10)
	MaxRetryAttempts = getEnvInt("MAX_RETRY_ATTEMPTS", 3)
	MaxRetryObservations = getEnvInt("MAX_RETRY_OBSERVATIONS", 10)
	RetryDrainInterval = getEnvDuration("RETRY_DRAIN_INTERVAL", 2*time.Minute)

	// Durable store
	StoreDatabaseURL = getEnvString("STORE_DATABASE_URL", "newvital.db")
	StoreAuthToken = getEnvString("STORE_AUTH_TOKEN", "")
	PageBufferCap = getEnvInt("PAGE_BUFFER_CAP", 100)
	StoreRowBudget = getEnvInt("STORE_ROW_BUDGET", 5000)
	GuestInactiveEvict = getEnvDuration("GUEST_INACTIVE_EVICT", 30*24*time.Hour)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)

	// Replay engine
	MaxAnimationDuration = getEnvDuration("MAX_ANIMATION_DURATION", 30*time.Second)
	ReplaySpeedFactor = getEnvFloat("REPLAY_SPEED_FACTOR", 1.0)
	HighlightDuration = getEnvDuration("HIGHLIGHT_DURATION", 800*time.Millisecond)

	// Heatmap overlay rendering
	HeatmapPointRadius = getEnvFloat("HEATMAP_POINT_RADIUS", 25)
	HeatmapMaxOpacity = getEnvFloat("HEATMAP_MAX_OPACITY", 0.6)
	HeatmapExportFormat = getEnvString("HEATMAP_EXPORT_FORMAT", "webp")
}
