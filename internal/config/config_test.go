package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "WEATHER_LOCATION", "OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL", "OPENWEATHER_UNITS",
		"PROVIDER_RATE_PER_MINUTE", "PROVIDER_CIRCUIT_BREAKER", "RUN_ON_START", "FETCH_INTERVAL_MINUTES", "FETCH_CRON", "TICK_OVERLAP", "TICK_TIMEOUT",
		"HTTP_TIMEOUT", "SIGNAL_IDS", "ENUM_SIGNAL_ID", "METADATA_SYNC", "METADATA_INPUT_KEY", "TIMESTAMP_MODE",
		"STORE_KIND", "CLARIFY_CREDENTIALS_PATH", "CLARIFY_TOKEN_URL", "INFLUX_ADDR", "INFLUX_USER",
		"INFLUX_PASSWORD", "INFLUX_DATABASE", "INFLUX_MEASUREMENT", "STORE_MAX_HISTORY", "STORE_MAX_AGE",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || cfg.Location != "Trondheim" || cfg.OpenWeatherUnits != "metric" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FetchInterval() != time.Minute {
		t.Fatalf("expected 1 minute interval, got %s", cfg.FetchInterval())
	}
	if !reflect.DeepEqual(cfg.SignalIDs, []string{"temperature_value", "weather_condition"}) {
		t.Fatalf("unexpected signal ids %v", cfg.SignalIDs)
	}
	if cfg.EnumSignalID != "weather_condition" {
		t.Fatalf("expected enum signal to default to the second id, got %q", cfg.EnumSignalID)
	}
	if !cfg.MetadataSync || cfg.MetadataInputKey != "code" || cfg.TimestampMode != "local-as-utc" {
		t.Fatalf("unexpected metadata/timestamp defaults: %+v", cfg)
	}
	if cfg.TickOverlap != "skip" || cfg.TickTimeout != 0 || cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected tick defaults: %+v", cfg)
	}
	if cfg.ProviderBreaker || cfg.RunOnStart {
		t.Fatalf("expected breaker and run-on-start off by default: %+v", cfg)
	}
	if cfg.StoreKind != "clarify" || cfg.ClarifyCredentials != "./clarify-credentials.json" {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if cfg.StoreMaxHistory != 96 || cfg.StoreMaxAge != 24*time.Hour {
		t.Fatalf("unexpected retention defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "k")
	t.Setenv("WEATHER_LOCATION", "Bergen")
	t.Setenv("FETCH_INTERVAL_MINUTES", "5")
	t.Setenv("SIGNAL_IDS", " temp , cond ")
	t.Setenv("ENUM_SIGNAL_ID", "cond")
	t.Setenv("METADATA_SYNC", "false")
	t.Setenv("METADATA_INPUT_KEY", "signal")
	t.Setenv("TIMESTAMP_MODE", "utc")
	t.Setenv("TICK_OVERLAP", "concurrent")
	t.Setenv("STORE_KIND", "influx")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TICK_TIMEOUT", "45s")
	t.Setenv("PROVIDER_CIRCUIT_BREAKER", "true")
	t.Setenv("RUN_ON_START", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location != "Bergen" || cfg.FetchInterval() != 5*time.Minute {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.SignalIDs, []string{"temp", "cond"}) {
		t.Fatalf("unexpected signal ids %v", cfg.SignalIDs)
	}
	if cfg.MetadataSync || cfg.MetadataInputKey != "signal" || cfg.TimestampMode != "utc" {
		t.Fatalf("unexpected metadata config: %+v", cfg)
	}
	if cfg.TickOverlap != "concurrent" || cfg.StoreKind != "influx" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TickTimeout != 45*time.Second || !cfg.ProviderBreaker || !cfg.RunOnStart {
		t.Fatalf("unexpected tick config: %+v", cfg)
	}
}

func TestLoadSignalCountMismatch(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "k")
	t.Setenv("SIGNAL_IDS", "temperature_value,weather_condition,humidity")
	t.Setenv("ENUM_SIGNAL_ID", "weather_condition")

	_, err := Load()
	if !errors.Is(err, weather.ErrSchemaMapping) {
		t.Fatalf("expected ErrSchemaMapping for 3 signal ids, got %v", err)
	}

	cfg := validConfig()
	cfg.SignalIDs = []string{"weather_condition"}
	if err := cfg.Validate(); !errors.Is(err, weather.ErrSchemaMapping) {
		t.Fatalf("expected ErrSchemaMapping for 1 signal id, got %v", err)
	}
}

func validConfig() *AppConfig {
	return &AppConfig{
		Port:                 "8080",
		GreetingEnv:          "NAME",
		Location:             "Trondheim",
		OpenWeatherAPIKey:    "k",
		OpenWeatherURL:       "https://api.openweathermap.org/data/2.5/weather",
		OpenWeatherUnits:     "metric",
		FetchIntervalMinutes: 1,
		TickOverlap:          "skip",
		HTTPTimeout:          10 * time.Second,
		SignalIDs:            []string{"temperature_value", "weather_condition"},
		EnumSignalID:         "weather_condition",
		MetadataInputKey:     "code",
		TimestampMode:        "local-as-utc",
		StoreKind:            "memory",
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*AppConfig){
		"zero interval":        func(c *AppConfig) { c.FetchIntervalMinutes = 0 },
		"negative interval":    func(c *AppConfig) { c.FetchIntervalMinutes = -1 },
		"missing api key":      func(c *AppConfig) { c.OpenWeatherAPIKey = "" },
		"bad overlap":          func(c *AppConfig) { c.TickOverlap = "queue" },
		"bad timestamp mode":   func(c *AppConfig) { c.TimestampMode = "guess" },
		"bad store":            func(c *AppConfig) { c.StoreKind = "postgres" },
		"enum not in signals":  func(c *AppConfig) { c.EnumSignalID = "humidity" },
		"duplicate signal ids": func(c *AppConfig) { c.SignalIDs = []string{"a", "a"}; c.EnumSignalID = "a" },
		"empty signal id":      func(c *AppConfig) { c.SignalIDs = []string{"a", ""}; c.EnumSignalID = "a" },
		"bad port":             func(c *AppConfig) { c.Port = "http" },
		"clarify without path": func(c *AppConfig) { c.StoreKind = "clarify"; c.ClarifyCredentials = "" },
		"influx without db":    func(c *AppConfig) { c.StoreKind = "influx"; c.InfluxAddr = "http://x"; c.InfluxMeasurement = "m" },
		"bad log level":        func(c *AppConfig) { c.LogLevel = "trace" },
		"imperial units":       func(c *AppConfig) { c.OpenWeatherUnits = "imperial" },
		"standard units":       func(c *AppConfig) { c.OpenWeatherUnits = "standard" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadInvalidNumbers(t *testing.T) {
	for key, val := range map[string]string{
		"FETCH_INTERVAL_MINUTES": "often",
		"TICK_TIMEOUT":           "soon",
		"METADATA_SYNC":          "maybe",
		"STORE_MAX_HISTORY":      "lots",
		"RUN_ON_START":           "perhaps",
	} {
		clearEnv(t)
		t.Setenv("OPENWEATHER_API_KEY", "k")
		t.Setenv(key, val)
		if _, err := Load(); err == nil {
			t.Errorf("%s=%s: expected error", key, val)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("WEATHER_LOCATION")

	loaded, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || loaded {
		t.Fatalf("missing file should be ignored, got loaded=%v err=%v", loaded, err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("WEATHER_LOCATION=Oslo\nOPENWEATHER_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Already-set variables win over the file.
	t.Setenv("OPENWEATHER_API_KEY", "from-env")

	loaded, err = LoadEnvFile(path)
	if err != nil || !loaded {
		t.Fatalf("expected file to load, got loaded=%v err=%v", loaded, err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location != "Oslo" || cfg.OpenWeatherAPIKey != "from-env" {
		t.Fatalf("unexpected config: location=%q key=%q", cfg.Location, cfg.OpenWeatherAPIKey)
	}
}
