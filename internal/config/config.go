package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-ingest/internal/ingest"
)

var validate = validator.New()

type AppConfig struct {
	Port        string `validate:"required,numeric"`
	// GreetingEnv names the environment variable the liveness greeting reads.
	GreetingEnv string `validate:"required"`

	Location          string `validate:"required"`
	OpenWeatherAPIKey string `validate:"required"`
	OpenWeatherURL    string `validate:"required,url"`
	// OpenWeatherUnits must be metric; temperatures are stored as Celsius.
	OpenWeatherUnits  string `validate:"eq=metric"`
	ProviderRate      int    `validate:"gte=0"` // requests per minute, 0 = unlimited
	// ProviderBreaker enables a circuit breaker whose state spans ticks.
	ProviderBreaker   bool

	// FetchIntervalMinutes controls how often the pipeline runs.
	FetchIntervalMinutes int           `validate:"gt=0"`
	FetchCron            string        // overrides the interval when set
	TickOverlap          string        `validate:"oneof=skip concurrent"`
	TickTimeout          time.Duration // zero means no deadline
	RunOnStart           bool          // run one tick right after startup
	HTTPTimeout          time.Duration `validate:"gt=0"`

	// SignalIDs are paired with temperature and condition category, in that order.
	SignalIDs        []string `validate:"min=1,dive,required"`
	EnumSignalID     string   `validate:"required"`
	MetadataSync     bool
	MetadataInputKey string `validate:"oneof=code signal"`
	TimestampMode    string `validate:"oneof=local-as-utc utc"`

	StoreKind          string `validate:"oneof=clarify influx memory"`
	ClarifyCredentials string `validate:"required_if=StoreKind clarify"`
	ClarifyTokenURL    string `validate:"omitempty,url"`
	InfluxAddr         string `validate:"omitempty,url"`
	InfluxUser         string
	InfluxPassword     string
	InfluxDatabase     string `validate:"required_if=StoreKind influx"`
	InfluxMeasurement  string `validate:"required_if=StoreKind influx"`

	// In-memory store retention.
	StoreMaxHistory int           // max number of records kept (0 = unlimited)
	StoreMaxAge     time.Duration // max age of records (0 = unlimited)

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

// FetchInterval returns the tick interval as a duration.
func (c *AppConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMinutes) * time.Minute
}

// LoadEnvFile loads a dotenv file into the process environment. A missing
// file is not an error; variables already set are not overridden.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.GreetingEnv = "NAME"

	cfg.Location = getenvDefault("WEATHER_LOCATION", "Trondheim")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather")
	cfg.OpenWeatherUnits = getenvDefault("OPENWEATHER_UNITS", "metric")

	var err error
	if cfg.ProviderRate, err = getenvInt("PROVIDER_RATE_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.ProviderBreaker, err = getenvBool("PROVIDER_CIRCUIT_BREAKER", false); err != nil {
		return nil, err
	}
	if cfg.FetchIntervalMinutes, err = getenvInt("FETCH_INTERVAL_MINUTES", 1); err != nil {
		return nil, err
	}
	cfg.FetchCron = os.Getenv("FETCH_CRON")
	cfg.TickOverlap = getenvDefault("TICK_OVERLAP", "skip")
	if cfg.TickTimeout, err = getenvDuration("TICK_TIMEOUT", "0"); err != nil {
		return nil, err
	}
	if cfg.RunOnStart, err = getenvBool("RUN_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.SignalIDs = splitList(getenvDefault("SIGNAL_IDS", "temperature_value,weather_condition"))
	cfg.EnumSignalID = os.Getenv("ENUM_SIGNAL_ID")
	if cfg.EnumSignalID == "" && len(cfg.SignalIDs) == ingest.ExtractedValueCount {
		cfg.EnumSignalID = cfg.SignalIDs[1]
	}
	if cfg.MetadataSync, err = getenvBool("METADATA_SYNC", true); err != nil {
		return nil, err
	}
	cfg.MetadataInputKey = getenvDefault("METADATA_INPUT_KEY", ingest.InputKeyCode)
	cfg.TimestampMode = getenvDefault("TIMESTAMP_MODE", ingest.TimestampModeLocalAsUTC)

	cfg.StoreKind = getenvDefault("STORE_KIND", "clarify")
	cfg.ClarifyCredentials = getenvDefault("CLARIFY_CREDENTIALS_PATH", "./clarify-credentials.json")
	cfg.ClarifyTokenURL = getenvDefault("CLARIFY_TOKEN_URL", "https://login.clarify.io/oauth/token")
	cfg.InfluxAddr = getenvDefault("INFLUX_ADDR", "http://localhost:8086")
	cfg.InfluxUser = os.Getenv("INFLUX_USER")
	cfg.InfluxPassword = os.Getenv("INFLUX_PASSWORD")
	cfg.InfluxDatabase = getenvDefault("INFLUX_DATABASE", "weather")
	cfg.InfluxMeasurement = getenvDefault("INFLUX_MEASUREMENT", "weather")

	// Store retention.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 96); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Count mismatches between identifiers and extracted values are caught
	// here, at startup.
	if err := ingest.ValidateSignalIDs(c.SignalIDs); err != nil {
		return fmt.Errorf("invalid SIGNAL_IDS: %w", err)
	}
	found := false
	for _, id := range c.SignalIDs {
		if id == c.EnumSignalID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid ENUM_SIGNAL_ID: %q is not one of SIGNAL_IDS %v", c.EnumSignalID, c.SignalIDs)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
