package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int           `mapstructure:"REDIS_SESSION_DB"`
	SessionStore   string        `mapstructure:"SESSION_STORE"` // memory | redis
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`

	// Intent extraction.
	GeminiAPIKey    string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel     string        `mapstructure:"GEMINI_MODEL"`
	IntentExtractor string        `mapstructure:"INTENT_EXTRACTOR"` // gemini | rules
	ExtractTimeout  time.Duration `mapstructure:"EXTRACT_TIMEOUT"`
	HistoryTurns    int           `mapstructure:"HISTORY_TURNS"`

	// Calendar access.
	CalendarBackend       string        `mapstructure:"CALENDAR_BACKEND"` // google | memory
	CalendarID            string        `mapstructure:"CALENDAR_ID"`
	GoogleCredentialsPath string        `mapstructure:"GOOGLE_CREDENTIALS_PATH"`
	CalendarQPS           float64       `mapstructure:"CALENDAR_QPS"`
	CalendarTimeout       time.Duration `mapstructure:"CALENDAR_TIMEOUT"`
	CalendarMaxRetries    int           `mapstructure:"CALENDAR_MAX_RETRIES"`
	CalendarRetryBackoff  time.Duration `mapstructure:"CALENDAR_RETRY_BACKOFF"`
	VerifyAfterWrite      bool          `mapstructure:"VERIFY_AFTER_WRITE"`

	// Scheduling.
	Timezone          string        `mapstructure:"TIMEZONE"`
	WorkdayStart      string        `mapstructure:"WORKDAY_START"` // HH:MM
	WorkdayEnd        string        `mapstructure:"WORKDAY_END"`
	SlotGranularity   time.Duration `mapstructure:"SLOT_GRANULARITY"`
	DefaultDuration   time.Duration `mapstructure:"DEFAULT_DURATION"`
	MaxCandidates     int           `mapstructure:"MAX_CANDIDATES"`
	MatchTolerance    time.Duration `mapstructure:"MATCH_TOLERANCE"`
	WidenDays         int           `mapstructure:"WIDEN_DAYS"`
	IncludeWeekends   bool          `mapstructure:"INCLUDE_WEEKENDS"`
	DefaultEventTitle string        `mapstructure:"DEFAULT_EVENT_TITLE"`
}

var AppConfig Config

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("SESSION_STORE", "memory")
	viper.SetDefault("SESSION_IDLE_TTL", 30*time.Minute)

	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("INTENT_EXTRACTOR", "gemini")
	viper.SetDefault("EXTRACT_TIMEOUT", 15*time.Second)
	viper.SetDefault("HISTORY_TURNS", 10)

	viper.SetDefault("CALENDAR_BACKEND", "google")
	viper.SetDefault("CALENDAR_ID", "primary")
	viper.SetDefault("GOOGLE_CREDENTIALS_PATH", "credentials.json")
	viper.SetDefault("CALENDAR_QPS", 5.0)
	viper.SetDefault("CALENDAR_TIMEOUT", 10*time.Second)
	viper.SetDefault("CALENDAR_MAX_RETRIES", 3)
	viper.SetDefault("CALENDAR_RETRY_BACKOFF", 500*time.Millisecond)
	viper.SetDefault("VERIFY_AFTER_WRITE", true)

	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("WORKDAY_START", "09:00")
	viper.SetDefault("WORKDAY_END", "17:00")
	viper.SetDefault("SLOT_GRANULARITY", 30*time.Minute)
	viper.SetDefault("DEFAULT_DURATION", 30*time.Minute)
	viper.SetDefault("MAX_CANDIDATES", 5)
	viper.SetDefault("MATCH_TOLERANCE", 15*time.Minute)
	viper.SetDefault("WIDEN_DAYS", 7)
	viper.SetDefault("INCLUDE_WEEKENDS", false)
	viper.SetDefault("DEFAULT_EVENT_TITLE", "Meeting")
}

func LoadConfig() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// Validate reports every setting the selected backends cannot run without.
func (c Config) Validate() error {
	var errs []error
	switch c.IntentExtractor {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when INTENT_EXTRACTOR=gemini"))
		}
	case "rules":
	default:
		errs = append(errs, fmt.Errorf("INTENT_EXTRACTOR must be gemini or rules, got %q", c.IntentExtractor))
	}
	switch c.CalendarBackend {
	case "google":
		if c.GoogleCredentialsPath == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_PATH is required when CALENDAR_BACKEND=google"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("CALENDAR_BACKEND must be google or memory, got %q", c.CalendarBackend))
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore))
	}
	if strings.TrimSpace(c.CalendarID) == "" {
		errs = append(errs, errors.New("CALENDAR_ID is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	start, err1 := ClockOffset(c.WorkdayStart)
	end, err2 := ClockOffset(c.WorkdayEnd)
	switch {
	case err1 != nil:
		errs = append(errs, fmt.Errorf("WORKDAY_START: %w", err1))
	case err2 != nil:
		errs = append(errs, fmt.Errorf("WORKDAY_END: %w", err2))
	case end <= start:
		errs = append(errs, errors.New("WORKDAY_END must be after WORKDAY_START"))
	}
	if c.SlotGranularity <= 0 {
		errs = append(errs, errors.New("SLOT_GRANULARITY must be positive"))
	}
	if c.DefaultDuration <= 0 {
		errs = append(errs, errors.New("DEFAULT_DURATION must be positive"))
	}
	if c.MaxCandidates <= 0 {
		errs = append(errs, errors.New("MAX_CANDIDATES must be positive"))
	}
	return errors.Join(errs...)
}

// ClockOffset parses an HH:MM wall clock into an offset from midnight.
func ClockOffset(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
