package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Scaler modes
const (
	ScalerModeBatch     = "batch"     // refit min-max over every prediction batch
	ScalerModePersisted = "persisted" // reuse the scaler stored with the model
)

// Leading-one checks
const (
	LeadingOneMinimum = "minimum"
	LeadingOneFirst   = "first"
)

// maxDrawSize keeps one value of [2,49] free for the leading-one replacement
const maxDrawSize = 48

// Config holds all application configuration
type Config struct {
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         string `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME" envDefault:"lottery"`
	DBSSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	DBIncludeBonus bool   `env:"DB_INCLUDE_BONUS" envDefault:"true"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	ModelPath     string `env:"MODEL_PATH" envDefault:"data/lottery_model.msgpack"`
	LossChartPath string `env:"LOSS_CHART_PATH" envDefault:"data/loss.html"`

	TrainLimit      int     `env:"TRAIN_LIMIT" envDefault:"1000"`
	PredictLimit    int     `env:"PREDICT_LIMIT" envDefault:"100"`
	TrainDrawSize   int     `env:"TRAIN_DRAW_SIZE" envDefault:"6"`
	PredictDrawSize int     `env:"PREDICT_DRAW_SIZE" envDefault:"7"`
	Epochs          int     `env:"EPOCHS" envDefault:"200"`
	BatchSize       int     `env:"BATCH_SIZE" envDefault:"32"`
	Patience        int     `env:"PATIENCE" envDefault:"15"`
	LearningRate    float64 `env:"LEARNING_RATE" envDefault:"0.001"`
	TestSplit       float64 `env:"TEST_SPLIT" envDefault:"0.2"`
	ValidationSplit float64 `env:"VALIDATION_SPLIT" envDefault:"0.2"`
	Seed            int64   `env:"SEED" envDefault:"42"`

	ScalerMode        string `env:"SCALER_MODE" envDefault:"batch"`
	LeadingOneCheck   string `env:"LEADING_ONE_CHECK" envDefault:"minimum"`
	DenormalizeOutput bool   `env:"DENORMALIZE_OUTPUT" envDefault:"true"`

	ScraperBaseURL      string        `env:"SCRAPER_BASE_URL" envDefault:"https://www.lottery.co.uk"`
	ScraperArchivePath  string        `env:"SCRAPER_ARCHIVE_PATH" envDefault:"/lotto/results/archive-2024"`
	ScraperLatestPath   string        `env:"SCRAPER_LATEST_PATH" envDefault:"/lotto/results"`
	ScrapeSchedule      string        `env:"SCRAPE_SCHEDULE" envDefault:"15 20 * * 3,6"`
	ScrapeTimezone      string        `env:"SCRAPE_TIMEZONE" envDefault:"Europe/London"`
	ScrapeRetryInterval time.Duration `env:"SCRAPE_RETRY_INTERVAL" envDefault:"5m"`
	ScrapeMaxRetries    int           `env:"SCRAPE_MAX_RETRIES" envDefault:"12"`
	RequestTimeout      int           `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds

	ServerPort int    `env:"PORT" envDefault:"8000"`
	JWTSecret  string `env:"JWT_SECRET"`

	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatIDs  []int64 `env:"TELEGRAM_CHAT_IDS"`
}

// Load initializes configuration from environment variables and validates it.
// A set variable that does not parse fails the load rather than falling back
// to its default.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config
	env := &envReader{}

	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "lottery")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.DBIncludeBonus = env.Bool("DB_INCLUDE_BONUS", true)

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.ModelPath = getEnvWithDefault("MODEL_PATH", "data/lottery_model.msgpack")
	cfg.LossChartPath = getEnvWithDefault("LOSS_CHART_PATH", "data/loss.html")

	cfg.TrainLimit = env.Int("TRAIN_LIMIT", 1000)
	cfg.PredictLimit = env.Int("PREDICT_LIMIT", 100)
	cfg.TrainDrawSize = env.Int("TRAIN_DRAW_SIZE", 6)
	cfg.PredictDrawSize = env.Int("PREDICT_DRAW_SIZE", 7)
	cfg.Epochs = env.Int("EPOCHS", 200)
	cfg.BatchSize = env.Int("BATCH_SIZE", 32)
	cfg.Patience = env.Int("PATIENCE", 15)
	cfg.LearningRate = env.Float("LEARNING_RATE", 0.001)
	cfg.TestSplit = env.Float("TEST_SPLIT", 0.2)
	cfg.ValidationSplit = env.Float("VALIDATION_SPLIT", 0.2)
	cfg.Seed = int64(env.Int("SEED", 42))

	cfg.ScalerMode = strings.ToLower(getEnvWithDefault("SCALER_MODE", ScalerModeBatch))
	cfg.LeadingOneCheck = strings.ToLower(getEnvWithDefault("LEADING_ONE_CHECK", LeadingOneMinimum))
	cfg.DenormalizeOutput = env.Bool("DENORMALIZE_OUTPUT", true)

	cfg.ScraperBaseURL = strings.TrimRight(getEnvWithDefault("SCRAPER_BASE_URL", "https://www.lottery.co.uk"), "/")
	cfg.ScraperArchivePath = getEnvWithDefault("SCRAPER_ARCHIVE_PATH", "/lotto/results/archive-2024")
	cfg.ScraperLatestPath = getEnvWithDefault("SCRAPER_LATEST_PATH", "/lotto/results")
	cfg.ScrapeSchedule = getEnvWithDefault("SCRAPE_SCHEDULE", "15 20 * * 3,6")
	cfg.ScrapeTimezone = getEnvWithDefault("SCRAPE_TIMEZONE", "Europe/London")
	cfg.ScrapeRetryInterval = env.Duration("SCRAPE_RETRY_INTERVAL", 5*time.Minute)
	cfg.ScrapeMaxRetries = env.Int("SCRAPE_MAX_RETRIES", 12)
	cfg.RequestTimeout = env.Int("REQUEST_TIMEOUT", 30)

	cfg.ServerPort = env.Int("PORT", 8000)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	chatIDs, err := parseChatIDs(os.Getenv("TELEGRAM_CHAT_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.TelegramChatIDs = chatIDs

	if err := env.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.TrainDrawSize < 1 || c.TrainDrawSize > maxDrawSize {
		return fmt.Errorf("TRAIN_DRAW_SIZE must be between 1 and %d, got %d", maxDrawSize, c.TrainDrawSize)
	}
	if c.PredictDrawSize < 1 || c.PredictDrawSize > maxDrawSize {
		return fmt.Errorf("PREDICT_DRAW_SIZE must be between 1 and %d, got %d", maxDrawSize, c.PredictDrawSize)
	}
	if c.TrainLimit < 2 {
		return fmt.Errorf("TRAIN_LIMIT must be at least 2, got %d", c.TrainLimit)
	}
	if c.PredictLimit < 2 {
		return fmt.Errorf("PREDICT_LIMIT must be at least 2, got %d", c.PredictLimit)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("EPOCHS must be positive, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.Patience < 0 {
		return fmt.Errorf("PATIENCE must not be negative, got %d", c.Patience)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("LEARNING_RATE must be positive, got %g", c.LearningRate)
	}
	if c.TestSplit <= 0 || c.TestSplit >= 1 {
		return fmt.Errorf("TEST_SPLIT must be in (0,1), got %g", c.TestSplit)
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("VALIDATION_SPLIT must be in (0,1), got %g", c.ValidationSplit)
	}
	switch c.ScalerMode {
	case ScalerModeBatch, ScalerModePersisted:
	default:
		return fmt.Errorf("unknown SCALER_MODE %q", c.ScalerMode)
	}
	switch c.LeadingOneCheck {
	case LeadingOneMinimum, LeadingOneFirst:
	default:
		return fmt.Errorf("unknown LEADING_ONE_CHECK %q", c.LeadingOneCheck)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("PORT must be between 0 and 65535, got %d", c.ServerPort)
	}
	if c.ScrapeMaxRetries < 0 {
		return fmt.Errorf("SCRAPE_MAX_RETRIES must not be negative, got %d", c.ScrapeMaxRetries)
	}
	return nil
}

// Location resolves the scrape timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScrapeTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.ScrapeTimezone, err)
	}
	return loc, nil
}

func parseChatIDs(value string) ([]int64, error) {
	if value == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing TELEGRAM_CHAT_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps every failure
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("parsing %s=%q: %w", key, value, err))
}

// Err joins the parse failures, nil when there were none
func (e *envReader) Err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return intValue
}

func (e *envReader) Float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return floatValue
}

func (e *envReader) Bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return boolValue
}

func (e *envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return d
}
