// Package config loads the pipeline configuration: a TOML file for
// filter rules, profiles and scheduling, plus environment variables for
// secrets. A .env file is honored when present.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/PollyDrive/estate-sub000/internal/criteria"
)

type Config struct {
	Log      LogConfig        `toml:"log"`
	Source   SourceConfig     `toml:"source"`
	Criteria CriteriaConfig   `toml:"criteria"`
	Filters  FiltersConfig    `toml:"filters"`
	LLM      LLMConfig        `toml:"llm"`
	Telegram TelegramConfig   `toml:"telegram"`
	Profiles []criteria.Profile `toml:"profiles" validate:"dive"`
	Pipeline PipelineConfig   `toml:"pipeline"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

type SourceConfig struct {
	Adapter  string `toml:"adapter" validate:"oneof=http-json mock"`
	BaseURL  string `toml:"base_url"`
	Timeout  int    `toml:"timeout_seconds" validate:"min=1"`
	MaxItems int    `toml:"max_items" validate:"min=1"`
}

// CriteriaConfig is the global early-stage filter. Derived from the widest
// profile when zeroed, same as taking min(bedrooms_min) / max(price_max)
// across profiles.
type CriteriaConfig struct {
	BedroomsMin int     `toml:"bedrooms_min"`
	PriceMax    float64 `toml:"price_max"`
}

type FiltersConfig struct {
	StopWords         []string         `toml:"stop_words"`
	StopWordsDetailed []string         `toml:"stop_words_detailed"`
	StopLocations     []string         `toml:"stop_locations"`
	RequiredWords     []string         `toml:"required_words"`
	ShortPrice        ShortPriceConfig `toml:"short_price"`
	Stage5Guard       GuardConfig      `toml:"stage5_guard"`
}

// ShortPriceConfig controls the suspicious-short-price heuristic: a raw
// price like "IDR150" with no separators usually means 150 million.
type ShortPriceConfig struct {
	Enabled   bool `toml:"enabled"`
	Threshold int  `toml:"threshold" validate:"min=0"`
}

type GuardConfig struct {
	Enabled          bool        `toml:"enabled"`
	RegexRules       []GuardRule `toml:"regex_rules"`
	BlockedLocations []string    `toml:"blocked_locations"`
	DuplicateCheck   bool        `toml:"duplicate_check"`
	DuplicateReason  string      `toml:"duplicate_reason"`
}

type GuardRule struct {
	Regex  string   `toml:"regex"`
	Reason string   `toml:"reason"`
	Fields []string `toml:"fields"`
}

type LLMConfig struct {
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model" validate:"required"`
	GeoModel       string  `toml:"geo_model"`
	Temperature    float32 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens" validate:"min=1"`
	RequestDelayMS int     `toml:"request_delay_ms" validate:"min=0"`
	BedroomsFloor  int     `toml:"bedrooms_floor" validate:"min=0"`
	Summary        SummaryConfig `toml:"summary"`
}

type SummaryConfig struct {
	Model          string `toml:"model" validate:"required"`
	MaxTokens      int    `toml:"max_tokens" validate:"min=1"`
	RequestDelayMS int    `toml:"request_delay_ms" validate:"min=0"`
}

type TelegramConfig struct {
	BatchSize    int    `toml:"batch_size" validate:"min=1"`
	MessageDelay int    `toml:"message_delay_seconds" validate:"min=0"`
	AdminChatID  string `toml:"admin_chat_id"`
	QuietStart   int    `toml:"quiet_start_hour" validate:"min=0,max=23"`
	QuietEnd     int    `toml:"quiet_end_hour" validate:"min=0,max=24"`
}

// PipelineConfig holds cron expressions for the scheduler daemon.
type PipelineConfig struct {
	Stage1Spec  string `toml:"stage1_spec"`
	Stage2Spec  string `toml:"stage2_spec"`
	Stage3Spec  string `toml:"stage3_spec"`
	Stage4Spec  string `toml:"stage4_spec"`
	Stage5Spec  string `toml:"stage5_spec"`
	CleanupSpec string `toml:"cleanup_spec"`
}

// Secrets come from the environment only, never from the TOML file.
type Secrets struct {
	DatabaseURL     string
	TelegramToken   string
	LLMAPIKey       string
	AnthropicAPIKey string
}

// Load reads and validates the TOML config at path, applying defaults for
// unset sections.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadSecrets pulls secrets from the environment, reading .env first when
// one exists in the working directory.
func LoadSecrets() Secrets {
	_ = godotenv.Load()
	return Secrets{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		LLMAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
	}
}

func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Console: true},
		Source: SourceConfig{
			Adapter:  "http-json",
			Timeout:  30,
			MaxItems: 100,
		},
		Filters: FiltersConfig{
			ShortPrice: ShortPriceConfig{Enabled: true, Threshold: 50},
			Stage5Guard: GuardConfig{
				Enabled:         true,
				DuplicateCheck:  true,
				DuplicateReason: "REJECT_STAGE5: duplicate phone/location/bedrooms",
			},
		},
		LLM: LLMConfig{
			Model:          "meta-llama/llama-3.3-70b-instruct",
			Temperature:    0.1,
			MaxTokens:      200,
			RequestDelayMS: 2500,
			BedroomsFloor:  4,
			Summary: SummaryConfig{
				Model:          "claude-3-5-haiku-latest",
				MaxTokens:      300,
				RequestDelayMS: 2500,
			},
		},
		Telegram: TelegramConfig{
			BatchSize:    10,
			MessageDelay: 2,
			QuietStart:   0,
			QuietEnd:     7,
		},
		Pipeline: PipelineConfig{
			Stage1Spec:  "0 */2 * * *",
			Stage2Spec:  "10 */2 * * *",
			Stage3Spec:  "20 */2 * * *",
			Stage4Spec:  "35 */2 * * *",
			Stage5Spec:  "50 */2 * * *",
			CleanupSpec: "0 3 * * *",
		},
	}
}
