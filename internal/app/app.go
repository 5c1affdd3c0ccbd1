// Package app wires the shared process bootstrap: config, secrets,
// logging and the collaborator construction every stage binary repeats.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/llm"
	"github.com/PollyDrive/estate-sub000/internal/logging"
	"github.com/PollyDrive/estate-sub000/internal/parser"
	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/stage"
	"github.com/PollyDrive/estate-sub000/internal/store"
	"github.com/PollyDrive/estate-sub000/internal/telegram"
)

// App carries the process-wide collaborators.
type App struct {
	Cfg     *config.Config
	Secrets config.Secrets
	Store   *store.Store
}

// EnvString reads an env var with a default, trimming whitespace.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// Bootstrap loads configuration and opens the database. The caller must
// Close the returned App.
func Bootstrap(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Console)

	secrets := config.LoadSecrets()
	if secrets.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	st, err := store.New(ctx, secrets.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &App{Cfg: cfg, Secrets: secrets, Store: st}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// Extractor builds the shared field extractor with configured stop words.
func (a *App) Extractor() *parser.Extractor {
	return parser.NewExtractor(a.Cfg.Filters.StopWords)
}

// Criteria derives the global early-stage filter.
func (a *App) Criteria() criteria.Criteria {
	return stage.DeriveCriteria(a.Cfg.Criteria, a.Cfg.Profiles)
}

// ItemSource builds the configured scrape connector.
func (a *App) ItemSource() (source.ItemSource, error) {
	switch a.Cfg.Source.Adapter {
	case "mock":
		return source.NewMockSource(nil), nil
	default:
		return source.NewHTTPJSONSource(source.HTTPJSONSourceOptions{
			BaseURL:  a.Cfg.Source.BaseURL,
			Timeout:  time.Duration(a.Cfg.Source.Timeout) * time.Second,
			MaxItems: a.Cfg.Source.MaxItems,
		})
	}
}

// DetailSource returns the connector's detail surface when it has one.
func (a *App) DetailSource() source.DetailSource {
	src, err := a.ItemSource()
	if err != nil {
		return nil
	}
	if d, ok := src.(source.DetailSource); ok {
		return d
	}
	return nil
}

// Classifier builds the stage 3 checker against the OpenAI-compatible API.
func (a *App) Classifier() (*llm.Classifier, error) {
	if a.Secrets.LLMAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	client := llm.NewOpenAIClient(a.Secrets.LLMAPIKey, a.Cfg.LLM.BaseURL)
	return llm.NewClassifier(client, a.Cfg.LLM, a.MaxProfilePrice()), nil
}

// Summarizer builds the Anthropic summary generator, or nil when no key is
// configured so stage 4 can still evaluate without summaries.
func (a *App) Summarizer() stage.SummaryGenerator {
	if a.Secrets.AnthropicAPIKey == "" {
		return nil
	}
	return llm.NewSummarizer(a.Secrets.AnthropicAPIKey, a.Cfg.LLM.Summary)
}

// Telegram builds the Bot API client.
func (a *App) Telegram() (*telegram.Client, error) {
	if a.Secrets.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return telegram.NewClient(a.Secrets.TelegramToken)
}

// MaxProfilePrice is the widest price bound across profiles, feeding the
// relevance prompt and the price override.
func (a *App) MaxProfilePrice() float64 {
	max := a.Cfg.Criteria.PriceMax
	for _, p := range a.Cfg.Profiles {
		if p.PriceMax > max {
			max = p.PriceMax
		}
	}
	return max
}

// Profile finds one profile by chat id, or all profiles when chatID is
// empty.
func (a *App) SelectProfiles(chatID string) ([]criteria.Profile, error) {
	if chatID == "" {
		if len(a.Cfg.Profiles) == 0 {
			return nil, fmt.Errorf("no profiles configured")
		}
		return a.Cfg.Profiles, nil
	}
	for _, p := range a.Cfg.Profiles {
		if p.ChatID == chatID {
			return []criteria.Profile{p}, nil
		}
	}
	return nil, fmt.Errorf("no profile with chat id %s", chatID)
}

// ReportError mirrors failures to the admin chat when one is configured.
// Delivery problems are swallowed; the original error matters more.
func (a *App) ReportError(ctx context.Context, stageName string, runErr error) {
	if a.Cfg.Telegram.AdminChatID == "" || a.Secrets.TelegramToken == "" {
		return
	}
	tg, err := a.Telegram()
	if err != nil {
		return
	}
	adminID, err := parseChatID(a.Cfg.Telegram.AdminChatID)
	if err != nil {
		return
	}
	_ = tg.SendError(ctx, adminID, stageName, runErr.Error())
}

func parseChatID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}
