package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/PollyDrive/estate-sub000/internal/config"
)

const summaryPromptTemplate = `You are a data extractor. Your task is to read the description and briefly fill in the fields in RUSSIAN.

RULES:
- Be brief. Use short phrases.
- If information is missing, write "не указано".
- DO NOT include phone numbers or any contact info.

TEMPLATE TO FILL:
- **Комнаты:**
- **Удобства:**
- **Включено:**
- **Район:**
- **Цена:**
- **Детали:**

Description:
%s

RUSSIAN SUMMARY:`

// Summarizer generates the Russian delivery summary with Claude. Like the
// classifier, each instance owns its limiter.
type Summarizer struct {
	client    anthropic.Client
	limiter   *rate.Limiter
	model     string
	maxTokens int
}

// SummaryInput is the listing context fed into the summary prompt.
type SummaryInput struct {
	Title       string
	PriceRaw    string
	Location    string
	Description string
}

func NewSummarizer(apiKey string, cfg config.SummaryConfig) *Summarizer {
	limit := rate.Inf
	if cfg.RequestDelayMS > 0 {
		limit = rate.Every(time.Duration(cfg.RequestDelayMS) * time.Millisecond)
	}
	return &Summarizer{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		limiter:   rate.NewLimiter(limit, 1),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// SummarizeRU produces the Russian summary for one listing. The description
// is capped so a copy-pasted novel does not blow the token budget.
func (s *Summarizer) SummarizeRU(ctx context.Context, in SummaryInput) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	desc := in.Description
	if len(desc) > 500 {
		desc = desc[:500]
	}
	full := fmt.Sprintf("Заголовок: %s\nЦена: %s\nЛокация: %s\nОписание: %s",
		orNA(in.Title), orNA(in.PriceRaw), orNA(in.Location), desc)

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   int64(s.maxTokens),
		Temperature: anthropic.Float(0.3),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(summaryPromptTemplate, full))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("summary: empty response")
	}
	return text, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
