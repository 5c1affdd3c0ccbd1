// Package telegram is a thin Bot API client covering the calls the pipeline
// needs: sendMessage for delivery and getUpdates for reaction feedback.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client talks to the Bot API with one token.
type Client struct {
	token   string
	apiBase string
	client  *http.Client
}

type Option func(*Client)

// WithAPIBase overrides the Bot API host, used by tests.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram: token is required")
	}
	c := &Client{
		token:   token,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 35 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	u := c.apiBase + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("telegram %s: parse: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: api error %d: %s", method, api.ErrorCode, api.Description)
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("telegram %s: result parse: %w", method, err)
		}
	}
	return nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// SendMessage delivers Markdown text to a chat and returns the new
// message id, used later to correlate reactions.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	req := sendMessageRequest{
		ChatID:                strconv.FormatInt(chatID, 10),
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: false,
	}
	if err := c.call(ctx, "sendMessage", req, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// SendError posts a formatted pipeline failure to the admin chat.
func (c *Client) SendError(ctx context.Context, chatID int64, stage, errMsg string) error {
	text := fmt.Sprintf("❌ *Pipeline Error*\n\n*Stage:* %s\n*Error:* %s\n*Time:* %s",
		stage, errMsg, time.Now().Format("2006-01-02 15:04:05"))
	_, err := c.SendMessage(ctx, chatID, text)
	return err
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for new updates past offset. message_reaction
// updates are only delivered when explicitly allowed, so the bot always
// requests them alongside plain messages.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var updates []Update
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        timeout,
		AllowedUpdates: []string{"message", "message_reaction"},
	}
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
