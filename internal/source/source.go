// Package source contains pluggable scrape-export connectors. A connector
// returns raw exported items; Normalize turns them into listing rows.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Item is one raw record from a scrape export. Marketplace exports carry
// url/title/price/location; group exports carry a post link plus post text.
// Failed scrapes carry an error string and nothing useful.
type Item struct {
	URL       string `json:"url,omitempty"`
	Link      string `json:"link,omitempty"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	Price     string `json:"price,omitempty"`
	Location  string `json:"location,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ItemSource abstracts where raw items come from.
type ItemSource interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// HTTPJSONSource pulls items from a JSON endpoint under baseURL.
//
// Expected endpoint:
//
//	GET {base}/api/items?limit=...
//	  -> either {"items":[...]} or [...]
type HTTPJSONSource struct {
	baseURL   string
	client    *http.Client
	userAgent string
	maxItems  int
}

type HTTPJSONSourceOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	MaxItems  int
}

func NewHTTPJSONSource(opts HTTPJSONSourceOptions) (*HTTPJSONSource, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	to := opts.Timeout
	if to <= 0 {
		to = 20 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "estate-sub-ingest/1.0"
	}
	return &HTTPJSONSource{
		baseURL:   strings.TrimRight(base, "/"),
		client:    &http.Client{Timeout: to},
		userAgent: ua,
		maxItems:  opts.MaxItems,
	}, nil
}

func (s *HTTPJSONSource) Fetch(ctx context.Context) ([]Item, error) {
	u, err := url.Parse(s.baseURL + "/api/items")
	if err != nil {
		return nil, err
	}
	if s.maxItems > 0 {
		q := u.Query()
		q.Set("limit", fmt.Sprint(s.maxItems))
		u.RawQuery = q.Encode()
	}

	body, err := s.doGET(ctx, u.String())
	if err != nil {
		return nil, err
	}

	// Accept both object-wrapped and bare-array payloads.
	var wrapped struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Items) > 0 {
		return wrapped.Items, nil
	}
	var arr []Item
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, fmt.Errorf("items payload parse: %w", err)
	}
	return arr, nil
}

func (s *HTTPJSONSource) doGET(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return b, nil
}

// MockSource yields a fixed set of synthetic items for demos and tests.
// It makes no network calls.
type MockSource struct {
	items []Item
}

func NewMockSource(items []Item) *MockSource {
	if len(items) == 0 {
		items = defaultMockItems()
	}
	return &MockSource{items: items}
}

func (m *MockSource) Fetch(ctx context.Context) ([]Item, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out, nil
}

func defaultMockItems() []Item {
	return []Item{
		{
			URL:      "https://www.facebook.com/marketplace/item/100000000000001/",
			Title:    "4 bedroom villa in Ubud",
			Price:    "Rp25.000.000",
			Location: "Ubud, Bali",
		},
		{
			Link:  "https://www.facebook.com/groups/123/permalink/200000000000002/",
			Title: "Villa for rent",
			Text:  "Spacious 5 bedroom villa in Mengwi, 30 juta per month.",
		},
	}
}
