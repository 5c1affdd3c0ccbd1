package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DetailSource fetches the full record for one listing URL. Stage 2 uses
// it to fill descriptions the search export did not carry.
type DetailSource interface {
	FetchDetail(ctx context.Context, listingURL string) (Item, error)
}

// FetchDetail pulls one item from {base}/api/detail?url=...
func (s *HTTPJSONSource) FetchDetail(ctx context.Context, listingURL string) (Item, error) {
	listingURL = strings.TrimSpace(listingURL)
	if listingURL == "" {
		return Item{}, errors.New("listingURL is required")
	}
	u, err := url.Parse(s.baseURL + "/api/detail")
	if err != nil {
		return Item{}, err
	}
	q := u.Query()
	q.Set("url", listingURL)
	u.RawQuery = q.Encode()

	body, err := s.doGET(ctx, u.String())
	if err != nil {
		return Item{}, err
	}

	var wrapped struct {
		Item *Item `json:"item"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Item != nil {
		return *wrapped.Item, nil
	}
	var it Item
	if err := json.Unmarshal(body, &it); err != nil {
		return Item{}, fmt.Errorf("detail payload parse: %w", err)
	}
	return it, nil
}

// FetchDetail returns a synthetic detail record for the mock source.
func (m *MockSource) FetchDetail(ctx context.Context, listingURL string) (Item, error) {
	select {
	case <-ctx.Done():
		return Item{}, ctx.Err()
	default:
	}
	return Item{
		URL:  listingURL,
		Text: "Synthetic detail description, 4 bedroom villa in Ubud, 25 juta per month.",
	}, nil
}
