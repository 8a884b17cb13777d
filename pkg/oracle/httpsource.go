package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPSourceOptions parameterise an HTTP-backed price feed.
type HTTPSourceOptions struct {
	URL       string
	Heartbeat time.Duration
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource fetches a (price, updatedAt) pair from a JSON endpoint of the
// form {"price":"2450.12","updated_at":"2026-08-26T10:00:00Z"}. It performs
// no caching; staleness enforcement stays with the Router.
type HTTPSource struct {
	opts   HTTPSourceOptions
	client *http.Client
}

// NewHTTPSource constructs an HTTP price source.
func NewHTTPSource(opts HTTPSourceOptions) (*HTTPSource, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("price source url required")
	}
	if opts.Heartbeat <= 0 {
		return nil, fmt.Errorf("price source heartbeat must be positive")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type priceResponse struct {
	Price     string    `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *HTTPSource) Latest(ctx context.Context) (decimal.Decimal, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	req.Header.Set("Accept", "application/json")
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("price endpoint returned %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("decode price response: %w", err)
	}
	price, err := decimal.NewFromString(parsed.Price)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("parse price %q: %w", parsed.Price, err)
	}
	return price, parsed.UpdatedAt, nil
}

func (s *HTTPSource) Heartbeat() time.Duration { return s.opts.Heartbeat }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
