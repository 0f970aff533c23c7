package quote

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

// ErrMissingPrice is returned when the provider answers without a last price.
var ErrMissingPrice = errors.New("quote has no regularMarketPrice")

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetQuote fetches the latest quote for a single symbol.
func (c *RESTClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	endpoint := c.baseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(symbol)

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider error: status=%d body=%s", resp.StatusCode, body)
	}

	var env QuoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if e := env.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("provider error: %s: %s", e.Code, e.Description)
	}

	for _, raw := range env.QuoteResponse.Result {
		if strings.EqualFold(raw.Symbol, symbol) {
			return raw.normalize()
		}
	}
	return nil, fmt.Errorf("no quote for %s in response", symbol)
}

func (r RawQuote) normalize() (*Quote, error) {
	if r.RegularMarketPrice == nil {
		return nil, fmt.Errorf("%s: %w", r.Symbol, ErrMissingPrice)
	}

	q := &Quote{
		Symbol:      strings.ToUpper(r.Symbol),
		DisplayName: r.ShortName,
		LastPrice:   *r.RegularMarketPrice,
		MarketCap:   r.MarketCap,
	}
	if q.DisplayName == "" {
		q.DisplayName = r.LongName
	}
	if q.DisplayName == "" {
		q.DisplayName = q.Symbol
	}
	if r.RegularMarketPreviousClose != nil {
		q.PreviousClose = *r.RegularMarketPreviousClose
	}
	if r.RegularMarketChangePercent != nil {
		q.ChangePercent = *r.RegularMarketChangePercent
	}
	if r.RegularMarketVolume != nil {
		q.Volume = *r.RegularMarketVolume
	}
	return q, nil
}
