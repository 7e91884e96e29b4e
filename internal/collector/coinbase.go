package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"KievAlerts/internal/model"
)

// CoinbaseFetcher implements PriceFetcher using the Coinbase spot price API.
type CoinbaseFetcher struct {
	BaseURL string
	Pair    string // e.g. "BTC-USD"
	Client  *http.Client
}

// NewCoinbaseFetcher creates a fetcher with optional proxy support.
func NewCoinbaseFetcher(baseURL, pair, proxyURL string) *CoinbaseFetcher {
	return &CoinbaseFetcher{
		BaseURL: baseURL,
		Pair:    pair,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *CoinbaseFetcher) Name() string { return "coinbase" }

func (f *CoinbaseFetcher) FetchPrice(ctx context.Context) (*model.Price, error) {
	endpoint := fmt.Sprintf("%s/v2/prices/%s/spot", f.BaseURL, f.Pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch price: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			Amount   string `json:"amount"`
			Base     string `json:"base"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	amount, err := strconv.ParseFloat(result.Data.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price amount %q: %w", result.Data.Amount, err)
	}
	return &model.Price{
		Base:      result.Data.Base,
		Currency:  result.Data.Currency,
		Amount:    amount,
		Source:    f.Name(),
		FetchedAt: time.Now(),
	}, nil
}
