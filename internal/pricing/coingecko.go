package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultCoinGeckoURL is the simple-price endpoint for SOL in USD.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

// CoinGecko fetches the SOL/USD price from the CoinGecko simple-price API.
type CoinGecko struct {
	client *resty.Client
	url    string
}

type coinGeckoResponse struct {
	Solana *struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"solana"`
}

// NewCoinGecko creates a client for url. An empty url uses DefaultCoinGeckoURL.
func NewCoinGecko(url string, timeout time.Duration) *CoinGecko {
	if url == "" {
		url = DefaultCoinGeckoURL
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &CoinGecko{client: client, url: url}
}

// FetchSOLPrice returns the current SOL price in USD.
func (c *CoinGecko) FetchSOLPrice(ctx context.Context) (decimal.Decimal, error) {
	var body coinGeckoResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("coingecko status %d", resp.StatusCode())
	}
	if body.Solana == nil {
		return decimal.Zero, fmt.Errorf("coingecko response without solana price")
	}
	if !body.Solana.USD.IsPositive() {
		return decimal.Zero, fmt.Errorf("coingecko returned non-positive price %s", body.Solana.USD)
	}
	return body.Solana.USD, nil
}
