package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const hyperBaseURL = "https://api.hyperliquid.xyz"

// HyperProvider fetches mid prices from the Hyperliquid public info API.
type HyperProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewHyperProvider creates a provider with built-in rate limiting. The info
// endpoint is generous, but polling shares the budget with everything else
// on this IP, so keep a lid on it.
func NewHyperProvider(baseURL string, tracer trace.Tracer) *HyperProvider {
	if baseURL == "" {
		baseURL = hyperBaseURL
	}
	return &HyperProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(30, time.Second),
	}
}

// FetchMids fetches current mids for every supported asset in a single call.
// Unsupported assets and unparseable prices are skipped.
func (p *HyperProvider) FetchMids(ctx context.Context) (map[string]*domain.MarkSnapshot, error) {
	_, span := p.tracer.Start(ctx, "hyper.fetch-mids")
	defer span.End()

	body, err := p.doRequest(ctx, `{"type":"allMids"}`)
	if err != nil {
		return nil, fmt.Errorf("fetch mids: %w", err)
	}

	// Response shape: {"BTC": "97123.5", "ETH": "3501.25", ...}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse mids: %w", err)
	}

	now := time.Now().Unix()
	result := make(map[string]*domain.MarkSnapshot, len(domain.SupportedAssets))
	for asset, str := range raw {
		if !domain.IsSupportedAsset(asset) {
			continue
		}
		mid, err := strconv.ParseFloat(str, 64)
		if err != nil || mid <= 0 {
			continue
		}
		result[asset] = &domain.MarkSnapshot{
			Asset:       asset,
			Mid:         mid,
			UpdatedUnix: now,
		}
	}
	return result, nil
}

func (p *HyperProvider) doRequest(ctx context.Context, payload string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/info", strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hyperliquid API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
