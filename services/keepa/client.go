package keepa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arbitragevault/backend/config"
	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/services/tokenguard"
	"go.uber.org/zap"
)

// ProductOptions controls optional data on a product request
type ProductOptions struct {
	WithOffers bool
}

// Client is the HTTP client for the external pricing API. Every call is
// admitted through the token guard, and every response feeds its token
// accounting and circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	domain     int
	guard      *tokenguard.Guard
	logger     *zap.Logger
}

// NewClient creates a new pricing API client
func NewClient(cfg config.KeepaConfig, guard *tokenguard.Guard, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		domain:     cfg.Domain,
		guard:      guard,
		logger:     logger,
	}
}

// GetProducts fetches product snapshots for up to 100 ASINs in one call
func (c *Client) GetProducts(ctx context.Context, asins []string, opts ProductOptions) ([]models.ProductSnapshot, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > 100 {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("at most 100 ASINs per product call, got %d", len(asins)), nil)
	}

	cost := c.guard.Estimator().ProductCallCost(len(asins), opts.WithOffers)
	if err := c.guard.Acquire(ctx, cost); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("asin", strings.Join(asins, ","))
	params.Set("stats", "90")
	if opts.WithOffers {
		params.Set("offers", "20")
	}

	var resp productResponse
	if err := c.get(ctx, "/product", params, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	snapshots := make([]models.ProductSnapshot, 0, len(resp.Products))
	for _, p := range resp.Products {
		snapshots = append(snapshots, models.ProductSnapshot{
			ASIN:             p.ASIN,
			Title:            p.Title,
			Category:         p.Category,
			BuyBoxPriceCents: p.Stats.BuyBoxPrice,
			UsedPriceCents:   p.Stats.UsedPrice,
			FBAFeesCents:     p.Stats.FBAFees,
			ReferralFeePct:   p.Stats.ReferralFeePct,
			SalesRank:        p.Stats.SalesRank,
			SalesRankDrops30: p.Stats.SalesRankDrops30,
			SalesRankDrops90: p.Stats.SalesRankDrops90,
			FetchedAt:        now,
		})
	}

	c.logger.Debug("fetched products",
		zap.Int("requested", len(asins)),
		zap.Int("returned", len(snapshots)),
		zap.Int("tokens_spent", cost),
		zap.Int("tokens_left", resp.TokensLeft))

	return snapshots, nil
}

// BestSellers fetches the bestseller ASIN list for a category
func (c *Client) BestSellers(ctx context.Context, category string) ([]string, error) {
	if category == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "category is required", nil)
	}

	cost := c.guard.Estimator().BestsellersCallCost()
	if err := c.guard.Acquire(ctx, cost); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("category", category)

	var resp bestsellersResponse
	if err := c.get(ctx, "/bestsellers", params, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched bestsellers",
		zap.String("category", category),
		zap.Int("asins", len(resp.ASINList)),
		zap.Int("tokens_left", resp.TokensLeft))

	return resp.ASINList, nil
}

// tokenCarrier lets get() resync the guard from any decoded response body
type tokenCarrier interface {
	tokens() tokenInfo
}

func (t tokenInfo) tokens() tokenInfo { return t }

// get performs one admitted API call and feeds the outcome back into the
// guard. Transport errors and 5xx responses count as breaker failures;
// a 429 resyncs the bucket to the reported balance without tripping the
// breaker, since the dependency itself is healthy.
func (c *Client) get(ctx context.Context, path string, params url.Values, out tokenCarrier) error {
	params.Set("key", c.apiKey)
	params.Set("domain", strconv.Itoa(c.domain))
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return services.WrapInternal("failed to build pricing API request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.guard.RecordFailure(err)
		if ctx.Err() != nil {
			return services.WrapExternal("pricing API timeout", err)
		}
		return services.WrapExternal("pricing API unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.guard.RecordFailure(err)
			return services.WrapExternal("failed to decode pricing API response", err)
		}
		ti := out.tokens()
		c.guard.RecordSuccess(ti.TokensLeft, float64(ti.RefillRate))
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			// an undecodable 429 body reads as a zero balance
			errResp = errorResponse{}
		}
		c.guard.RecordSuccess(errResp.TokensLeft, float64(errResp.RefillRate))
		return services.NewDomainError(services.ErrorTypeTokenBudget, "pricing API token balance exhausted", nil).
			WithDetail("tokens_remaining", 0).
			WithDetail("retry_after_seconds", int(errResp429Wait(errResp)))

	default:
		err := fmt.Errorf("pricing API returned status %d", resp.StatusCode)
		c.guard.RecordFailure(err)
		return services.WrapExternal("pricing API error", err)
	}
}

// errResp429Wait derives a retry hint in seconds from the refill interval
func errResp429Wait(resp errorResponse) int64 {
	if resp.RefillIn > 0 {
		return resp.RefillIn/1000 + 1
	}
	return 60
}
