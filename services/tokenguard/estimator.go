package tokenguard

import (
	"github.com/arbitragevault/backend/services"
)

// EndpointCosts declares the token price of each pricing API endpoint.
// Values mirror the provider's published cost table.
type EndpointCosts struct {
	TokensPerProduct     int // per ASIN in a product request
	TokensPerOffersPage  int // surcharge per ASIN when live offers are requested
	TokensPerBestsellers int // flat cost of a bestsellers query
}

// DefaultEndpointCosts returns the provider's standard cost table
func DefaultEndpointCosts() EndpointCosts {
	return EndpointCosts{
		TokensPerProduct:     1,
		TokensPerOffersPage:  6,
		TokensPerBestsellers: 50,
	}
}

// CallPlan describes the API calls a prospective job intends to make
type CallPlan struct {
	ASINs           int
	WithOffers      bool
	BestsellerCalls int
}

// Estimate is the predicted token cost of a CallPlan
type Estimate struct {
	Tokens    int            `json:"tokens"`
	Breakdown map[string]int `json:"breakdown"`
}

// Estimator predicts the token cost of a job before any network call is
// made and rejects jobs that exceed the configured per-job ceiling.
// The estimator performs no I/O.
type Estimator struct {
	costs        EndpointCosts
	maxJobTokens int
}

// NewEstimator creates an Estimator with the given cost table and per-job ceiling.
// A ceiling of zero disables the per-job check.
func NewEstimator(costs EndpointCosts, maxJobTokens int) *Estimator {
	return &Estimator{
		costs:        costs,
		maxJobTokens: maxJobTokens,
	}
}

// Estimate computes the predicted token cost of a plan
func (e *Estimator) Estimate(plan CallPlan) Estimate {
	breakdown := make(map[string]int)

	if plan.ASINs > 0 {
		breakdown["products"] = plan.ASINs * e.costs.TokensPerProduct
		if plan.WithOffers {
			breakdown["offers"] = plan.ASINs * e.costs.TokensPerOffersPage
		}
	}
	if plan.BestsellerCalls > 0 {
		breakdown["bestsellers"] = plan.BestsellerCalls * e.costs.TokensPerBestsellers
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}
	return Estimate{Tokens: total, Breakdown: breakdown}
}

// Check verifies an estimate against the per-job ceiling and the available
// balance. The returned error carries machine-readable remaining/required/
// deficit details for the HTTP layer.
func (e *Estimator) Check(est Estimate, remaining int) error {
	if e.maxJobTokens > 0 && est.Tokens > e.maxJobTokens {
		return services.NewDomainError(services.ErrorTypeTokenBudget, "job exceeds maximum token cost", nil).
			WithDetail("tokens_required", est.Tokens).
			WithDetail("max_job_tokens", e.maxJobTokens)
	}
	if est.Tokens > remaining {
		return services.NewDomainError(services.ErrorTypeTokenBudget, "insufficient token budget", nil).
			WithDetail("tokens_remaining", remaining).
			WithDetail("tokens_required", est.Tokens).
			WithDetail("tokens_deficit", est.Tokens-remaining)
	}
	return nil
}

// ProductCallCost returns the per-call token cost for a product request
// covering asinCount ASINs.
func (e *Estimator) ProductCallCost(asinCount int, withOffers bool) int {
	cost := asinCount * e.costs.TokensPerProduct
	if withOffers {
		cost += asinCount * e.costs.TokensPerOffersPage
	}
	return cost
}

// BestsellersCallCost returns the flat token cost of one bestsellers query
func (e *Estimator) BestsellersCallCost() int {
	return e.costs.TokensPerBestsellers
}
