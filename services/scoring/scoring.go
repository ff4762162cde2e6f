// Package scoring computes ROI, sales velocity and a combined deal grade
// for product snapshots. All money math uses decimals to avoid float
// rounding on prices.
package scoring

import (
	"github.com/arbitragevault/backend/models"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// Velocity weighting: rank contributes up to 60 points, recent
	// rank-drop activity up to 40.
	rankWeight  = decimal.NewFromInt(60)
	dropsWeight = decimal.NewFromInt(40)
)

// Result holds the scored metrics for one product
type Result struct {
	ProfitCents   int64
	ROIPercent    decimal.Decimal
	VelocityScore decimal.Decimal
	Grade         string
}

// ROIPercent computes (sell - buy - fees) / buy as a percentage.
// Returns zero when buy is zero.
func ROIPercent(buyCents, sellCents, feesCents int64) decimal.Decimal {
	if buyCents <= 0 {
		return decimal.Zero
	}
	buy := decimal.NewFromInt(buyCents)
	profit := decimal.NewFromInt(sellCents - buyCents - feesCents)
	return profit.Div(buy).Mul(hundred).Round(2)
}

// VelocityScore estimates sales velocity on a 0..100 scale from the sales
// rank and the 30/90-day rank-drop counts. Lower rank and more drops mean
// faster turnover.
func VelocityScore(salesRank, drops30, drops90 int) decimal.Decimal {
	if salesRank <= 0 {
		return decimal.Zero
	}

	// Rank component: full marks at rank 1, fading to zero at 1M+
	rankScore := decimal.Zero
	switch {
	case salesRank <= 10000:
		rankScore = rankWeight
	case salesRank <= 100000:
		rankScore = rankWeight.Mul(decimal.NewFromFloat(0.7))
	case salesRank <= 500000:
		rankScore = rankWeight.Mul(decimal.NewFromFloat(0.4))
	case salesRank <= 1000000:
		rankScore = rankWeight.Mul(decimal.NewFromFloat(0.15))
	}

	// Drop component: 30-day drops dominate, 90-day fills in
	monthly := drops30
	if monthly == 0 && drops90 > 0 {
		monthly = drops90 / 3
	}
	dropRatio := decimal.NewFromInt(int64(monthly)).Div(decimal.NewFromInt(30))
	if dropRatio.GreaterThan(decimal.NewFromInt(1)) {
		dropRatio = decimal.NewFromInt(1)
	}
	dropScore := dropsWeight.Mul(dropRatio)

	return rankScore.Add(dropScore).Round(2)
}

// Grade maps ROI and velocity to a letter grade A-F
func Grade(roiPercent, velocity decimal.Decimal) string {
	roi, _ := roiPercent.Float64()
	vel, _ := velocity.Float64()

	switch {
	case roi >= 50 && vel >= 60:
		return "A"
	case roi >= 35 && vel >= 40:
		return "B"
	case roi >= 20 && vel >= 25:
		return "C"
	case roi >= 10:
		return "D"
	default:
		return "F"
	}
}

// Score computes the full result for one snapshot against a buy cost.
// The sell price is the live buy-box price; fees come from the snapshot's
// FBA fee plus the referral percentage of the sell price.
func Score(snapshot models.ProductSnapshot, buyCostCents int64) Result {
	sell := snapshot.BuyBoxPriceCents
	if sell < 0 {
		sell = 0
	}

	referral := decimal.NewFromInt(sell).
		Mul(decimal.NewFromFloat(snapshot.ReferralFeePct)).
		Div(hundred).
		Round(0).
		IntPart()
	fees := snapshot.FBAFeesCents + referral

	roi := ROIPercent(buyCostCents, sell, fees)
	velocity := VelocityScore(snapshot.SalesRank, snapshot.SalesRankDrops30, snapshot.SalesRankDrops90)

	return Result{
		ProfitCents:   sell - buyCostCents - fees,
		ROIPercent:    roi,
		VelocityScore: velocity,
		Grade:         Grade(roi, velocity),
	}
}

// DefaultBuyCost estimates the acquisition cost for a snapshot when the
// caller has no explicit buy price: the used-offer price when present,
// otherwise half the buy-box price.
func DefaultBuyCost(snapshot models.ProductSnapshot) int64 {
	if snapshot.UsedPriceCents > 0 {
		return snapshot.UsedPriceCents
	}
	if snapshot.BuyBoxPriceCents > 0 {
		return snapshot.BuyBoxPriceCents / 2
	}
	return 0
}
