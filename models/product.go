package models

import "time"

// ProductSnapshot represents the marketplace state of one ASIN at fetch time.
// Prices are in marketplace cents; a value of -1 means no offer exists.
type ProductSnapshot struct {
	ASIN              string    `json:"asin"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	BuyBoxPriceCents  int64     `json:"buy_box_price_cents"`
	UsedPriceCents    int64     `json:"used_price_cents"`
	FBAFeesCents      int64     `json:"fba_fees_cents"`
	ReferralFeePct    float64   `json:"referral_fee_pct"`
	SalesRank         int       `json:"sales_rank"`
	SalesRankDrops30  int       `json:"sales_rank_drops_30"`
	SalesRankDrops90  int       `json:"sales_rank_drops_90"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// HasBuyBox returns true if the snapshot carries a live buy-box price
func (p *ProductSnapshot) HasBuyBox() bool {
	return p.BuyBoxPriceCents > 0
}
