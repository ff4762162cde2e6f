package keepa

// tokenInfo carries the token accounting the API reports on every response
type tokenInfo struct {
	TokensLeft int   `json:"tokensLeft"`
	RefillIn   int64 `json:"refillIn"`   // milliseconds until the next refill tick
	RefillRate int   `json:"refillRate"` // tokens credited per minute
}

// productStats is the price/rank block of a product payload.
// Prices are in marketplace cents; -1 means no offer.
type productStats struct {
	BuyBoxPrice      int64   `json:"buyBoxPrice"`
	UsedPrice        int64   `json:"usedPrice"`
	FBAFees          int64   `json:"fbaFees"`
	ReferralFeePct   float64 `json:"referralFeePercent"`
	SalesRank        int     `json:"salesRank"`
	SalesRankDrops30 int     `json:"salesRankDrops30"`
	SalesRankDrops90 int     `json:"salesRankDrops90"`
}

// productPayload is one product entry in a product response
type productPayload struct {
	ASIN     string       `json:"asin"`
	Title    string       `json:"title"`
	Category string       `json:"rootCategory"`
	Stats    productStats `json:"stats"`
}

// productResponse is the body of GET /product
type productResponse struct {
	tokenInfo
	Products []productPayload `json:"products"`
}

// bestsellersResponse is the body of GET /bestsellers
type bestsellersResponse struct {
	tokenInfo
	ASINList []string `json:"asinList"`
}

// errorResponse is the body the API returns on non-2xx statuses
type errorResponse struct {
	tokenInfo
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
