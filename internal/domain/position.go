package domain

// Position is an open holding in the user's Kalshi portfolio with its
// unrealized profit and loss marked against the current market price.
type Position struct {
	Ticker            string  `json:"ticker"`
	Title             string  `json:"title"`
	Side              Side    `json:"side"`
	Contracts         int     `json:"contracts"`
	AvgPriceCents     int     `json:"avg_price"`
	CurrentPriceCents int     `json:"current_price"`
	CurrentValue      float64 `json:"current_value"`  // USD
	UnrealizedPnL     float64 `json:"unrealized_pnl"` // USD
}

// Portfolio aggregates the open positions and their totals.
type Portfolio struct {
	Positions  []Position `json:"positions"`
	TotalValue float64    `json:"total_value"`
	TotalPnL   float64    `json:"total_pnl"`
}
