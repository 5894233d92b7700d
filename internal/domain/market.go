package domain

import "time"

// Market is a Kalshi binary market as held in the local index. Prices are in
// cents (1-99) and double as the market-implied probability of the event.
type Market struct {
	Ticker        string    `json:"ticker"`
	EventTicker   string    `json:"event_ticker"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	Category      string    `json:"category"`
	Status        string    `json:"status"` // "open", "closed", "settled"
	YesPriceCents int       `json:"yes_price"`
	NoPriceCents  int       `json:"no_price"`
	Volume        int64     `json:"volume"`
	OpenInterest  int64     `json:"open_interest"`
	CloseTime     time.Time `json:"close_time"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// MarketMatch is a Market annotated with a search relevance score in [0,1].
type MarketMatch struct {
	Market
	Relevance float64 `json:"relevance"`
}

// ImpliedProbability returns the probability the market assigns to the given
// side, derived from the YES price.
func (m Market) ImpliedProbability(side Side) float64 {
	p := float64(m.YesPriceCents) / 100.0
	if side == SideNo {
		return 1.0 - p
	}
	return p
}
