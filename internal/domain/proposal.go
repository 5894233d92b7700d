package domain

import "time"

// Side is the binary outcome a contract pays out on. A YES contract pays $1
// if the event happens, a NO contract pays $1 if it does not.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two recognised polarities.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Proposal is a fully-specified candidate trade awaiting human approval.
// It is immutable once built; amendments produce a new Proposal registered
// under the same trade ID.
type Proposal struct {
	TradeID         string    `json:"trade_id"` // UUID string
	Ticker          string    `json:"ticker"`
	Title           string    `json:"title"`
	Side            Side      `json:"side"`
	Contracts       int       `json:"contracts"`
	LimitPriceCents int       `json:"limit_price"`    // cents, 1-99
	TotalCost       float64   `json:"total_cost"`     // USD
	MaxProfit       float64   `json:"max_profit"`     // USD, favorable outcome
	MaxLoss         float64   `json:"max_loss"`       // USD, always == TotalCost
	Conviction      float64   `json:"conviction"`     // [0,1]
	MarketImplied   float64   `json:"market_implied"` // [0,1], from the limit price
	Edge            float64   `json:"edge"`           // Conviction - MarketImplied
	Rationale       string    `json:"rationale"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// TradeDetails is the subset of a Proposal handed to the execution path after
// a successful token redemption. Registry bookkeeping never leaves the
// registry; this struct is all a caller ever sees.
type TradeDetails struct {
	TradeID         string  `json:"trade_id"`
	Ticker          string  `json:"ticker"`
	Title           string  `json:"title"`
	Side            Side    `json:"side"`
	Contracts       int     `json:"contracts"`
	LimitPriceCents int     `json:"limit_price"`
	TotalCost       float64 `json:"total_cost"`
	Rationale       string  `json:"rationale"`
}

// ConfirmedTrade records a trade that was approved, redeemed, and accepted by
// the exchange. It is immutable and never retried.
type ConfirmedTrade struct {
	TradeID        string    `json:"trade_id"`
	OrderID        string    `json:"order_id"` // exchange-assigned
	Ticker         string    `json:"ticker"`
	Side           Side      `json:"side"`
	Contracts      int       `json:"contracts"`
	FillPriceCents int       `json:"fill_price"` // actual average fill, cents
	TotalCost      float64   `json:"total_cost"`
	ExecutedAt     time.Time `json:"executed_at"`
	Rationale      string    `json:"rationale"`
}

// Details projects the approval-relevant fields of a Proposal.
func (p Proposal) Details() TradeDetails {
	return TradeDetails{
		TradeID:         p.TradeID,
		Ticker:          p.Ticker,
		Title:           p.Title,
		Side:            p.Side,
		Contracts:       p.Contracts,
		LimitPriceCents: p.LimitPriceCents,
		TotalCost:       p.TotalCost,
		Rationale:       p.Rationale,
	}
}
