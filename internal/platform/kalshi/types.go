package kalshi

import (
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. Prices are
// in cents (1-99).
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Status       string `json:"status"` // "open", "closed", "settled"
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24H    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	Category     string `json:"category"`
	Result       string `json:"result"` // "yes", "no", "" (unsettled)
	OpenTime     string `json:"open_time"`
	CloseTime    string `json:"close_time"`
}

// ToDomain converts the API market into the domain model. Ask prices are
// what a buyer pays, so they are preferred over bids, with a 50c fallback
// when the book is empty. Prices are clamped into the valid 1-99 range.
func (m Market) ToDomain() domain.Market {
	closeTime, err := time.Parse(time.RFC3339, m.CloseTime)
	if err != nil {
		closeTime = time.Time{}
	}

	return domain.Market{
		Ticker:        m.Ticker,
		EventTicker:   m.EventTicker,
		Title:         m.Title,
		Subtitle:      m.Subtitle,
		Category:      m.Category,
		Status:        m.Status,
		YesPriceCents: clampPrice(firstNonZero(m.YesAsk, m.YesBid)),
		NoPriceCents:  clampPrice(firstNonZero(m.NoAsk, m.NoBid)),
		Volume:        m.Volume,
		OpenInterest:  m.OpenInterest,
		CloseTime:     closeTime,
	}
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 50
}

func clampPrice(p int) int {
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}

// Order represents an order to be placed on the Kalshi exchange.
type Order struct {
	Ticker   string `json:"ticker"`
	Action   string `json:"action"`              // "buy" or "sell"
	Side     string `json:"side"`                // "yes" or "no"
	Type     string `json:"type"`                // "market" or "limit"
	Count    int    `json:"count"`               // number of contracts
	YesPrice *int   `json:"yes_price,omitempty"` // limit price in cents, required for limit YES orders
	NoPrice  *int   `json:"no_price,omitempty"`  // limit price in cents, required for limit NO orders
}

// OrderResponse represents the API response after placing an order.
type OrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		Action         string `json:"action"`
		Side           string `json:"side"`
		Type           string `json:"type"`
		YesPrice       int    `json:"yes_price"`
		NoPrice        int    `json:"no_price"`
		PlacedTime     string `json:"placed_time"`
		TakerFillCount int    `json:"taker_fill_count"`
		TakerFillCost  int    `json:"taker_fill_cost"`
		RemainingCount int    `json:"remaining_count"`
	} `json:"order"`
}

// AvgFillPriceCents returns the average fill price of the taker fills, or 0
// when nothing has filled yet.
func (r OrderResponse) AvgFillPriceCents() int {
	if r.Order.TakerFillCount == 0 {
		return 0
	}
	return r.Order.TakerFillCost / r.Order.TakerFillCount
}

// OrderResult is the outcome of a successfully accepted order.
type OrderResult struct {
	OrderID           string
	FillCount         int
	AvgFillPriceCents int // 0 when the order rested without fills
}

// BalanceResponse is the portfolio balance payload. Balance is in cents.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// MarketPosition is a single position row from the portfolio endpoint.
// Position is signed: positive means YES contracts, negative means NO.
type MarketPosition struct {
	Ticker        string `json:"ticker"`
	MarketTitle   string `json:"market_title"`
	Position      int    `json:"position"`
	AveragePrice  int    `json:"average_price"` // cents
	TotalTraded   int64  `json:"total_traded"`
	RestingOrders int    `json:"resting_order_count"`
}

// ToDomain converts a signed position row into the domain model.
func (p MarketPosition) ToDomain() domain.Position {
	side := domain.SideYes
	contracts := p.Position
	if contracts < 0 {
		side = domain.SideNo
		contracts = -contracts
	}
	return domain.Position{
		Ticker:        p.Ticker,
		Title:         p.MarketTitle,
		Side:          side,
		Contracts:     contracts,
		AvgPriceCents: p.AveragePrice,
	}
}

// errorResponse is the Kalshi API error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
