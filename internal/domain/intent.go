package domain

// Intent is the structured trading intent extracted from a free-text user
// statement by the conviction analyzer. When HasTradingIntent is false the
// remaining fields other than Reasoning are zero-valued.
type Intent struct {
	HasTradingIntent bool     `json:"has_trading_intent"`
	Topic            string   `json:"topic,omitempty"`
	Side             Side     `json:"side,omitempty"`
	Conviction       float64  `json:"conviction"` // [0,1]
	Timeframe        string   `json:"timeframe,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Reasoning        string   `json:"reasoning"`
}
