package kalshi

import "fmt"

// ErrorKind classifies Kalshi API failures so callers can branch on the kind
// instead of matching error text.
type ErrorKind string

const (
	KindUnknown             ErrorKind = "unknown"
	KindNotFound            ErrorKind = "not_found"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindRateLimited         ErrorKind = "rate_limited"
	KindBadRequest          ErrorKind = "bad_request"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindMarketClosed        ErrorKind = "market_closed"
	KindOrderRejected       ErrorKind = "order_rejected"
)

// APIError is a structured Kalshi API failure. Code and Message come from the
// Kalshi error body; Kind is derived from the HTTP status and the code.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kalshi: %s (HTTP %d, code=%s): %s", e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("kalshi: %s (HTTP %d): %s", e.Kind, e.Status, e.Message)
}

// classifyCode maps documented Kalshi error codes onto kinds. Codes not in
// the table fall back to a status-derived kind.
func classifyCode(code string) (ErrorKind, bool) {
	switch code {
	case "insufficient_balance", "insufficient_funds":
		return KindInsufficientBalance, true
	case "market_closed", "market_not_open", "trading_is_paused":
		return KindMarketClosed, true
	case "order_rejected", "self_trade":
		return KindOrderRejected, true
	case "not_found", "market_not_found", "order_not_found":
		return KindNotFound, true
	case "rate_limit_exceeded":
		return KindRateLimited, true
	default:
		return KindUnknown, false
	}
}

// classifyStatus covers responses whose body carries no recognised code.
func classifyStatus(status int) ErrorKind {
	switch status {
	case 404:
		return KindNotFound
	case 401, 403:
		return KindUnauthorized
	case 429:
		return KindRateLimited
	case 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// newAPIError builds an APIError from an HTTP status and a decoded error body.
func newAPIError(status int, code, message string) *APIError {
	kind, ok := classifyCode(code)
	if !ok {
		kind = classifyStatus(status)
	}
	return &APIError{
		Kind:    kind,
		Status:  status,
		Code:    code,
		Message: message,
	}
}
