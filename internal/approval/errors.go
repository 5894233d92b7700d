package approval

import "errors"

// Redemption failures. Each is terminal for that approval attempt but leaves
// the registry in a consistent state; the caller may re-propose. Callers
// branch with errors.Is rather than matching message text.
var (
	// ErrTradeNotFound means no pending proposal exists under the trade ID
	// (never registered, already executed, cancelled, or swept).
	ErrTradeNotFound = errors.New("approval: trade proposal not found")

	// ErrProposalExpired means the proposal sat unapproved past its grace
	// window (twice the token TTL) and has been evicted.
	ErrProposalExpired = errors.New("approval: trade proposal expired")

	// ErrTokenExpired means the token's timestamp is further from server time
	// than the TTL allows, in either direction.
	ErrTokenExpired = errors.New("approval: token expired")

	// ErrInvalidToken means the token does not parse as a UUID.
	ErrInvalidToken = errors.New("approval: token format invalid")

	// ErrTokenAlreadyUsed means the token's fingerprint is in the spent set.
	ErrTokenAlreadyUsed = errors.New("approval: token already used")
)
