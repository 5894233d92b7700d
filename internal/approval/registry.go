// Package approval implements the ghost-token protocol that gates trade
// execution. Tokens are minted client-side when the user clicks approve; the
// registry never issues them, it only validates and atomically consumes them.
//
// Security properties:
//   - tokens are single-use (replay prevention via a spent-fingerprint set)
//   - tokens expire after a short TTL measured against server time
//   - proposals expire after twice the TTL and must be re-created
//   - only a SHA-256 fingerprint of a redeemed token is retained, never the
//     raw token
package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// DefaultTokenTTL bounds how stale an approval token's timestamp may be.
const DefaultTokenTTL = 30 * time.Second

// pendingEntry wraps a proposal's trade details with registry bookkeeping.
// It never leaves the registry.
type pendingEntry struct {
	details   domain.TradeDetails
	createdAt time.Time
}

// Registry holds pending trade proposals and the spent-token fingerprint set.
// A single mutex covers both structures so validation and consumption for a
// trade ID run as one critical section: of two concurrent redemptions with
// the same token, exactly one observes "not yet spent".
//
// Proposal volume is human-paced, so the coarse lock is deliberate. Nothing
// performs I/O while holding it.
type Registry struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
	spent   map[string]struct{} // SHA-256 hex fingerprints of redeemed tokens

	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTokenTTL overrides the default token TTL.
func WithTokenTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.tokenTTL = ttl
		}
	}
}

// WithClock overrides the registry's time source. Used by tests to pin
// expiry behavior without sleeping.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		pending:  make(map[string]pendingEntry),
		spent:    make(map[string]struct{}),
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "approval")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TokenTTL returns the configured token TTL.
func (r *Registry) TokenTTL() time.Duration {
	return r.tokenTTL
}

// proposalTTL is the grace window for an unreviewed proposal. A proposal may
// legitimately sit unreviewed for longer than a single approval click stays
// fresh, so it gets twice the token TTL before it is discarded.
func (r *Registry) proposalTTL() time.Duration {
	return 2 * r.tokenTTL
}

// Register stores the proposal's details under its own trade ID. The ID is
// assigned by the proposal builder, never regenerated here, so callers can
// reference it before registration completes. Re-registering the same ID
// overwrites in place; amendment before approval is allowed and only one
// entry exists per ID.
func (r *Registry) Register(p domain.Proposal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[p.TradeID] = pendingEntry{
		details:   p.Details(),
		createdAt: r.now(),
	}
}

// ValidateAndConsume validates the ghost token against the pending proposal
// and, if every check passes, atomically consumes it: the token's fingerprint
// is marked spent before the pending entry is removed, all under one lock.
// On success the trade can never be redeemed again under this ID.
//
// The checks run in a fixed order and each failure is distinct:
//  1. ErrTradeNotFound   - no pending entry for tradeID
//  2. ErrProposalExpired - proposal older than 2x TTL (entry is evicted)
//  3. ErrTokenExpired    - |now - timestamp| exceeds the TTL; the bound is
//     two-sided so both stale and pre-dated tokens are rejected
//  4. ErrInvalidToken    - token is not a UUID
//  5. ErrTokenAlreadyUsed - fingerprint already in the spent set
//
// timestamp is the Unix epoch second at which the caller minted the token.
func (r *Registry) ValidateAndConsume(tradeID, token string, timestamp int64) (domain.TradeDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	entry, ok := r.pending[tradeID]
	if !ok {
		// A concurrent redemption that already won removed the pending entry
		// after spending the token. Report the replay, not a missing trade,
		// so racing callers observe each other.
		if _, err := uuid.Parse(token); err == nil {
			if _, used := r.spent[fingerprint(token)]; used {
				return domain.TradeDetails{}, fmt.Errorf("%w: generate a new approval", ErrTokenAlreadyUsed)
			}
		}
		return domain.TradeDetails{}, fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}

	if now.Sub(entry.createdAt) > r.proposalTTL() {
		delete(r.pending, tradeID)
		r.logger.Info("evicted expired proposal on redemption attempt",
			slog.String("trade_id", tradeID),
		)
		return domain.TradeDetails{}, fmt.Errorf("%w: create a new proposal", ErrProposalExpired)
	}

	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > r.tokenTTL {
		return domain.TradeDetails{}, fmt.Errorf("%w: token minted %s from server time, max allowed %s",
			ErrTokenExpired, skew.Round(time.Millisecond), r.tokenTTL)
	}

	if _, err := uuid.Parse(token); err != nil {
		return domain.TradeDetails{}, fmt.Errorf("%w: expected UUID", ErrInvalidToken)
	}

	fp := fingerprint(token)
	if _, used := r.spent[fp]; used {
		r.logger.Warn("replay blocked",
			slog.String("trade_id", tradeID),
		)
		return domain.TradeDetails{}, fmt.Errorf("%w: generate a new approval", ErrTokenAlreadyUsed)
	}

	// Consume: spend the fingerprint first, then drop the pending entry.
	r.spent[fp] = struct{}{}
	delete(r.pending, tradeID)

	return entry.details, nil
}

// Cancel removes a pending proposal unconditionally and reports whether an
// entry existed. Used for explicit rejection.
func (r *Registry) Cancel(tradeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[tradeID]; !ok {
		return false
	}
	delete(r.pending, tradeID)
	return true
}

// Peek returns the trade details for a pending proposal without any token
// validation or state transition. A proposal past its grace window is evicted
// and reported as absent.
func (r *Registry) Peek(tradeID string) (domain.TradeDetails, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[tradeID]
	if !ok {
		return domain.TradeDetails{}, false
	}

	if r.now().Sub(entry.createdAt) > r.proposalTTL() {
		delete(r.pending, tradeID)
		return domain.TradeDetails{}, false
	}

	return entry.details, true
}

// Sweep evicts every proposal older than the grace window and returns the
// number removed. The spent-fingerprint set is never trimmed here: replay
// prevention must outlive the proposals themselves.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	maxAge := r.proposalTTL()

	removed := 0
	for id, entry := range r.pending {
		if now.Sub(entry.createdAt) > maxAge {
			delete(r.pending, id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info("swept expired proposals",
			slog.Int("removed", removed),
		)
	}
	return removed
}

// PendingCount returns the number of proposals awaiting approval.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// SpentCount returns the number of spent-token fingerprints retained for
// replay prevention.
func (r *Registry) SpentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spent)
}

// fingerprint returns the SHA-256 hex digest of a token. The raw token is
// never stored.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
