package approval

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a controllable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testProposal(id string) domain.Proposal {
	return domain.Proposal{
		TradeID:         id,
		Ticker:          "PRES-2024-DJT",
		Title:           "Will Trump win the 2024 election?",
		Side:            domain.SideYes,
		Contracts:       141,
		LimitPriceCents: 53,
		TotalCost:       74.73,
		MaxProfit:       66.27,
		MaxLoss:         74.73,
		Rationale:       "user conviction 85% vs market 53%",
	}
}

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(testLogger(), WithTokenTTL(30*time.Second), WithClock(clock.Now))
}

func TestValidateAndConsumeSucceedsOnce(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	token := uuid.NewString()
	ts := clock.Now().Unix()

	details, err := reg.ValidateAndConsume(tradeID, token, ts)
	require.NoError(t, err)
	assert.Equal(t, tradeID, details.TradeID)
	assert.Equal(t, "PRES-2024-DJT", details.Ticker)
	assert.Equal(t, domain.SideYes, details.Side)
	assert.Equal(t, 141, details.Contracts)

	// Same token again: replay blocked even though the pending entry is gone.
	_, err = reg.ValidateAndConsume(tradeID, token, ts)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

	// Same token against a fresh proposal under a new ID.
	otherID := uuid.NewString()
	reg.Register(testProposal(otherID))
	_, err = reg.ValidateAndConsume(otherID, token, ts)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestValidateAndConsumeUnknownTrade(t *testing.T) {
	reg := newTestRegistry(newFakeClock())

	_, err := reg.ValidateAndConsume(uuid.NewString(), uuid.NewString(), time.Now().Unix())
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestTokenFreshnessBounds(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	// Timestamp too far in the past.
	stale := clock.Now().Add(-31 * time.Second).Unix()
	_, err := reg.ValidateAndConsume(tradeID, uuid.NewString(), stale)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Timestamp too far in the future; the skew bound is two-sided.
	future := clock.Now().Add(31 * time.Second).Unix()
	_, err = reg.ValidateAndConsume(tradeID, uuid.NewString(), future)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Within the window it passes.
	ok := clock.Now().Add(-29 * time.Second).Unix()
	_, err = reg.ValidateAndConsume(tradeID, uuid.NewString(), ok)
	assert.NoError(t, err)
}

func TestInvalidTokenFormat(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	_, err := reg.ValidateAndConsume(tradeID, "not-a-uuid", clock.Now().Unix())
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A malformed token consumes nothing; a fresh valid token still works.
	_, err = reg.ValidateAndConsume(tradeID, uuid.NewString(), clock.Now().Unix())
	assert.NoError(t, err)
}

func TestProposalAging(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	// Just inside the 2x TTL grace window: still reachable.
	clock.Advance(59 * time.Second)
	_, ok := reg.Peek(tradeID)
	assert.True(t, ok)

	// Past the grace window: unreachable via redemption and peek, even
	// though the token itself was never touched.
	clock.Advance(2 * time.Second)
	_, err := reg.ValidateAndConsume(tradeID, uuid.NewString(), clock.Now().Unix())
	assert.ErrorIs(t, err, ErrProposalExpired)

	// The failed redemption evicted the entry.
	_, err = reg.ValidateAndConsume(tradeID, uuid.NewString(), clock.Now().Unix())
	assert.ErrorIs(t, err, ErrTradeNotFound)

	_, ok = reg.Peek(tradeID)
	assert.False(t, ok)
}

func TestPeekEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))
	clock.Advance(61 * time.Second)

	_, ok := reg.Peek(tradeID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.PendingCount())
}

func TestCancelFinality(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	assert.True(t, reg.Cancel(tradeID))

	_, err := reg.ValidateAndConsume(tradeID, uuid.NewString(), clock.Now().Unix())
	assert.ErrorIs(t, err, ErrTradeNotFound)

	assert.False(t, reg.Cancel(tradeID))
}

func TestReRegisterOverwrites(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	tradeID := uuid.NewString()
	first := testProposal(tradeID)
	reg.Register(first)

	amended := first
	amended.Contracts = 50
	amended.TotalCost = 26.50
	reg.Register(amended)

	assert.Equal(t, 1, reg.PendingCount())

	details, err := reg.ValidateAndConsume(tradeID, uuid.NewString(), clock.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, 50, details.Contracts)
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	oldID := uuid.NewString()
	reg.Register(testProposal(oldID))

	clock.Advance(45 * time.Second)

	// Spend a token on a second proposal so the sweep has a spent set to
	// leave alone.
	executedID := uuid.NewString()
	reg.Register(testProposal(executedID))
	_, err := reg.ValidateAndConsume(executedID, uuid.NewString(), clock.Now().Unix())
	require.NoError(t, err)

	freshID := uuid.NewString()
	reg.Register(testProposal(freshID))

	clock.Advance(20 * time.Second) // oldID is now 65s old, freshID 20s

	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.PendingCount())

	_, ok := reg.Peek(freshID)
	assert.True(t, ok)

	// Replay protection outlives the sweep.
	assert.Equal(t, 1, reg.SpentCount())
}

func TestConcurrentRedemptionSingleWinner(t *testing.T) {
	reg := NewRegistry(testLogger(), WithTokenTTL(30*time.Second))

	tradeID := uuid.NewString()
	reg.Register(testProposal(tradeID))

	token := uuid.NewString()
	ts := time.Now().Unix()

	const n = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		replays int
		other   int
	)

	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reg.ValidateAndConsume(tradeID, token, ts)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrTokenAlreadyUsed):
				replays++
			default:
				other++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one redemption must win")
	assert.Equal(t, n-1, replays, "every loser must see the spent token")
	assert.Zero(t, other,
		"losers must observe the spent fingerprint, not a missing trade")
}
