package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market lookups in front of the MarketStore.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, ticker string) (Market, error)
	Invalidate(ctx context.Context, ticker string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub for workflow events (proposal created, trade
// executed, proposal cancelled). The WebSocket hub subscribes so connected
// UIs see state changes as they happen.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
}

// BusMessage is a single pub/sub delivery tagged with its source channel.
type BusMessage struct {
	Channel string
	Payload []byte
}
