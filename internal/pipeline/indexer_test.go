package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
)

type fakeFetcher struct {
	pages [][]kalshi.Market
	calls int
}

func (f *fakeFetcher) GetMarkets(_ context.Context, _ int, cursor, _ string) ([]kalshi.Market, string, error) {
	if f.calls >= len(f.pages) {
		return nil, "", nil
	}
	page := f.pages[f.calls]
	f.calls++
	next := ""
	if f.calls < len(f.pages) {
		next = "cursor-next"
	}
	_ = cursor
	return page, next, nil
}

type fakeSyncer struct {
	batches [][]domain.Market
	failOn  int // batch index that fails; zero disables
}

func (f *fakeSyncer) SyncMarkets(_ context.Context, markets []domain.Market) error {
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return assert.AnError
	}
	f.batches = append(f.batches, markets)
	return nil
}

type fakeArchiver struct {
	written []domain.Market
	pruned  time.Time
}

func (f *fakeArchiver) Write(_ context.Context, markets []domain.Market, _ time.Time) (string, error) {
	f.written = append(f.written, markets...)
	return "markets/test.jsonl", nil
}

func (f *fakeArchiver) Prune(_ context.Context, cutoff time.Time) (int, error) {
	f.pruned = cutoff
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func apiMarket(ticker string, yesAsk int) kalshi.Market {
	return kalshi.Market{
		Ticker:    ticker,
		Title:     "Test market " + ticker,
		Status:    "open",
		YesAsk:    yesAsk,
		NoAsk:     100 - yesAsk,
		Volume:    1000,
		CloseTime: "2026-12-31T00:00:00Z",
	}
}

func TestIndexerPaginatesAndSyncs(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]kalshi.Market{
		{apiMarket("A-1", 45), apiMarket("A-2", 60)},
		{apiMarket("B-1", 30)},
	}}
	syncer := &fakeSyncer{}
	archiver := &fakeArchiver{}

	ix := NewIndexer(fetcher, syncer, nil, archiver,
		IndexerConfig{PageSize: 2, MaxPages: 10, SnapshotEnabled: true}, testLogger())

	total, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, fetcher.calls)
	require.Len(t, syncer.batches, 2)
	assert.Equal(t, "A-1", syncer.batches[0][0].Ticker)
	assert.Equal(t, 45, syncer.batches[0][0].YesPriceCents)

	// Snapshot covers the whole pass.
	assert.Len(t, archiver.written, 3)
}

func TestIndexerCountsSyncedMarketsBeforeFailure(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]kalshi.Market{
		{apiMarket("A-1", 45), apiMarket("A-2", 30)},
		{apiMarket("B-1", 70)},
	}}
	syncer := &fakeSyncer{failOn: 1}

	ix := NewIndexer(fetcher, syncer, nil, nil,
		IndexerConfig{PageSize: 2, MaxPages: 10}, testLogger())

	total, err := ix.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, total)
}

func TestIndexerStopsAtMaxPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]kalshi.Market{
		{apiMarket("A-1", 45)},
		{apiMarket("B-1", 30)},
		{apiMarket("C-1", 70)},
	}}
	syncer := &fakeSyncer{}

	ix := NewIndexer(fetcher, syncer, nil, nil,
		IndexerConfig{PageSize: 1, MaxPages: 2}, testLogger())

	total, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, fetcher.calls)
}

func TestIndexerNoSnapshotWhenDisabled(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]kalshi.Market{{apiMarket("A-1", 45)}}}
	syncer := &fakeSyncer{}
	archiver := &fakeArchiver{}

	ix := NewIndexer(fetcher, syncer, nil, archiver,
		IndexerConfig{SnapshotEnabled: false}, testLogger())

	_, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, archiver.written)
}
