package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
	"github.com/alanyoungcy/kalshibot/internal/proposal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlacer struct {
	result kalshi.OrderResult
	err    error
	calls  int
}

func (f *fakePlacer) PlaceOrder(_ context.Context, _ string, _ domain.Side, _, _ int) (kalshi.OrderResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeExecutionStore struct {
	inserted []domain.ConfirmedTrade
	listErr  error
}

func (f *fakeExecutionStore) Insert(_ context.Context, trade domain.ConfirmedTrade) error {
	f.inserted = append(f.inserted, trade)
	return nil
}

func (f *fakeExecutionStore) GetByTradeID(_ context.Context, tradeID string) (domain.ConfirmedTrade, error) {
	for _, t := range f.inserted {
		if t.TradeID == tradeID {
			return t, nil
		}
	}
	return domain.ConfirmedTrade{}, domain.ErrNotFound
}

func (f *fakeExecutionStore) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.ConfirmedTrade, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.inserted, nil
}

type auditRecord struct {
	event  string
	detail map[string]any
}

type fakeAuditStore struct {
	records []auditRecord
}

func (f *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	f.records = append(f.records, auditRecord{event: event, detail: detail})
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAuditStore) events() []string {
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.event)
	}
	return out
}

type fakeBus struct {
	published []domain.BusMessage
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.published = append(f.published, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ ...string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.events = append(f.events, event)
	return nil
}

type tradeFixture struct {
	svc      *TradeService
	registry *approval.Registry
	placer   *fakePlacer
	execs    *fakeExecutionStore
	audit    *fakeAuditStore
	bus      *fakeBus
	notifier *fakeNotifier
}

func newTradeFixture(t *testing.T) *tradeFixture {
	t.Helper()
	logger := testLogger()
	registry := approval.NewRegistry(logger)
	builder := proposal.NewBuilder(registry, 100.0, logger)
	placer := &fakePlacer{result: kalshi.OrderResult{OrderID: "ord-1", FillCount: 0}}
	exec := executor.NewExecutor(registry, placer, logger)
	execs := &fakeExecutionStore{}
	audit := &fakeAuditStore{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}

	svc := NewTradeService(builder, registry, exec, execs, audit, bus, notifier, logger)
	return &tradeFixture{
		svc:      svc,
		registry: registry,
		placer:   placer,
		execs:    execs,
		audit:    audit,
		bus:      bus,
		notifier: notifier,
	}
}

func proposeRequest() proposal.Request {
	return proposal.Request{
		Ticker:          "FED-CUT-SEP",
		Title:           "Fed cuts rates in September?",
		Side:            domain.SideYes,
		LimitPriceCents: 45,
		Conviction:      0.7,
		Rationale:       "dovish minutes",
		NotionalUSD:     45.0,
	}
}

func TestProposeJournalsAndPublishes(t *testing.T) {
	fx := newTradeFixture(t)

	p, err := fx.svc.Propose(context.Background(), proposeRequest())
	require.NoError(t, err)
	assert.Equal(t, 100, p.Contracts)

	require.Len(t, fx.audit.records, 1)
	assert.Equal(t, "trade_proposed", fx.audit.records[0].event)
	assert.Equal(t, p.TradeID, fx.audit.records[0].detail["trade_id"])

	require.Len(t, fx.bus.published, 1)
	assert.Equal(t, "trades", fx.bus.published[0].Channel)
	var event struct {
		Event string          `json:"event"`
		Data  domain.Proposal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(fx.bus.published[0].Payload, &event))
	assert.Equal(t, "trade_proposed", event.Event)
	assert.Equal(t, p.TradeID, event.Data.TradeID)

	assert.Equal(t, []string{"trade_proposed"}, fx.notifier.events)
}

func TestProposeInvalidRequestSkipsSideEffects(t *testing.T) {
	fx := newTradeFixture(t)

	req := proposeRequest()
	req.LimitPriceCents = 0
	_, err := fx.svc.Propose(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	assert.Empty(t, fx.audit.records)
	assert.Empty(t, fx.bus.published)
	assert.Empty(t, fx.notifier.events)
}

func TestExecuteJournalsConfirmedTrade(t *testing.T) {
	fx := newTradeFixture(t)

	p, err := fx.svc.Propose(context.Background(), proposeRequest())
	require.NoError(t, err)

	token := uuid.NewString()
	trade, err := fx.svc.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", trade.OrderID)
	assert.Equal(t, 1, fx.placer.calls)

	require.Len(t, fx.execs.inserted, 1)
	assert.Equal(t, p.TradeID, fx.execs.inserted[0].TradeID)

	assert.Equal(t, []string{"trade_proposed", "trade_executed"}, fx.audit.events())
	assert.Equal(t, []string{"trade_proposed", "trade_executed"}, fx.notifier.events)
	assert.Len(t, fx.bus.published, 2)
}

func TestExecuteReplayRecordsReplayBlocked(t *testing.T) {
	fx := newTradeFixture(t)

	p, err := fx.svc.Propose(context.Background(), proposeRequest())
	require.NoError(t, err)

	token := uuid.NewString()
	ts := time.Now().Unix()
	_, err = fx.svc.Execute(context.Background(), p.TradeID, token, ts)
	require.NoError(t, err)

	_, err = fx.svc.Execute(context.Background(), p.TradeID, token, ts)
	require.ErrorIs(t, err, approval.ErrTokenAlreadyUsed)
	assert.Equal(t, 1, fx.placer.calls)

	assert.Contains(t, fx.audit.events(), "replay_blocked")
	assert.Contains(t, fx.notifier.events, "execution_failed")
	require.Len(t, fx.execs.inserted, 1)
}

func TestExecuteUnknownTradeRecordsFailure(t *testing.T) {
	fx := newTradeFixture(t)

	_, err := fx.svc.Execute(context.Background(), uuid.NewString(), uuid.NewString(), time.Now().Unix())
	require.ErrorIs(t, err, approval.ErrTradeNotFound)
	assert.Zero(t, fx.placer.calls)
	assert.Equal(t, []string{"execution_failed"}, fx.audit.events())
}

func TestCancelPendingProposal(t *testing.T) {
	fx := newTradeFixture(t)

	p, err := fx.svc.Propose(context.Background(), proposeRequest())
	require.NoError(t, err)

	require.NoError(t, fx.svc.Cancel(context.Background(), p.TradeID))

	_, err = fx.svc.GetProposal(p.TradeID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, fx.audit.events(), "trade_cancelled")
}

func TestCancelUnknownTrade(t *testing.T) {
	fx := newTradeFixture(t)

	err := fx.svc.Cancel(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, fx.audit.records)
}

func TestGetProposal(t *testing.T) {
	fx := newTradeFixture(t)

	p, err := fx.svc.Propose(context.Background(), proposeRequest())
	require.NoError(t, err)

	details, err := fx.svc.GetProposal(p.TradeID)
	require.NoError(t, err)
	assert.Equal(t, p.Ticker, details.Ticker)
	assert.Equal(t, p.Contracts, details.Contracts)
}

type fakeExtractor struct {
	intent domain.Intent
	err    error
}

func (f *fakeExtractor) ExtractIntent(_ context.Context, _ string) (domain.Intent, error) {
	return f.intent, f.err
}

type fakeMarketStore struct {
	matches []domain.MarketMatch
}

func (f *fakeMarketStore) Upsert(_ context.Context, _ domain.Market) error        { return nil }
func (f *fakeMarketStore) UpsertBatch(_ context.Context, _ []domain.Market) error { return nil }
func (f *fakeMarketStore) GetByTicker(_ context.Context, _ string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) Search(_ context.Context, _, _ string, _ int) ([]domain.MarketMatch, error) {
	return f.matches, nil
}

func (f *fakeMarketStore) ListOpen(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}
func (f *fakeMarketStore) Count(_ context.Context) (int64, error) { return 0, nil }
func (f *fakeMarketStore) DeleteClosed(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type noopCache struct{}

func (noopCache) Set(_ context.Context, _ domain.Market) error { return nil }
func (noopCache) Get(_ context.Context, _ string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}
func (noopCache) Invalidate(_ context.Context, _ string) error { return nil }

func TestAnalyzeWithIntent(t *testing.T) {
	fx := newTradeFixture(t)
	extractor := &fakeExtractor{intent: domain.Intent{
		HasTradingIntent: true,
		Topic:            "fed rate cut",
		Side:             domain.SideYes,
		Conviction:       0.8,
		Keywords:         []string{"fed", "rate", "cut"},
	}}
	store := &fakeMarketStore{matches: []domain.MarketMatch{
		{Market: domain.Market{Ticker: "FED-CUT-SEP"}, Relevance: 0.9},
	}}
	markets := NewMarketService(store, noopCache{}, testLogger())
	fx.svc.WithAnalyzer(extractor, markets)

	result, err := fx.svc.Analyze(context.Background(), "the fed is definitely cutting")
	require.NoError(t, err)
	assert.True(t, result.Intent.HasTradingIntent)
	require.Len(t, result.Markets, 1)
	assert.Equal(t, "FED-CUT-SEP", result.Markets[0].Ticker)
}

func TestAnalyzeWithoutIntentSkipsSearch(t *testing.T) {
	fx := newTradeFixture(t)
	extractor := &fakeExtractor{intent: domain.Intent{
		HasTradingIntent: false,
		Reasoning:        "small talk",
	}}
	fx.svc.WithAnalyzer(extractor, NewMarketService(&fakeMarketStore{}, noopCache{}, testLogger()))

	result, err := fx.svc.Analyze(context.Background(), "nice weather today")
	require.NoError(t, err)
	assert.False(t, result.Intent.HasTradingIntent)
	assert.Empty(t, result.Markets)
}
