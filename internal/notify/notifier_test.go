package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name  string
	err   error
	calls []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.calls = append(f.calls, title)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	sender := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{sender}, []string{"trade_executed"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), "trade_proposed", "proposed", "body"))
	assert.Empty(t, sender.calls)

	require.NoError(t, n.Notify(context.Background(), "trade_executed", "executed", "body"))
	assert.Equal(t, []string{"executed"}, sender.calls)
}

func TestNotifyAllBypassesEventFilter(t *testing.T) {
	sender := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{sender}, []string{"trade_executed"}, testLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "kalshibot online", "serve mode started"))
	assert.Equal(t, []string{"kalshibot online"}, sender.calls)
}

func TestNotifyEmptyEventsAllowsAll(t *testing.T) {
	sender := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "title", "body"))
	assert.Len(t, sender.calls, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &fakeSender{name: "telegram", err: errors.New("timeout")}
	healthy := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{broken, healthy}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Len(t, healthy.calls, 1)
}

func TestNotifyNoSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	require.NoError(t, n.NotifyAll(context.Background(), "title", "body"))
}
