package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func TestParseIntent(t *testing.T) {
	raw := `{
		"has_trading_intent": true,
		"topic": "Fed rate cut in September",
		"side": "YES",
		"conviction": 0.85,
		"timeframe": "September FOMC",
		"keywords": ["fed", "rate cut", "fomc", "september"],
		"reasoning": "user states strong belief the Fed will cut"
	}`

	intent, err := parseIntent(raw)
	require.NoError(t, err)
	assert.True(t, intent.HasTradingIntent)
	assert.Equal(t, "Fed rate cut in September", intent.Topic)
	assert.Equal(t, domain.SideYes, intent.Side)
	assert.InDelta(t, 0.85, intent.Conviction, 1e-9)
	assert.Len(t, intent.Keywords, 4)
}

func TestParseIntentFencedOutput(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" +
		`{"has_trading_intent": true, "topic": "BTC above 100k", "side": "NO", "conviction": 0.6, "reasoning": "skeptical tone"}` +
		"\n```\nLet me know if you need more."

	intent, err := parseIntent(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.SideNo, intent.Side)
	assert.InDelta(t, 0.6, intent.Conviction, 1e-9)
}

func TestParseIntentNoIntent(t *testing.T) {
	raw := `{"has_trading_intent": false, "conviction": 0, "reasoning": "small talk"}`

	intent, err := parseIntent(raw)
	require.NoError(t, err)
	assert.False(t, intent.HasTradingIntent)
	assert.Empty(t, intent.Topic)
}

func TestParseIntentRejectsBadOutput(t *testing.T) {
	cases := map[string]string{
		"no json":             "I think the Fed will cut rates.",
		"conviction too high": `{"has_trading_intent": true, "topic": "fed", "side": "YES", "conviction": 1.4}`,
		"bad side":            `{"has_trading_intent": true, "topic": "fed", "side": "MAYBE", "conviction": 0.7}`,
		"missing topic":       `{"has_trading_intent": true, "side": "YES", "conviction": 0.7}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseIntent(raw)
			assert.Error(t, err)
		})
	}
}
