package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogHandlerAttachesHandlerAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := NewMarketHandler(nil, logger)
	h.logger.Info("request served")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "market", entry["handler"])
}

func TestParseListOptsDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/markets", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}

func TestParseListOptsClampsLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/markets?limit=9999&offset=20", nil)
	opts := parseListOpts(r)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)
}

func TestWriteErrorShapesBody(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 404, "market not found")

	assert.Equal(t, 404, w.Code)
	assert.JSONEq(t, `{"error":"market not found"}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
