package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Snapshotter archives market index passes to object storage as JSONL and
// prunes snapshots that have aged past the retention window. Snapshots are
// write-once; nothing here mutates the primary store.
type Snapshotter struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	deleter domain.BlobDeleter
}

// NewSnapshotter builds a Snapshotter over the given client.
func NewSnapshotter(c *Client) *Snapshotter {
	r := NewReader(c)
	return &Snapshotter{
		writer:  NewWriter(c),
		reader:  r,
		deleter: r,
	}
}

const snapshotPrefix = "markets/"

// snapshotPath lays out keys as markets/2026/08/29/143005.jsonl so prefixes
// line up with calendar days.
func snapshotPath(ts time.Time) string {
	return ts.UTC().Format(snapshotPrefix + "2006/01/02/150405.jsonl")
}

// Write serializes the markets as one JSON object per line and uploads the
// snapshot keyed by the given timestamp. It returns the object path.
func (s *Snapshotter) Write(ctx context.Context, markets []domain.Market, ts time.Time) (string, error) {
	if len(markets) == 0 {
		return "", fmt.Errorf("s3blob: snapshot: no markets to write")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range markets {
		if err := enc.Encode(m); err != nil {
			return "", fmt.Errorf("s3blob: snapshot encode %s: %w", m.Ticker, err)
		}
	}

	path := snapshotPath(ts)
	if err := s.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", err
	}
	return path, nil
}

// Prune deletes snapshots last modified before the cutoff, returning how many
// objects were removed.
func (s *Snapshotter) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	infos, err := s.reader.List(ctx, snapshotPrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, info := range infos {
		if !info.LastModified.Before(cutoff) {
			continue
		}
		if err := s.deleter.Delete(ctx, info.Path); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
