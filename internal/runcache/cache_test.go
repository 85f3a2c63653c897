package runcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/pkg/logger"
)

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("2026-01-20", 5, "mock", "sig", "map")
	k2 := Key("2026-01-20", 5, "mock", "sig", "map")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	// Every component participates.
	assert.NotEqual(t, k1, Key("2026-01-21", 5, "mock", "sig", "map"))
	assert.NotEqual(t, k1, Key("2026-01-20", 10, "mock", "sig", "map"))
	assert.NotEqual(t, k1, Key("2026-01-20", 5, "snapshot", "sig", "map"))
	assert.NotEqual(t, k1, Key("2026-01-20", 5, "mock", "sig2", "map"))
	assert.NotEqual(t, k1, Key("2026-01-20", 5, "mock", "sig", "map2"))
}

func TestHashBytes(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashBytes(nil))
	assert.Equal(t, HashBytes([]byte("abc")), HashBytes([]byte("abc")))
	assert.NotEqual(t, HashBytes([]byte("abc")), HashBytes([]byte("abd")))
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "cache"), logger.NewNop())

	key := Key("2026-01-20", 5, "mock", "s", "m")
	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	entry := &Entry{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		Report: &contracts.Report{
			AsOf:  "2026-01-20",
			TopN:  5,
			Count: 1,
			Results: []contracts.ReportRow{
				{Ticker: "600100", Name: "STOCK_0100", FinalScore: 2.3},
			},
		},
		Scored: []contracts.ScoredRow{
			{IndicatorRow: contracts.IndicatorRow{Ticker: "600100"}, FinalScore: 2.3},
		},
	}
	require.NoError(t, store.Put(ctx, key, entry))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, "2026-01-20", got.Report.AsOf)
	require.Len(t, got.Report.Results, 1)
	assert.Equal(t, "600100", got.Report.Results[0].Ticker)
	require.Len(t, got.Scored, 1)
	assert.Equal(t, 2.3, got.Scored[0].FinalScore)

	// Published file, no leftover temp files.
	entries, err := os.ReadDir(filepath.Dir(store.path(key)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key+".json", entries[0].Name())
}

func TestFileStore_CorruptRecordIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, logger.NewNop())

	key := "deadbeef"
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644))

	_, found, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_OverwriteSameKey(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), logger.NewNop())

	key := "abc123"
	require.NoError(t, store.Put(ctx, key, &Entry{Key: key, Report: &contracts.Report{TopN: 5}}))
	require.NoError(t, store.Put(ctx, key, &Entry{Key: key, Report: &contracts.Report{TopN: 10}}))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, got.Report.TopN)
}

func TestNopStore(t *testing.T) {
	ctx := context.Background()
	store := NopStore{}

	require.NoError(t, store.Put(ctx, "k", &Entry{Key: "k"}))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
