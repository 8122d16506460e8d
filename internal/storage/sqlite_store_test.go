package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
	"github.com/roman-kulish/radar-pulse/internal/dfs/chirp"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "pulses.sqlite"))
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testEvents(base time.Time) []*dfs.PulseEvent {
	return []*dfs.PulseEvent{
		{
			Timestamp: base.Add(2 * time.Second),
			TSF:       3000,
			Frequency: 5500,
			Mode:      chirp.ChannelHT20,
			Width:     50,
			RSSI:      25,
			Primary:   true,
			Checked:   true,
			Chirp:     true,
			Reason:    chirp.ReasonChirp,
			MaxBins:   []int{10, 13, 16, 19},
			Data:      []byte{1, 2, 3},
		},
		{
			Timestamp: base,
			TSF:       1000,
			Frequency: 5500,
			Mode:      chirp.ChannelHT20,
			Width:     8,
			RSSI:      12,
			Primary:   true,
			Data:      []byte{4, 5},
		},
		{
			Timestamp: base.Add(time.Second),
			TSF:       2000,
			Frequency: 5260,
			Mode:      chirp.ChannelHT40Minus,
			Width:     60,
			RSSI:      30,
			Primary:   true,
			Extension: true,
			Checked:   true,
			Reason:    chirp.ReasonUnevenGradient,
			MaxBins:   []int{10, 13, 20, 21},
			Data:      []byte{6},
		},
	}
}

func readAll(t *testing.T, store *SqliteStore, sessionID int64, opts ...ReaderOption) []*dfs.PulseEvent {
	t.Helper()

	ctx := context.Background()
	r, err := store.ReadPulses(ctx, sessionID, opts...)
	require.NoError(t, err)
	defer r.Close()

	var got []*dfs.PulseEvent
	for r.Next(ctx) {
		got = append(got, r.Current())
	}
	require.NoError(t, r.Error())
	return got
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id1, err := store.CreateSession(ctx, "replay", "lab", map[string]string{"file": "fcc5.csv"})
	require.NoError(t, err)
	id2, err := store.CreateSession(ctx, "command", "phy0", nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	sess, err := store.Session(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "replay", sess.SourceType)
	assert.Equal(t, "lab", sess.SourceID)
	require.NotNil(t, sess.Config)
	assert.JSONEq(t, `{"file":"fcc5.csv"}`, *sess.Config)
	assert.False(t, sess.StartTime.IsZero())

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Nil(t, sessions[1].Config)

	_, err = store.Session(ctx, 42)
	assert.Error(t, err)
}

func TestSqliteStore_StoreAndReadPulses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	sessionID, err := store.CreateSession(ctx, "replay", "lab", "raw config")
	require.NoError(t, err)

	events := testEvents(base)
	require.NoError(t, store.StorePulses(ctx, sessionID, events))
	require.NoError(t, store.StorePulses(ctx, sessionID, nil))

	got := readAll(t, store, sessionID)
	want := []*dfs.PulseEvent{events[1], events[2], events[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadPulses() mismatch (-want +got):\n%s", diff)
	}

	t.Run("chirp only", func(t *testing.T) {
		got := readAll(t, store, sessionID, WithChirpOnly())
		require.Len(t, got, 1)
		assert.Equal(t, uint64(3000), got[0].TSF)
	})

	t.Run("frequency range", func(t *testing.T) {
		got := readAll(t, store, sessionID, WithFreqRange(5250, 5270))
		require.Len(t, got, 1)
		assert.Equal(t, chirp.ChannelHT40Minus, got[0].Mode)
	})

	t.Run("time range", func(t *testing.T) {
		got := readAll(t, store, sessionID, WithTimeRange(base.Add(500*time.Millisecond), base.Add(2*time.Second)))
		require.Len(t, got, 2)
		assert.Equal(t, uint64(2000), got[0].TSF)
		assert.Equal(t, uint64(3000), got[1].TSF)
	})

	t.Run("invalid filters", func(t *testing.T) {
		_, err := store.ReadPulses(ctx, sessionID, WithFreqRange(6000, 5000))
		assert.Error(t, err)

		_, err = store.ReadPulses(ctx, sessionID, WithTimeRange(base.Add(time.Hour), base))
		assert.Error(t, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := store.ReadPulses(ctx, sessionID+100)
		assert.Error(t, err)
	})
}

func TestSqliteStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	sessionID, err := store.CreateSession(ctx, "replay", "lab", nil)
	require.NoError(t, err)

	_, err = store.Stats(ctx, sessionID)
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, store.StorePulses(ctx, sessionID, testEvents(base)))

	stats, err := store.Stats(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Pulses)
	assert.Equal(t, int64(2), stats.Checked)
	assert.Equal(t, int64(1), stats.Chirps)
	assert.True(t, base.Equal(stats.FirstSeen), "first seen %s", stats.FirstSeen)
	assert.True(t, base.Add(2*time.Second).Equal(stats.LastSeen), "last seen %s", stats.LastSeen)
}

func TestSqliteDatetime_Scan(t *testing.T) {
	var dt sqliteDatetime

	require.NoError(t, dt.Scan("2026-10-19 10:00:00.5+00:00"))
	assert.True(t, dt.Valid)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 500_000_000, time.UTC), dt.Datetime)

	require.NoError(t, dt.Scan([]byte("2026-10-19 10:00:00")))
	assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), dt.Datetime)

	require.NoError(t, dt.Scan(nil))
	assert.False(t, dt.Valid)

	assert.Error(t, dt.Scan("yesterday"))
	assert.Error(t, dt.Scan(42))
}
