// SPDX-License-Identifier: MIT

package journal

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/cache"
	"github.com/ilyes-Benyahia-Etudiant/Projet-JO-Python/internal/scan"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T, opts Options) (*Store, *testClock) {
	t.Helper()
	clk := &testClock{now: time.Date(2024, 7, 26, 18, 0, 0, 0, time.UTC)}
	if opts.Now == nil {
		opts.Now = clk.Now
	}
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.sqlite"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func record(t *testing.T, s *Store, clk *testClock, kind scan.OperationKind, token string, o scan.Outcome) Entry {
	t.Helper()
	e := NewEntry("sess-1", kind, token, o)
	e.At = clk.now
	require.NoError(t, s.Record(context.Background(), e))
	clk.now = clk.now.Add(time.Second)
	return e
}

func TestNewEntry_CopiesTicketFields(t *testing.T) {
	o := scan.Outcome{
		State:    scan.StateValidated,
		Message:  "Billet validé",
		Fallback: true,
		Ticket:   &scan.TicketDetail{Token: "u42.abc", Title: "Concert", Purchaser: "a@b.fr"},
	}
	e := NewEntry("sess-1", scan.OpValidate, "", o)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "u42.abc", e.Token, "ticket token is used when none was submitted")
	assert.Equal(t, "Concert", e.Title)
	assert.Equal(t, "a@b.fr", e.Purchaser)
	assert.True(t, e.Fallback)
	assert.True(t, e.At.IsZero())
}

func TestRecent_NewestFirstWithFilters(t *testing.T) {
	s, clk := openTestStore(t, Options{})
	ctx := context.Background()

	record(t, s, clk, scan.OpLookup, "T1", scan.Outcome{State: scan.StateReady, Ticket: &scan.TicketDetail{Title: "Concert"}})
	record(t, s, clk, scan.OpValidate, "T1", scan.Outcome{State: scan.StateValidated, Message: "Billet validé"})
	record(t, s, clk, scan.OpLookup, "T2", scan.Outcome{State: scan.StateInvalid, Message: "Billet inconnu"})

	all, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "T2", all[0].Token)
	assert.Equal(t, scan.StateReady, all[2].State)
	assert.Equal(t, "Concert", all[2].Title)
	assert.Equal(t, scan.OpValidate, all[1].Operation)

	limited, err := s.Recent(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	byToken, err := s.Recent(ctx, Filter{Token: "T1"})
	require.NoError(t, err)
	assert.Len(t, byToken, 2)

	validated := scan.StateValidated
	byState, err := s.Recent(ctx, Filter{State: &validated})
	require.NoError(t, err)
	require.Len(t, byState, 1)
	assert.Equal(t, "Billet validé", byState[0].Message)

	since, err := s.Recent(ctx, Filter{Since: all[1].At})
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestStats_CountsWindowAndUsesCache(t *testing.T) {
	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	s, clk := openTestStore(t, Options{Cache: mem, StatsTTL: time.Hour})
	ctx := context.Background()

	record(t, s, clk, scan.OpLookup, "old", scan.Outcome{State: scan.StateInvalid})
	clk.now = clk.now.Add(time.Hour)
	record(t, s, clk, scan.OpValidate, "T1", scan.Outcome{State: scan.StateValidated, Fallback: true})
	record(t, s, clk, scan.OpValidate, "T2", scan.Outcome{State: scan.StateAlreadyValidated})

	st, err := s.Stats(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Outcomes["validated"])
	assert.Equal(t, 1, st.Outcomes["already_validated"])
	assert.Equal(t, 0, st.Outcomes["invalid"])
	assert.Equal(t, 1, st.Fallbacks)
	assert.Equal(t, "15m0s", st.Window)

	record(t, s, clk, scan.OpValidate, "T3", scan.Outcome{State: scan.StateValidated})
	cached, err := s.Stats(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total, "served from cache until the TTL expires")
	assert.Equal(t, int64(1), mem.Stats().Hits)
}

func TestStats_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer rc.Close()

	s, clk := openTestStore(t, Options{Cache: rc, StatsTTL: time.Minute})
	record(t, s, clk, scan.OpLookup, "T1", scan.Outcome{State: scan.StateReady})

	first, err := s.Stats(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.DefaultRedisPrefix+"journal:stats:1h0m0s"))

	second, err := s.Stats(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.Outcomes, second.Outcomes)
}

func TestPrune(t *testing.T) {
	s, clk := openTestStore(t, Options{Retention: 24 * time.Hour})
	ctx := context.Background()

	record(t, s, clk, scan.OpLookup, "old", scan.Outcome{State: scan.StateReady})
	clk.now = clk.now.Add(48 * time.Hour)
	record(t, s, clk, scan.OpLookup, "new", scan.Outcome{State: scan.StateReady})

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Token)
}

func TestPrune_NoRetention(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	n, err := s.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExport_WritesCSVAtomically(t *testing.T) {
	s, clk := openTestStore(t, Options{})
	ctx := context.Background()
	record(t, s, clk, scan.OpLookup, "T1", scan.Outcome{State: scan.StateReady, Ticket: &scan.TicketDetail{Title: "Finale, 100m"}})
	record(t, s, clk, scan.OpValidate, "T1", scan.Outcome{State: scan.StateValidated})

	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	n, err := s.Export(ctx, path, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "validated", records[1][6])
	assert.Equal(t, "Finale, 100m", records[2][8])
	assert.Equal(t, "2024-07-26T18:00:00Z", records[2][1])

	entries, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no pending temp file left behind")
}

func TestPing(t *testing.T) {
	s, _ := openTestStore(t, Options{})
	assert.NoError(t, s.Ping(context.Background()))
}
