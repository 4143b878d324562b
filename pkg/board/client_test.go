package board

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a miniredis-backed client for testing.
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "llenadora")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testEntry(cycle int, from, to StateKey, tsMs int64) *AuditEntry {
	action := "Solicitar CIP"
	if a, ok := ActionFor(RoleOperacion, from, to); ok {
		action = a
	}
	return &AuditEntry{
		ID:     uuid.New().String(),
		TsMs:   tsMs,
		UID:    "anon",
		Role:   RoleOperacion,
		From:   from,
		To:     to,
		Action: action,
		Cycle:  cycle,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("rejects empty board id", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.ErrorContains(t, err, "board id cannot be empty")
	})

	t.Run("exposes the board id", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.Equal(t, "llenadora", client.BoardID())
	})
}

func TestCreateBoard(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the initial board", func(t *testing.T) {
		client, _ := setupTestClient(t)

		created, err := client.CreateBoard(ctx)
		require.NoError(t, err)
		assert.True(t, created)

		b, err := client.GetBoard(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateInitial, b.Current)
		assert.Equal(t, 1, b.Cycle)
		assert.NotZero(t, b.UpdatedAtMs)
	})

	t.Run("is idempotent", func(t *testing.T) {
		client, _ := setupTestClient(t)

		created, err := client.CreateBoard(ctx)
		require.NoError(t, err)
		require.True(t, created)

		// Advance the board, then call CreateBoard again: state must survive.
		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cur.Cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		require.NoError(t, err)

		created, err = client.CreateBoard(ctx)
		require.NoError(t, err)
		assert.False(t, created)

		b, err := client.GetBoard(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateCIPSolicitado, b.Current)
	})
}

func TestGetBoard(t *testing.T) {
	t.Run("uninitialized board", func(t *testing.T) {
		client, _ := setupTestClient(t)

		_, err := client.GetBoard(context.Background())
		assert.True(t, IsNotInitialized(err))
	})
}

func TestUpdateBoard(t *testing.T) {
	ctx := context.Background()

	t.Run("commits board and entry together", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		updated, entry, err := client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cur.Cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		require.NoError(t, err)
		assert.Equal(t, StateCIPSolicitado, updated.Current)

		b, err := client.GetBoard(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateCIPSolicitado, b.Current)

		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ID, entries[0].ID)
		assert.Equal(t, "Solicitar CIP", entries[0].Action)
	})

	t.Run("requires an initialized board", func(t *testing.T) {
		client, _ := setupTestClient(t)

		_, _, err := client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			t.Fatal("mutate must not run on an uninitialized board")
			return nil, nil, nil
		})
		assert.True(t, IsNotInitialized(err))
	})

	t.Run("mutate error aborts without writing", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		wantErr := fmt.Errorf("no thanks")
		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			return nil, nil, wantErr
		})
		assert.ErrorIs(t, err, wantErr)

		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid result is rejected before commit", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateKey("limbo"), Cycle: cur.Cycle}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, 1), nil
		})
		assert.ErrorContains(t, err, "invalid board")

		b, err := client.GetBoard(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateInitial, b.Current)
	})

	t.Run("concurrent writer surfaces as ErrStateChanged", func(t *testing.T) {
		client, mr := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		// A second connection sneaks in a write between WATCH and EXEC.
		rival := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rival.Close()

		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			require.NoError(t, rival.HSet(ctx, BoardKey("llenadora"), "updated_at_ms", time.Now().UnixMilli()).Err())

			next := &Board{Current: StateCIPSolicitado, Cycle: cur.Cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		assert.True(t, IsStateChanged(err))

		// The losing transaction must not have written anything.
		b, err := client.GetBoard(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateInitial, b.Current)

		entries, err := client.ListEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestResetBoard(t *testing.T) {
	ctx := context.Background()

	client, _ := setupTestClient(t)
	_, err := client.CreateBoard(ctx)
	require.NoError(t, err)

	_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
		next := &Board{Current: StateCIPSolicitado, Cycle: 7, UpdatedAtMs: time.Now().UnixMilli()}
		return next, testEntry(7, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
	})
	require.NoError(t, err)

	require.NoError(t, client.ResetBoard(ctx))

	b, err := client.GetBoard(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateInitial, b.Current)
	assert.Equal(t, 1, b.Cycle)
}

func TestListCycleEntries(t *testing.T) {
	ctx := context.Background()

	client, _ := setupTestClient(t)
	_, err := client.CreateBoard(ctx)
	require.NoError(t, err)

	// Two entries in cycle 1, one in cycle 2.
	for i, cycle := range []int{1, 1, 2} {
		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cycle, StateSinSolicitud, StateCIPSolicitado, int64(1000*(i+1))), nil
		})
		require.NoError(t, err)
	}

	entries, err := client.ListCycleEntries(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 1, e.Cycle)
	}

	entries, err = client.ListCycleEntries(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteCycleHistory(t *testing.T) {
	ctx := context.Background()

	client, _ := setupTestClient(t)
	_, err := client.CreateBoard(ctx)
	require.NoError(t, err)

	for _, cycle := range []int{1, 1, 1, 2} {
		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cycle, StateSinSolicitud, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{Cycle: 1, CreatedAtMs: 1}))

	deleted, err := client.DeleteCycleHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	// Cycle 2 entries survive, cycle 1 summary is gone.
	entries, err := client.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Cycle)

	_, err = client.GetCycleSummary(ctx, 1)
	assert.True(t, IsNotFound(err))
}

func TestDeleteAllHistory(t *testing.T) {
	ctx := context.Background()

	client, _ := setupTestClient(t)
	_, err := client.CreateBoard(ctx)
	require.NoError(t, err)

	// More entries than one delete batch to exercise the paging loop.
	for i := 0; i < deleteBatchSize+20; i++ {
		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: 1, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(1, StateSinSolicitud, StateCIPSolicitado, int64(i)+1), nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{Cycle: 1, CreatedAtMs: 1}))
	require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{Cycle: 2, CreatedAtMs: 1}))

	deleted, err := client.DeleteAllHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, deleteBatchSize+22, deleted)

	entries, err := client.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The board document itself is untouched by design.
	_, err = client.GetBoard(ctx)
	assert.NoError(t, err)
}

func TestCycleSummaries(t *testing.T) {
	ctx := context.Background()

	t.Run("save and get round trip", func(t *testing.T) {
		client, _ := setupTestClient(t)

		s := &CycleSummary{
			Cycle: 3,
			Pairs: []PairTotal{
				{Key: "cip_en_curso->hisopado_pend", Label: "Duración CIP", Ms: 600000, Min: 10},
			},
			Segments: []Segment{
				{Key: "cip_en_curso->hisopado_pend", Label: "Duración CIP", StartMin: 0, EndMin: 10, Color: "#0ea5e9"},
			},
			StartedAtMs:  1000,
			FinishedAtMs: 601000,
			TotalMin:     10,
			CreatedAtMs:  700000,
		}
		require.NoError(t, client.SaveCycleSummary(ctx, s))

		got, err := client.GetCycleSummary(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("save replaces prior summary wholesale", func(t *testing.T) {
		client, _ := setupTestClient(t)

		require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{
			Cycle:       1,
			Aborted:     true,
			AbortReason: "parada",
			CreatedAtMs: 1,
		}))
		require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{
			Cycle:       1,
			TotalMin:    5,
			CreatedAtMs: 2,
		}))

		got, err := client.GetCycleSummary(ctx, 1)
		require.NoError(t, err)
		// Stale fields from the first write must not leak through.
		assert.False(t, got.Aborted)
		assert.Empty(t, got.AbortReason)
		assert.Equal(t, 5.0, got.TotalMin)
	})

	t.Run("missing summary is not found", func(t *testing.T) {
		client, _ := setupTestClient(t)

		_, err := client.GetCycleSummary(ctx, 42)
		assert.True(t, IsNotFound(err))
	})

	t.Run("latest picks the highest cycle number", func(t *testing.T) {
		client, _ := setupTestClient(t)

		for _, cycle := range []int{2, 10, 7} {
			require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{Cycle: cycle, CreatedAtMs: 1}))
		}

		got, err := client.LatestCycleSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Cycle)
	})

	t.Run("latest with no summaries is not found", func(t *testing.T) {
		client, _ := setupTestClient(t)

		_, err := client.LatestCycleSummary(ctx)
		assert.True(t, IsNotFound(err))
	})
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()

	t.Run("board events are delivered", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		sub, err := client.SubscribeBoardEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(100 * time.Millisecond) // let the SUBSCRIBE land

		_, _, err = client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cur.Cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		require.NoError(t, err)

		select {
		case b := <-sub.Events():
			assert.Equal(t, StateCIPSolicitado, b.Current)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for board event")
		}
	})

	t.Run("log events are delivered", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		sub, err := client.SubscribeLogEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(100 * time.Millisecond)

		_, entry, err := client.UpdateBoard(ctx, func(cur *Board) (*Board, *AuditEntry, error) {
			next := &Board{Current: StateCIPSolicitado, Cycle: cur.Cycle, UpdatedAtMs: time.Now().UnixMilli()}
			return next, testEntry(cur.Cycle, cur.Current, StateCIPSolicitado, next.UpdatedAtMs), nil
		})
		require.NoError(t, err)

		select {
		case e := <-sub.Events():
			assert.Equal(t, entry.ID, e.ID)
			assert.Equal(t, "Solicitar CIP", e.Action)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for log event")
		}
	})

	t.Run("summary events are delivered", func(t *testing.T) {
		client, _ := setupTestClient(t)

		sub, err := client.SubscribeSummaryEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, client.SaveCycleSummary(ctx, &CycleSummary{Cycle: 4, TotalMin: 12.5, CreatedAtMs: 1}))

		select {
		case s := <-sub.Events():
			assert.Equal(t, 4, s.Cycle)
			assert.Equal(t, 12.5, s.TotalMin)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for summary event")
		}
	})

	t.Run("close stops delivery and is safe to repeat", func(t *testing.T) {
		client, _ := setupTestClient(t)
		_, err := client.CreateBoard(ctx)
		require.NoError(t, err)

		sub, err := client.SubscribeBoardEvents(ctx)
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		// The events channel closes once the goroutine winds down.
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events channel to close")
		}
	})
}
