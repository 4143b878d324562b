package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// scanPageSize bounds how many keys one SCAN iteration requests.
	scanPageSize = 100

	// deleteBatchSize bounds how many keys one DEL command removes during
	// bulk history clearing. Bulk deletes are paged and best-effort, not
	// atomic across the whole deletion.
	deleteBatchSize = 100
)

// Client provides board-scoped Redis operations for the status board.
// All keys and channels are automatically namespaced with the board id.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	boardID string
}

// NewClient creates a new board client for the specified board id.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - boardID: board identifier, e.g. "llenadora" (must not be empty)
//
// Returns an error if boardID is empty.
func NewClient(redisOpts *redis.Options, boardID string) (*Client, error) {
	if boardID == "" {
		return nil, fmt.Errorf("board id cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		boardID: boardID,
	}, nil
}

// BoardID returns the board id this client is scoped to.
func (c *Client) BoardID() string {
	return c.boardID
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
// Returns an error if Redis is not reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateBoard initializes the board document with the initial state and
// cycle 1. The operation is idempotent: if the board already exists it is
// left untouched and (false, nil) is returned.
func (c *Client) CreateBoard(ctx context.Context) (created bool, err error) {
	key := BoardKey(c.boardID)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check board existence: %w", err)
		}
		if exists > 0 {
			created = false
			return nil
		}

		b := &Board{
			Current:     StateInitial,
			Cycle:       1,
			UpdatedAtMs: time.Now().UnixMilli(),
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, BoardToHash(b))
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write board: %w", err)
		}
		created = true
		return nil
	}

	if err := c.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Someone else created it between WATCH and EXEC.
			return false, nil
		}
		return false, err
	}
	return created, nil
}

// GetBoard retrieves the board document.
// Returns ErrNotInitialized if the board does not exist.
func (c *Client) GetBoard(ctx context.Context) (*Board, error) {
	hashData, err := c.rdb.HGetAll(ctx, BoardKey(c.boardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, ErrNotInitialized
	}

	b, err := HashToBoard(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize board: %w", err)
	}
	return b, nil
}

// UpdateBoard applies one atomic read-modify-write to the board document.
//
// The mutate function receives the freshest board state read under WATCH and
// returns the new board plus the audit entry to append, or an error to abort
// the transaction (typically ErrStateChanged when the authoritative
// re-validation fails). The board hash and the entry hash are written in a
// single MULTI/EXEC, so they commit together or not at all.
//
// A concurrent writer that touches the board between WATCH and EXEC makes
// the transaction fail; that conflict is surfaced as ErrStateChanged. The
// loser must re-fetch and decide - UpdateBoard never retries on its own.
//
// After a successful commit the updated board and new entry are published on
// the board/log event channels. Pub/Sub is at-most-once: a failed publish is
// tolerated because the commit already happened and live readers re-fetch.
func (c *Client) UpdateBoard(ctx context.Context, mutate func(cur *Board) (*Board, *AuditEntry, error)) (*Board, *AuditEntry, error) {
	key := BoardKey(c.boardID)

	var updated *Board
	var entry *AuditEntry

	txf := func(tx *redis.Tx) error {
		hashData, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read board from Redis: %w", err)
		}
		if len(hashData) == 0 {
			return ErrNotInitialized
		}

		cur, err := HashToBoard(hashData)
		if err != nil {
			return fmt.Errorf("failed to deserialize board: %w", err)
		}

		updated, entry, err = mutate(cur)
		if err != nil {
			return err
		}

		if err := updated.Validate(); err != nil {
			return fmt.Errorf("invalid board: %w", err)
		}
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("invalid audit entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, BoardToHash(updated))
			pipe.HSet(ctx, EntryKey(c.boardID, entry.ID), EntryToHash(entry))
			return nil
		})
		return err
	}

	if err := c.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, nil, ErrStateChanged
		}
		return nil, nil, err
	}

	c.publishBoard(ctx, updated)
	c.publishEntry(ctx, entry)

	return updated, entry, nil
}

// ResetBoard overwrites the board document with the initial state and
// cycle 1. Used by the clear-all maintenance operation.
func (c *Client) ResetBoard(ctx context.Context) error {
	b := &Board{
		Current:     StateInitial,
		Cycle:       1,
		UpdatedAtMs: time.Now().UnixMilli(),
	}

	if err := c.rdb.HSet(ctx, BoardKey(c.boardID), BoardToHash(b)).Err(); err != nil {
		return fmt.Errorf("failed to reset board: %w", err)
	}

	c.publishBoard(ctx, b)
	return nil
}

// ListEntries retrieves all audit log entries for this board, in no
// particular order. The store does not guarantee query order without a
// composite index (which this schema deliberately avoids), so callers must
// re-sort by timestamp.
func (c *Client) ListEntries(ctx context.Context) ([]*AuditEntry, error) {
	keys, err := c.scanKeys(ctx, EntryPattern(c.boardID))
	if err != nil {
		return nil, err
	}

	entries := make([]*AuditEntry, 0, len(keys))
	for _, key := range keys {
		hashData, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", key, err)
		}
		if len(hashData) == 0 {
			// Deleted between SCAN and HGETALL; skip.
			continue
		}

		entry, err := HashToEntry(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize entry %s: %w", key, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListCycleEntries retrieves all audit log entries tagged with the given
// cycle number, in no particular order. Returns an empty slice when the
// cycle has no entries (not an error).
func (c *Client) ListCycleEntries(ctx context.Context, cycle int) ([]*AuditEntry, error) {
	all, err := c.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*AuditEntry, 0, len(all))
	for _, e := range all {
		if e.Cycle == cycle {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// DeleteCycleHistory deletes all audit entries tagged with the given cycle
// number plus that cycle's summary. Deletion proceeds in bounded batches and
// is best-effort: an interruption may leave partial results.
// Returns the number of entries deleted.
func (c *Client) DeleteCycleHistory(ctx context.Context, cycle int) (int, error) {
	keys, err := c.scanKeys(ctx, EntryPattern(c.boardID))
	if err != nil {
		return 0, err
	}

	cycleStr := strconv.Itoa(cycle)
	var doomed []string
	for _, key := range keys {
		val, err := c.rdb.HGet(ctx, key, "cycle").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return 0, fmt.Errorf("failed to read entry cycle: %w", err)
		}
		if val == cycleStr {
			doomed = append(doomed, key)
		}
	}

	deleted, err := c.deleteBatched(ctx, doomed)
	if err != nil {
		return deleted, err
	}

	if err := c.rdb.Del(ctx, CycleKey(c.boardID, cycle)).Err(); err != nil {
		return deleted, fmt.Errorf("failed to delete cycle summary: %w", err)
	}
	return deleted, nil
}

// DeleteAllHistory deletes every audit entry and every cycle summary for
// this board, in bounded batches. The board document itself is untouched;
// callers that want a full reset follow up with ResetBoard.
// Returns the number of keys deleted.
func (c *Client) DeleteAllHistory(ctx context.Context) (int, error) {
	entryKeys, err := c.scanKeys(ctx, EntryPattern(c.boardID))
	if err != nil {
		return 0, err
	}
	cycleKeys, err := c.scanKeys(ctx, CyclePattern(c.boardID))
	if err != nil {
		return 0, err
	}

	return c.deleteBatched(ctx, append(entryKeys, cycleKeys...))
}

// SaveCycleSummary persists a cycle summary keyed by its cycle number.
// Saving is an idempotent overwrite: recomputing the same cycle replaces the
// prior summary deterministically. Publishes a cycle event on success.
func (c *Client) SaveCycleSummary(ctx context.Context, s *CycleSummary) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid cycle summary: %w", err)
	}

	hash, err := SummaryToHash(s)
	if err != nil {
		return fmt.Errorf("failed to serialize cycle summary: %w", err)
	}

	key := CycleKey(c.boardID, s.Cycle)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear prior cycle summary: %w", err)
	}
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write cycle summary: %w", err)
	}

	c.publishSummary(ctx, s)
	return nil
}

// GetCycleSummary retrieves the summary for one cycle.
// Returns (nil, redis.Nil) if no summary exists for that cycle.
func (c *Client) GetCycleSummary(ctx context.Context, cycle int) (*CycleSummary, error) {
	hashData, err := c.rdb.HGetAll(ctx, CycleKey(c.boardID, cycle)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cycle summary: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	s, err := HashToSummary(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize cycle summary: %w", err)
	}
	return s, nil
}

// LatestCycleSummary retrieves the summary with the highest cycle number.
// Returns (nil, redis.Nil) if no summaries exist.
func (c *Client) LatestCycleSummary(ctx context.Context) (*CycleSummary, error) {
	keys, err := c.scanKeys(ctx, CyclePattern(c.boardID))
	if err != nil {
		return nil, err
	}

	latest := -1
	prefix := fmt.Sprintf("tablero:%s:cycle:", c.boardID)
	for _, key := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	if latest < 0 {
		return nil, redis.Nil
	}

	return c.GetCycleSummary(ctx, latest)
}

// scanKeys collects all keys matching the pattern, paging through SCAN.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		page, next, err := c.rdb.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// deleteBatched deletes keys in batches of deleteBatchSize, looping until
// exhausted. Returns how many keys were deleted before any error.
func (c *Client) deleteBatched(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for len(keys) > 0 {
		batch := keys
		if len(batch) > deleteBatchSize {
			batch = batch[:deleteBatchSize]
		}
		keys = keys[len(batch):]

		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete batch: %w", err)
		}
		deleted += len(batch)
	}
	return deleted, nil
}

func (c *Client) publishBoard(ctx context.Context, b *Board) {
	payload, err := json.Marshal(b)
	if err != nil {
		return
	}
	c.rdb.Publish(ctx, BoardEventsChannel(c.boardID), payload)
}

func (c *Client) publishEntry(ctx context.Context, e *AuditEntry) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.rdb.Publish(ctx, LogEventsChannel(c.boardID), payload)
}

func (c *Client) publishSummary(ctx context.Context, s *CycleSummary) {
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	c.rdb.Publish(ctx, CycleEventsChannel(c.boardID), payload)
}
