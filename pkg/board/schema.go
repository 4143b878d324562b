package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by board id to enable
// multiple boards (one per filler line) to safely coexist on a single Redis
// server.
//
// Key pattern: tablero:{board_id}:{entity}[:{id}]
// Channel pattern: tablero:{board_id}:{event_type}_events
//
// The schema is deliberately index-free: there is no sorted-set index over
// the audit log. Log queries SCAN the entry keys and filter/sort client-side
// so that the transactional write path touches exactly the board hash and
// one entry hash.

// BoardKey returns the Redis key for the board document.
// Pattern: tablero:{board_id}:board
func BoardKey(boardID string) string {
	return fmt.Sprintf("tablero:%s:board", boardID)
}

// EntryKey returns the Redis key for one audit log entry.
// Pattern: tablero:{board_id}:log:{entry_id}
func EntryKey(boardID, entryID string) string {
	return fmt.Sprintf("tablero:%s:log:%s", boardID, entryID)
}

// EntryPattern returns the SCAN match pattern covering all audit log entries.
// Pattern: tablero:{board_id}:log:*
func EntryPattern(boardID string) string {
	return fmt.Sprintf("tablero:%s:log:*", boardID)
}

// CycleKey returns the Redis key for a cycle summary.
// Pattern: tablero:{board_id}:cycle:{cycle_number}
func CycleKey(boardID string, cycle int) string {
	return fmt.Sprintf("tablero:%s:cycle:%d", boardID, cycle)
}

// CyclePattern returns the SCAN match pattern covering all cycle summaries.
// Pattern: tablero:{board_id}:cycle:*
func CyclePattern(boardID string) string {
	return fmt.Sprintf("tablero:%s:cycle:*", boardID)
}

// BoardEventsChannel returns the Pub/Sub channel for board state changes.
// Pattern: tablero:{board_id}:board_events
func BoardEventsChannel(boardID string) string {
	return fmt.Sprintf("tablero:%s:board_events", boardID)
}

// LogEventsChannel returns the Pub/Sub channel for new audit entries.
// Pattern: tablero:{board_id}:log_events
func LogEventsChannel(boardID string) string {
	return fmt.Sprintf("tablero:%s:log_events", boardID)
}

// CycleEventsChannel returns the Pub/Sub channel for cycle summary updates.
// Pattern: tablero:{board_id}:cycle_events
func CycleEventsChannel(boardID string) string {
	return fmt.Sprintf("tablero:%s:cycle_events", boardID)
}
