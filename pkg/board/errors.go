package board

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNotInitialized is returned when the board document does not exist yet.
// Callers should surface a call-to-action to run the init operation.
var ErrNotInitialized = errors.New("board is not initialized")

// ErrStateChanged is returned when an optimistic transaction loses a race:
// either the in-transaction re-validation failed against the fresh state, or
// a concurrent writer touched the board between WATCH and EXEC. The caller
// must re-fetch and decide; it is never retried automatically.
var ErrStateChanged = errors.New("board state changed, reload and retry")

// IsNotInitialized returns true if the error means the board document is absent.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// IsStateChanged returns true if the error is a stale-state transaction abort.
func IsStateChanged(err error) bool {
	return errors.Is(err, ErrStateChanged)
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetCycleSummary or LatestCycleSummary
// returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
