package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Live-change subscriptions
//
// The board, the audit log, and the latest cycle summary are three
// independent, continuously-updating read streams with no ordering guarantee
// relative to each other: the board state may become visible before or after
// the corresponding log entry. Consumers must tolerate that and re-fetch
// when in doubt.
//
// Delivery is Redis Pub/Sub, i.e. at-most-once: a slow subscriber may miss
// events. Callers must Close() subscriptions on session teardown (role
// change, logout) to avoid leaking stale listeners.

// BoardSubscription represents an active Pub/Sub subscription to board state
// changes. Caller must call Close() when done to clean up resources.
type BoardSubscription struct {
	events <-chan *Board
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board state events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *BoardSubscription) Events() <-chan *Board {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *BoardSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *BoardSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// LogSubscription represents an active Pub/Sub subscription to new audit
// entries. Caller must call Close() when done to clean up resources.
type LogSubscription struct {
	events <-chan *AuditEntry
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of audit entry events.
func (s *LogSubscription) Events() <-chan *AuditEntry {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *LogSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *LogSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SummarySubscription represents an active Pub/Sub subscription to cycle
// summary updates. Caller must call Close() when done to clean up resources.
type SummarySubscription struct {
	events <-chan *CycleSummary
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of cycle summary events.
func (s *SummarySubscription) Events() <-chan *CycleSummary {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *SummarySubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *SummarySubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeBoardEvents subscribes to board state change events.
// Returns a BoardSubscription that delivers full board snapshots.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
func (c *Client) SubscribeBoardEvents(ctx context.Context) (*BoardSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, BoardEventsChannel(c.boardID))

	eventsChan := make(chan *Board, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var b Board
				if err := json.Unmarshal([]byte(msg.Payload), &b); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &b:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &BoardSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeLogEvents subscribes to new audit entry events.
// Returns a LogSubscription that delivers full audit entries.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeLogEvents(ctx context.Context) (*LogSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, LogEventsChannel(c.boardID))

	eventsChan := make(chan *AuditEntry, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var e AuditEntry
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal log event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &LogSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeSummaryEvents subscribes to cycle summary updates.
// Returns a SummarySubscription that delivers full cycle summaries.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribeSummaryEvents(ctx context.Context) (*SummarySubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, CycleEventsChannel(c.boardID))

	eventsChan := make(chan *CycleSummary, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var s CycleSummary
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal cycle event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &s:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &SummarySubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
