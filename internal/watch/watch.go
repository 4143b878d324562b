// Package watch streams live board activity to a writer. It multiplexes the
// three independent change streams (board state, audit log, cycle
// summaries); the streams carry no ordering guarantee relative to each
// other, so output is printed strictly in arrival order.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/plantasur/tablero/pkg/board"
)

// OutputFormat selects how events are rendered.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON for programmatic processing.
	OutputFormatJSON OutputFormat = "json"
)

// event is the JSONL envelope wrapping one stream event.
type event struct {
	Type    string              `json:"type"` // "board", "log", or "cycle"
	At      string              `json:"at"`
	Board   *board.Board        `json:"board,omitempty"`
	Entry   *board.AuditEntry   `json:"entry,omitempty"`
	Summary *board.CycleSummary `json:"summary,omitempty"`
}

// StreamActivity subscribes to all three board event streams and writes
// events to w until the context is cancelled. Subscriptions are closed on
// return so no stale listeners leak past session teardown.
func StreamActivity(ctx context.Context, client *board.Client, format OutputFormat, w io.Writer) error {
	boardSub, err := client.SubscribeBoardEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer boardSub.Close()

	logSub, err := client.SubscribeLogEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to log events: %w", err)
	}
	defer logSub.Close()

	cycleSub, err := client.SubscribeSummaryEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to cycle events: %w", err)
	}
	defer cycleSub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case b, ok := <-boardSub.Events():
			if !ok {
				return nil
			}
			writeEvent(w, format, event{Type: "board", At: now(), Board: b})

		case e, ok := <-logSub.Events():
			if !ok {
				return nil
			}
			writeEvent(w, format, event{Type: "log", At: now(), Entry: e})

		case s, ok := <-cycleSub.Events():
			if !ok {
				return nil
			}
			writeEvent(w, format, event{Type: "cycle", At: now(), Summary: s})

		case err, ok := <-boardSub.Errors():
			if ok {
				fmt.Fprintf(w, "! board stream error: %v\n", err)
			}
		case err, ok := <-logSub.Errors():
			if ok {
				fmt.Fprintf(w, "! log stream error: %v\n", err)
			}
		case err, ok := <-cycleSub.Errors():
			if ok {
				fmt.Fprintf(w, "! cycle stream error: %v\n", err)
			}
		}
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func writeEvent(w io.Writer, format OutputFormat, ev event) {
	if format == OutputFormatJSON {
		data, err := json.Marshal(ev)
		if err != nil {
			fmt.Fprintf(w, "! failed to marshal event: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s\n", data)
		return
	}
	fmt.Fprintln(w, FormatEvent(ev))
}

// FormatEvent renders one event as a human-readable line.
func FormatEvent(ev event) string {
	stamp := ev.At
	if t, err := time.Parse(time.RFC3339, ev.At); err == nil {
		stamp = t.Format("15:04:05")
	}

	switch ev.Type {
	case "board":
		return fmt.Sprintf("%s  estado: %s [ciclo %d]", stamp, board.StateLabel(ev.Board.Current), ev.Board.Cycle)
	case "log":
		line := fmt.Sprintf("%s  %s → %s · %s", stamp, board.RoleLabel(ev.Entry.Role), ev.Entry.Action, board.StateLabel(ev.Entry.To))
		if ev.Entry.Note != "" {
			line += " · Nota: " + ev.Entry.Note
		}
		return line
	case "cycle":
		label := "cerrado"
		if ev.Summary.Aborted {
			label = "abortado"
		}
		return fmt.Sprintf("%s  ciclo %d %s: %.2f min, %d tramos", stamp, ev.Summary.Cycle, label, ev.Summary.TotalMin, len(ev.Summary.Segments))
	default:
		return fmt.Sprintf("%s  %s", stamp, ev.Type)
	}
}
