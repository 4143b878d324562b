// Package report assembles a closed cycle's summary into a JSON payload
// with an embedded chart image and dispatches it to an external reporting
// endpoint. Delivery is fire-and-forget: the caller logs failures and never
// surfaces or retries them.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/plantasur/tablero/pkg/board"
)

// Emitter posts cycle reports to a configured HTTP endpoint.
type Emitter struct {
	boardID  string
	endpoint string
	client   *http.Client
}

// NewEmitter creates an emitter for the given board and endpoint. timeout
// bounds each POST; zero selects a 10-second default.
func NewEmitter(boardID, endpoint string, timeout time.Duration) *Emitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		boardID:  boardID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// payload is the wire format of a cycle report.
type payload struct {
	BoardID    string        `json:"boardId"`
	CycleID    int           `json:"cycleId"`
	TotalMin   float64       `json:"totalMin"`
	Pairs      []payloadPair `json:"pairs"`
	ChartURL   string        `json:"chartUrl"`
	StartedAt  string        `json:"startedAt"`
	FinishedAt string        `json:"finishedAt"`
	Aborted    bool          `json:"aborted,omitempty"`
	Logs       []payloadLog  `json:"logs"`
}

type payloadPair struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
}

type payloadLog struct {
	When   string `json:"when"`
	Role   string `json:"role"`
	Action string `json:"action"`
	To     string `json:"to"`
	Note   string `json:"note,omitempty"`
}

// SendCycleReport renders the summary's chart, assembles the report payload
// with the cycle's chronological log, and POSTs it to the endpoint. The
// response body is discarded; a non-2xx status is returned as an error so
// the caller can log it, but nothing is retried.
func (e *Emitter) SendCycleReport(ctx context.Context, summary *board.CycleSummary, entries []*board.AuditEntry) error {
	chartURL, err := EncodeChartDataURL(RenderTimeline(summary))
	if err != nil {
		return err
	}

	sorted := make([]*board.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TsMs < sorted[j].TsMs })

	p := payload{
		BoardID:    e.boardID,
		CycleID:    summary.Cycle,
		TotalMin:   summary.TotalMin,
		ChartURL:   chartURL,
		StartedAt:  formatMs(summary.StartedAtMs),
		FinishedAt: formatMs(summary.FinishedAtMs),
		Aborted:    summary.Aborted,
		Pairs:      make([]payloadPair, 0, len(summary.Pairs)),
		Logs:       make([]payloadLog, 0, len(sorted)),
	}
	for _, pair := range summary.Pairs {
		p.Pairs = append(p.Pairs, payloadPair{Label: pair.Label, Min: pair.Min})
	}
	for _, en := range sorted {
		p.Logs = append(p.Logs, payloadLog{
			When:   formatMs(en.TsMs),
			Role:   string(en.Role),
			Action: en.Action,
			To:     string(en.To),
			Note:   en.Note,
		})
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal report payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report endpoint returned %s", resp.Status)
	}
	return nil
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
