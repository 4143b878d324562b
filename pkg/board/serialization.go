package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Compound fields like
// the summary's pairs and segments are JSON-encoded into single hash fields.
// This keeps scalar fields individually readable while allowing structured
// data where needed.

// BoardToHash converts a Board struct to a Redis hash format.
func BoardToHash(b *Board) map[string]interface{} {
	return map[string]interface{}{
		"current":       string(b.Current),
		"cycle":         b.Cycle,
		"updated_at_ms": b.UpdatedAtMs,
	}
}

// HashToBoard converts a Redis hash to a Board struct.
func HashToBoard(hash map[string]string) (*Board, error) {
	cycle, err := strconv.Atoi(hash["cycle"])
	if err != nil {
		return nil, fmt.Errorf("invalid cycle field: %w", err)
	}

	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &Board{
		Current:     StateKey(hash["current"]),
		Cycle:       cycle,
		UpdatedAtMs: updatedAtMs,
	}, nil
}

// EntryToHash converts an AuditEntry struct to a Redis hash format.
func EntryToHash(e *AuditEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":     e.ID,
		"ts_ms":  e.TsMs,
		"uid":    e.UID,
		"role":   string(e.Role),
		"from":   string(e.From),
		"to":     string(e.To),
		"action": e.Action,
		"note":   e.Note,
		"cycle":  e.Cycle,
	}
}

// HashToEntry converts a Redis hash to an AuditEntry struct.
func HashToEntry(hash map[string]string) (*AuditEntry, error) {
	tsMs, err := strconv.ParseInt(hash["ts_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ts_ms field: %w", err)
	}

	cycle, err := strconv.Atoi(hash["cycle"])
	if err != nil {
		return nil, fmt.Errorf("invalid cycle field: %w", err)
	}

	return &AuditEntry{
		ID:     hash["id"],
		TsMs:   tsMs,
		UID:    hash["uid"],
		Role:   Role(hash["role"]),
		From:   StateKey(hash["from"]),
		To:     StateKey(hash["to"]),
		Action: hash["action"],
		Note:   hash["note"],
		Cycle:  cycle,
	}, nil
}

// SummaryToHash converts a CycleSummary struct to a Redis hash format.
// Pairs and segments are JSON-encoded into single fields.
func SummaryToHash(s *CycleSummary) (map[string]interface{}, error) {
	pairsJSON, err := json.Marshal(s.Pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pairs: %w", err)
	}

	segmentsJSON, err := json.Marshal(s.Segments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segments: %w", err)
	}

	return map[string]interface{}{
		"cycle":          s.Cycle,
		"pairs":          string(pairsJSON),
		"segments":       string(segmentsJSON),
		"started_at_ms":  s.StartedAtMs,
		"finished_at_ms": s.FinishedAtMs,
		"total_min":      strconv.FormatFloat(s.TotalMin, 'f', -1, 64),
		"aborted":        s.Aborted,
		"abort_reason":   s.AbortReason,
		"created_at_ms":  s.CreatedAtMs,
	}, nil
}

// HashToSummary converts a Redis hash to a CycleSummary struct.
func HashToSummary(hash map[string]string) (*CycleSummary, error) {
	cycle, err := strconv.Atoi(hash["cycle"])
	if err != nil {
		return nil, fmt.Errorf("invalid cycle field: %w", err)
	}

	var pairs []PairTotal
	if pairsJSON := hash["pairs"]; pairsJSON != "" {
		if err := json.Unmarshal([]byte(pairsJSON), &pairs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pairs: %w", err)
		}
	}

	var segments []Segment
	if segmentsJSON := hash["segments"]; segmentsJSON != "" {
		if err := json.Unmarshal([]byte(segmentsJSON), &segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
	}

	// Ensure we have empty slices instead of nil for consistency
	if pairs == nil {
		pairs = []PairTotal{}
	}
	if segments == nil {
		segments = []Segment{}
	}

	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	finishedAtMs, _ := strconv.ParseInt(hash["finished_at_ms"], 10, 64)
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	totalMin, _ := strconv.ParseFloat(hash["total_min"], 64)
	aborted, _ := strconv.ParseBool(hash["aborted"])

	return &CycleSummary{
		Cycle:        cycle,
		Pairs:        pairs,
		Segments:     segments,
		StartedAtMs:  startedAtMs,
		FinishedAtMs: finishedAtMs,
		TotalMin:     totalMin,
		Aborted:      aborted,
		AbortReason:  hash["abort_reason"],
		CreatedAtMs:  createdAtMs,
	}, nil
}
