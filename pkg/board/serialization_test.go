package board

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardSerialization(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		b := &Board{
			Current:     StateHisopadoEnCurso,
			Cycle:       4,
			UpdatedAtMs: 1700000123456,
		}

		hash := BoardToHash(b)
		stringHash := toStringHash(t, hash)

		got, err := HashToBoard(stringHash)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("rejects non-numeric cycle", func(t *testing.T) {
		_, err := HashToBoard(map[string]string{
			"current": string(StateInitial),
			"cycle":   "muchos",
		})
		assert.ErrorContains(t, err, "invalid cycle field")
	})
}

func TestEntrySerialization(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := &AuditEntry{
			ID:     uuid.New().String(),
			TsMs:   1700000123456,
			UID:    "cli:maria",
			Role:   RoleMaterias,
			From:   StateHisopadoEnCurso,
			To:     StateCIPSolicitado,
			Action: "Re-CIP",
			Note:   "recuento alto en válvula 3",
			Cycle:  2,
		}

		got, err := HashToEntry(toStringHash(t, EntryToHash(e)))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})

	t.Run("empty note survives", func(t *testing.T) {
		e := &AuditEntry{
			ID:     uuid.New().String(),
			TsMs:   1,
			UID:    "anon",
			Role:   RoleOperacion,
			From:   StateSinSolicitud,
			To:     StateCIPSolicitado,
			Action: "Solicitar CIP",
			Cycle:  1,
		}

		got, err := HashToEntry(toStringHash(t, EntryToHash(e)))
		require.NoError(t, err)
		assert.Empty(t, got.Note)
	})

	t.Run("rejects non-numeric timestamp", func(t *testing.T) {
		_, err := HashToEntry(map[string]string{
			"ts_ms": "ayer",
			"cycle": "1",
		})
		assert.ErrorContains(t, err, "invalid ts_ms field")
	})
}

func TestSummarySerialization(t *testing.T) {
	t.Run("round trip with compound fields", func(t *testing.T) {
		s := &CycleSummary{
			Cycle: 3,
			Pairs: []PairTotal{
				{Key: "cip_solicitado->cip_en_curso", Label: "Espera inicio CIP", Ms: 90000, Min: 1.5},
				{Key: "cip_en_curso->hisopado_pend", Label: "Duración CIP", Ms: 600000, Min: 10},
			},
			Segments: []Segment{
				{Key: "cip_en_curso->hisopado_pend", Label: "Duración CIP", StartMin: 1.5, EndMin: 11.5, Color: "#0ea5e9"},
			},
			StartedAtMs:  1700000000000,
			FinishedAtMs: 1700000690000,
			TotalMin:     11.5,
			CreatedAtMs:  1700000700000,
		}

		hash, err := SummaryToHash(s)
		require.NoError(t, err)

		got, err := HashToSummary(toStringHash(t, hash))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("aborted flag and reason round trip", func(t *testing.T) {
		s := &CycleSummary{
			Cycle:       5,
			Aborted:     true,
			AbortReason: "parada de planta",
			CreatedAtMs: 1,
		}

		hash, err := SummaryToHash(s)
		require.NoError(t, err)

		got, err := HashToSummary(toStringHash(t, hash))
		require.NoError(t, err)
		assert.True(t, got.Aborted)
		assert.Equal(t, "parada de planta", got.AbortReason)
	})

	t.Run("empty compound fields become empty slices", func(t *testing.T) {
		got, err := HashToSummary(map[string]string{"cycle": "1"})
		require.NoError(t, err)
		assert.NotNil(t, got.Pairs)
		assert.Empty(t, got.Pairs)
		assert.NotNil(t, got.Segments)
		assert.Empty(t, got.Segments)
	})

	t.Run("rejects malformed pairs JSON", func(t *testing.T) {
		_, err := HashToSummary(map[string]string{
			"cycle": "1",
			"pairs": "{not json",
		})
		assert.ErrorContains(t, err, "failed to unmarshal pairs")
	})
}

// toStringHash mirrors what go-redis does when writing a map[string]interface{}
// via HSET and reading it back via HGETALL: every value becomes a string.
func toStringHash(t *testing.T, hash map[string]interface{}) map[string]string {
	t.Helper()
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.FormatInt(int64(val), 10)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			if val {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		default:
			t.Fatalf("unexpected hash value type %T for field %s", v, k)
		}
	}
	return out
}
