package report

import (
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantasur/tablero/pkg/board"
)

func TestRenderTimeline(t *testing.T) {
	t.Run("empty summary yields the minimum canvas", func(t *testing.T) {
		img := RenderTimeline(&board.CycleSummary{Cycle: 1})
		b := img.Bounds()
		assert.Equal(t, minChartW, b.Dx())
		assert.Equal(t, rowHeight+2*marginPx, b.Dy())
	})

	t.Run("width scales with the cycle span", func(t *testing.T) {
		s := &board.CycleSummary{
			Cycle: 1,
			Segments: []board.Segment{
				{Label: "Duración CIP", StartMin: 0, EndMin: 60, Color: "#2563eb"},
			},
		}
		img := RenderTimeline(s)
		assert.Equal(t, 60*pxPerMin+2*marginPx, img.Bounds().Dx())
	})

	t.Run("segments sharing a label share a row", func(t *testing.T) {
		s := &board.CycleSummary{
			Cycle: 1,
			Segments: []board.Segment{
				{Label: "Duración CIP", StartMin: 0, EndMin: 5, Color: "#2563eb"},
				{Label: "Duración CIP", StartMin: 10, EndMin: 15, Color: "#2563eb"},
				{Label: "Duración hisopado", StartMin: 6, EndMin: 9, Color: "#16a34a"},
			},
		}
		img := RenderTimeline(s)
		// Two distinct labels, two rows.
		assert.Equal(t, 2*rowHeight+2*marginPx, img.Bounds().Dy())

		// Both CIP segments paint blue pixels on row 0.
		y := marginPx + rowHeight/2
		blue := color.RGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
		assert.Equal(t, blue, img.At(marginPx+2*pxPerMin, y))
		assert.Equal(t, blue, img.At(marginPx+12*pxPerMin, y))
	})

	t.Run("zero-length segment still paints a sliver", func(t *testing.T) {
		s := &board.CycleSummary{
			Cycle: 1,
			Segments: []board.Segment{
				{Label: "Demora inicio CIP", StartMin: 0, EndMin: 0, Color: "#f59e0b"},
			},
		}
		img := RenderTimeline(s)
		y := marginPx + rowHeight/2
		amber := color.RGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff}
		assert.Equal(t, amber, img.At(marginPx, y))
	})
}

func TestEncodeChartDataURL(t *testing.T) {
	t.Run("small charts stay PNG", func(t *testing.T) {
		img := RenderTimeline(&board.CycleSummary{Cycle: 1})
		url, err := EncodeChartDataURL(img)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), "got prefix %q", url[:30])
	})

	t.Run("oversized charts fall back to JPEG", func(t *testing.T) {
		// Random noise defeats PNG compression, pushing it past the
		// threshold; the encoder must switch to JPEG.
		rng := rand.New(rand.NewSource(1))
		img := image.NewRGBA(image.Rect(0, 0, 1200, 500))
		for i := range img.Pix {
			img.Pix[i] = uint8(rng.Intn(256))
		}

		url, err := EncodeChartDataURL(img)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"), "got prefix %q", url[:30])
	})
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}, parseHexColor("#2563eb"))
	assert.Equal(t, fallbackBar, parseHexColor(""))
	assert.Equal(t, fallbackBar, parseHexColor("blue"))
}
