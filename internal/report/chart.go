package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/plantasur/tablero/pkg/board"
)

// Chart geometry. Width grows proportionally with the cycle's duration so
// long cycles stay readable when scrolled.
const (
	pxPerMin   = 40
	minChartW  = 700
	rowHeight  = 36
	rowPadding = 8
	marginPx   = 10
)

// maxPNGBytes is the size threshold above which the lossless encoding is
// abandoned for JPEG. Report endpoints commonly cap embedded payloads
// around 1 MB.
const maxPNGBytes = 900 * 1024

var (
	chartBackground = color.White
	fallbackBar     = color.RGBA{R: 0x64, G: 0x74, B: 0x8b, A: 0xff} // slate, for segments without a color hint
)

// RenderTimeline draws a summary's segments as horizontal floating bars, one
// row per pair label, anchored at minute 0. Segments sharing a label (rework
// rounds) land on the same row.
func RenderTimeline(summary *board.CycleSummary) image.Image {
	rows := []string{}
	rowIndex := map[string]int{}
	for _, seg := range summary.Segments {
		if _, ok := rowIndex[seg.Label]; !ok {
			rowIndex[seg.Label] = len(rows)
			rows = append(rows, seg.Label)
		}
	}

	totalSpanMin := 0.0
	for _, seg := range summary.Segments {
		if seg.EndMin > totalSpanMin {
			totalSpanMin = seg.EndMin
		}
	}

	width := int(totalSpanMin*pxPerMin) + 2*marginPx
	if width < minChartW {
		width = minChartW
	}
	height := len(rows)*rowHeight + 2*marginPx
	if height < rowHeight+2*marginPx {
		height = rowHeight + 2*marginPx
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: chartBackground}, image.Point{}, draw.Src)

	for _, seg := range summary.Segments {
		row := rowIndex[seg.Label]
		x0 := marginPx + int(seg.StartMin*pxPerMin)
		x1 := marginPx + int(seg.EndMin*pxPerMin)
		if x1 <= x0 {
			// Zero-length interval still gets a visible sliver.
			x1 = x0 + 1
		}
		y0 := marginPx + row*rowHeight + rowPadding/2
		y1 := y0 + rowHeight - rowPadding

		bar := parseHexColor(seg.Color)
		draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{C: bar}, image.Point{}, draw.Src)
	}

	return img
}

// EncodeChartDataURL encodes the chart as a data URL: PNG first (lossless),
// falling back to JPEG when the PNG exceeds the size threshold.
func EncodeChartDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode chart PNG: %w", err)
	}

	mime := "image/png"
	if buf.Len() > maxPNGBytes {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return "", fmt.Errorf("failed to encode chart JPEG: %w", err)
		}
		mime = "image/jpeg"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// parseHexColor parses a "#rrggbb" color hint, returning a neutral bar color
// for anything it cannot parse.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return fallbackBar
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
