package ticket

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas dimensions of the rendered boarding pass.
const (
	passWidth  = 1000
	passHeight = 400
	// stubX is where the detachable stub section begins.
	stubX = 720
)

var (
	passBackground = color.RGBA{R: 0xfa, G: 0xf5, B: 0xee, A: 0xff}
	passInk        = color.RGBA{R: 0x20, G: 0x24, B: 0x2a, A: 0xff}
	passAccent     = color.RGBA{R: 0x2b, G: 0x57, B: 0x8a, A: 0xff}
)

// field places one label/value pair on the canvas.
type field struct {
	label string
	value func(Pass) string
	x, y  int
}

// Main section and stub layouts. Positions follow the printed form of the
// pass, not any particular alignment grid.
var passFields = []field{
	{"PASSENGER", func(p Pass) string { return p.PassengerName }, 40, 90},
	{"FROM", func(p Pass) string { return p.DepartureCity }, 40, 150},
	{"TO", func(p Pass) string { return p.DestinationCity }, 40, 210},
	{"DATE", func(p Pass) string { return p.Date }, 300, 150},
	{"TIME", func(p Pass) string { return p.Time }, 300, 210},
	{"FLIGHT", func(p Pass) string { return p.Flight }, 470, 150},
	{"SEATS", func(p Pass) string { return p.Seats }, 470, 210},
	{"BOARD", func(p Pass) string { return p.Board }, 40, 290},
	{"LAST CALL", func(p Pass) string { return p.LastCall }, 300, 290},

	{"PASSENGER", func(p Pass) string { return p.PassengerName }, stubX + 30, 90},
	{"FLIGHT", func(p Pass) string { return p.Flight }, stubX + 30, 150},
	{"DATE", func(p Pass) string { return p.Date }, stubX + 30, 210},
	{"TIME", func(p Pass) string { return p.Time }, stubX + 30, 270},
	{"SEATS", func(p Pass) string { return p.Seats }, stubX + 30, 330},
}

// Render draws the boarding pass and returns it as PNG bytes.
func (p Pass) Render() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, passWidth, passHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{passBackground}, image.Point{}, draw.Src)

	// Accent header band and stub divider.
	draw.Draw(img, image.Rect(0, 0, passWidth, 40), &image.Uniform{passAccent}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(stubX, 40, stubX+2, passHeight), &image.Uniform{passAccent}, image.Point{}, draw.Src)

	drawText(img, "BOARDING PASS", 40, 26, color.White)
	drawText(img, "FLIGHTDESK AIR", stubX+30, 26, color.White)

	for _, f := range passFields {
		drawText(img, f.label, f.x, f.y-16, passAccent)
		drawText(img, f.value(p), f.x, f.y, passInk)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("Pass Render PNG encode failed", "error", err)
		return nil, fmt.Errorf("failed to encode boarding pass: %w", err)
	}
	slog.Debug("Pass Render succeeded", "bytes", buf.Len())
	return buf.Bytes(), nil
}

// drawText draws s with the bundled bitmap face at the given baseline origin.
func drawText(img *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
