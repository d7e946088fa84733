package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// anchor selects which point of a text's bounding box lands on the given
// coordinate: the first letter is horizontal (l, m, r), the second is
// vertical (t, m).
type anchor string

const (
	anchorLeftTop      anchor = "lt"
	anchorMiddleMiddle anchor = "mm"
	anchorRightMiddle  anchor = "rm"
)

// canvas wraps an RGBA image with the drawing primitives the pass layout
// needs.
type canvas struct {
	img *image.RGBA
}

func newCanvas(w, h int, bg color.Color) *canvas {
	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
	c.fillRect(c.img.Bounds(), bg)
	return c
}

func (c *canvas) fillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// strokeRect draws a rectangle outline of the given width inside r.
func (c *canvas) strokeRect(r image.Rectangle, width int, col color.Color) {
	c.fillRect(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), col)
	c.fillRect(image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), col)
	c.fillRect(image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), col)
	c.fillRect(image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// polygon fills the closed path through pts.
func (c *canvas) polygon(pts []image.Point, col color.Color) {
	if len(pts) < 3 {
		return
	}
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

// ellipse fills the ellipse inscribed in r.
func (c *canvas) ellipse(r image.Rectangle, col color.Color) {
	const segments = 48
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	rx := float64(r.Dx()) / 2
	ry := float64(r.Dy()) / 2
	b := c.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		x := float32(cx + rx*math.Cos(a))
		y := float32(cy + ry*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

// paste draws src with its top-left corner at pt, honouring alpha.
func (c *canvas) paste(src image.Image, pt image.Point) {
	r := image.Rectangle{Min: pt, Max: pt.Add(src.Bounds().Size())}
	draw.Draw(c.img, r, src, src.Bounds().Min, draw.Over)
}

// text draws s so that the anchor point of its box sits at (x, y).
func (c *canvas) text(x, y int, s string, face font.Face, col color.Color, a anchor) {
	d := &font.Drawer{Dst: c.img, Src: image.NewUniform(col), Face: face}
	width := d.MeasureString(s).Round()
	m := face.Metrics()
	ascent, descent := m.Ascent.Round(), m.Descent.Round()

	switch a[0] {
	case 'm':
		x -= width / 2
	case 'r':
		x -= width
	}
	baseline := y + ascent
	if a[1] == 'm' {
		baseline = y + (ascent-descent)/2
	}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}

// hex parses a #RRGGBB colour; it panics on malformed input because every
// colour is a compile-time constant of the layout.
func hex(s string) color.RGBA {
	var c color.RGBA
	c.A = 0xff
	if len(s) != 7 || s[0] != '#' {
		panic("render: bad colour " + s)
	}
	nib := func(b byte) uint8 {
		switch {
		case b >= '0' && b <= '9':
			return b - '0'
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10
		}
		panic("render: bad colour " + s)
	}
	c.R = nib(s[1])<<4 | nib(s[2])
	c.G = nib(s[3])<<4 | nib(s[4])
	c.B = nib(s[5])<<4 | nib(s[6])
	return c
}
