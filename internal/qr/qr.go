// Package qr encodes the verification payload printed on every pass.
//
// The payload is compact JSON ({"serial":…,"event":…,"name":…}) so any
// generic QR reader can show it.  The symbol uses medium error correction
// and the smallest version that fits; it is drawn black on white with a
// fixed module size and quiet zone.
package qr

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// ModuleSize is the edge length of one QR module in pixels.
	ModuleSize = 8
	// Border is the quiet zone width in modules.
	Border = 2
)

// Payload is the data carried by the QR symbol.
type Payload struct {
	Serial string `json:"serial"`
	Event  string `json:"event"`
	Name   string `json:"name"`
}

// Marshal returns the textual form stored in the symbol.
func (p Payload) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParsePayload decodes text read back from a symbol.
func ParsePayload(text string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, fmt.Errorf("qr payload: %w", err)
	}
	return p, nil
}

// Code is an encoded symbol.
type Code struct {
	Content string
	Version int
	modules [][]bool
}

// Encode builds the symbol for p.
func Encode(p Payload) (*Code, error) {
	content, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	q.DisableBorder = true
	return &Code{Content: content, Version: q.VersionNumber, modules: q.Bitmap()}, nil
}

// Modules is the number of modules per side, excluding the quiet zone.
func (c *Code) Modules() int { return len(c.modules) }

// Image renders the symbol at ModuleSize pixels per module with a Border
// module quiet zone.
func (c *Code) Image() image.Image {
	n := len(c.modules)
	side := (n + 2*Border) * ModuleSize
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for y, row := range c.modules {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + Border) * ModuleSize
			y0 := (y + Border) * ModuleSize
			for dy := 0; dy < ModuleSize; dy++ {
				for dx := 0; dx < ModuleSize; dx++ {
					img.SetGray(x0+dx, y0+dy, color.Gray{Y: 0})
				}
			}
		}
	}
	return img
}

// WritePNG encodes the rendered symbol as PNG.
func (c *Code) WritePNG(w io.Writer) error {
	return png.Encode(w, c.Image())
}
