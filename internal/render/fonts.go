package render

import (
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Font sizes in points at 72 DPI, one per text role.
const (
	sizeTitle  = 48
	sizeYear   = 120
	sizeHeader = 28
	sizeBody   = 22
	sizeSmall  = 18
	sizeTiny   = 14
)

// Fonts holds one face per text role.  Source reports where the faces came
// from: "custom" for configured font files, "builtin" for the embedded Go
// fonts and "basic" for the fixed bitmap font of last resort.
type Fonts struct {
	Title  font.Face
	Year   font.Face
	Header font.Face
	Body   font.Face
	Small  font.Face
	Tiny   font.Face
	Source string
}

// LoadFonts resolves the preferred regular and bold font files.  When a
// file is unset, unreadable or not a valid TrueType/OpenType font, every
// role falls back to the embedded Go fonts; rendering never fails because
// of fonts.
func LoadFonts(regularPath, boldPath string) *Fonts {
	if regular, ok := parseFile(regularPath); ok {
		bold, ok := parseFile(boldPath)
		if !ok {
			bold = regular
		}
		if f, ok := buildFaces(regular, bold); ok {
			f.Source = "custom"
			return f
		}
	}
	regular, errR := opentype.Parse(goregular.TTF)
	bold, errB := opentype.Parse(gobold.TTF)
	if errR == nil && errB == nil {
		if f, ok := buildFaces(regular, bold); ok {
			f.Source = "builtin"
			return f
		}
	}
	b := basicfont.Face7x13
	return &Fonts{Title: b, Year: b, Header: b, Body: b, Small: b, Tiny: b, Source: "basic"}
}

func parseFile(path string) (*opentype.Font, bool) {
	if path == "" {
		return nil, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	f, err := opentype.Parse(raw)
	if err != nil {
		return nil, false
	}
	return f, true
}

func buildFaces(regular, bold *opentype.Font) (*Fonts, bool) {
	face := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	var out Fonts
	for _, role := range []struct {
		dst  *font.Face
		f    *opentype.Font
		size float64
	}{
		{&out.Title, regular, sizeTitle},
		{&out.Year, bold, sizeYear},
		{&out.Header, regular, sizeHeader},
		{&out.Body, regular, sizeBody},
		{&out.Small, regular, sizeSmall},
		{&out.Tiny, regular, sizeTiny},
	} {
		fc, err := face(role.f, role.size)
		if err != nil {
			return nil, false
		}
		*role.dst = fc
	}
	return &out, true
}
