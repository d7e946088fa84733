// Package render composites the pass image: a light left panel with the QR
// code, vertical labels and the serial, a dark right panel with the event
// details, and optional sponsor and powered-by logos.  Geometry is fixed
// and scaled only by the canvas width and height.
package render

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/iliyamo/event-pass-system/internal/model"
)

// Layout constants in pixels.
const (
	leftPanelWidth = 200
	qrSize         = 140
	qrTop          = 30
	maxSerialChars = 12
	maxSponsors    = 3
	sponsorHeight  = 35
	sponsorSpacing = 50
	poweredHeight  = 30
	cardPadding    = 5
)

var (
	colCanvas    = hex("#F5EFE0")
	colLeftPanel = hex("#E8DCC8")
	colLabel     = hex("#8B7355")
	colBlack     = hex("#000000")
	colDark      = hex("#1A1A1A")
	colGold      = hex("#D4AF37")
	colBright    = hex("#FFD700")
	colWhite     = hex("#FFFFFF")
	colMuted     = hex("#D9D9D9")
)

// Options configures a Renderer.
type Options struct {
	Width        int
	Height       int
	EventYear    string // empty prints the pass's issuance year
	StartTime    string
	TicketLabel  string
	EventLabel   string
	PassesDir    string
	SponsorsDir  string
	PoweredByDir string
	Fonts        *Fonts
	Logger       logrus.FieldLogger
}

// Renderer draws and stores pass images.  Font faces keep internal
// buffers, so Render holds mu for the whole composition.
type Renderer struct {
	opt Options
	mu  sync.Mutex
}

// New returns a Renderer.  Zero sizes take the 1200x400 default and a nil
// Fonts loads the built-in faces.
func New(opt Options) *Renderer {
	if opt.Width <= 0 {
		opt.Width = 1200
	}
	if opt.Height <= 0 {
		opt.Height = 400
	}
	if opt.TicketLabel == "" {
		opt.TicketLabel = "TICKET"
	}
	if opt.Fonts == nil {
		opt.Fonts = LoadFonts("", "")
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	return &Renderer{opt: opt}
}

// Input is everything drawn on one pass.
type Input struct {
	Pass      model.Pass
	QR        image.Image
	Sponsors  []model.Sponsor
	PoweredBy model.PoweredBy
}

// Filename is the asset name of the pass with the given serial.
func Filename(serial string) string { return serial + ".png" }

// CreatePassImage renders in and writes it to the passes directory as
// <serial>.png, returning the file name.
func (r *Renderer) CreatePassImage(in Input) (string, error) {
	img := r.Render(in)
	name := Filename(in.Pass.SerialNumber)
	if err := writePNG(filepath.Join(r.opt.PassesDir, name), img); err != nil {
		return "", fmt.Errorf("save pass image: %w", err)
	}
	return name, nil
}

// Render composites the pass without touching the passes directory.
func (r *Renderer) Render(in Input) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := newCanvas(r.opt.Width, r.opt.Height, colCanvas)
	r.drawLeft(c, in)
	r.drawRight(c, in)
	r.drawSponsors(c, in.Sponsors)
	r.drawPoweredBy(c, in.PoweredBy)
	return c.img
}

func (r *Renderer) drawLeft(c *canvas, in Input) {
	h := r.opt.Height
	f := r.opt.Fonts
	c.fillRect(image.Rect(0, 0, leftPanelWidth, h), colLeftPanel)

	if in.QR != nil {
		scaled := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), in.QR, in.QR.Bounds(), xdraw.Src, nil)
		c.paste(scaled, image.Pt((leftPanelWidth-qrSize)/2, qrTop))
	}

	mid := leftPanelWidth / 2
	for i, ch := range []rune(r.opt.TicketLabel) {
		c.text(mid, 190+i*25, string(ch), f.Small, colLabel, anchorMiddleMiddle)
	}
	for i, ch := range []rune(r.opt.EventLabel) {
		c.text(mid, 310+i*12, string(ch), f.Tiny, colLabel, anchorMiddleMiddle)
	}

	for i := 0; i < 5; i++ {
		x := 15 + i*8
		c.fillRect(image.Rect(x, h-80, x+4, h-19), colBlack)
	}

	for i, ch := range serialGlyphs(in.Pass.SerialNumber) {
		c.text(10, 30+i*28, string(ch), f.Tiny, colBlack, anchorLeftTop)
	}
}

// serialGlyphs strips hyphens and keeps the first maxSerialChars runes.
func serialGlyphs(serial string) []rune {
	rs := []rune(strings.ReplaceAll(serial, "-", ""))
	if len(rs) > maxSerialChars {
		rs = rs[:maxSerialChars]
	}
	return rs
}

func (r *Renderer) drawRight(c *canvas, in Input) {
	w, h := r.opt.Width, r.opt.Height
	f := r.opt.Fonts
	start := leftPanelWidth
	c.fillRect(image.Rect(start, 0, w, h), colDark)

	for _, hx := range []int{start + 180, w - 180} {
		c.polygon([]image.Point{{hx - 25, 90}, {hx, 40}, {hx + 25, 90}}, colGold)
		c.ellipse(image.Rect(hx-30, 85, hx+30, 95), colWhite)
		for _, dy := range []int{50, 60, 70} {
			c.ellipse(image.Rect(hx-3, dy, hx+3, dy+6), colBright)
		}
	}

	cx := (start + w) / 2
	p := in.Pass
	c.text(cx, 60, p.EventName, f.Title, colGold, anchorMiddleMiddle)
	c.text(cx, 150, r.eventYear(p), f.Year, colGold, anchorMiddleMiddle)

	c.strokeRect(image.Rect(start+50, 220, w-50, 251), 2, colGold)
	dateLine := p.EventDate
	if r.opt.StartTime != "" {
		dateLine += " | START AT " + r.opt.StartTime
	}
	c.text(cx, 235, dateLine, f.Body, colWhite, anchorMiddleMiddle)

	c.text(cx, 280, p.Venue, f.Small, colMuted, anchorMiddleMiddle)
	c.text(cx, 310, p.AttendeeName, f.Body, colWhite, anchorMiddleMiddle)
	c.text(cx, 338, p.TicketType, f.Small, colBright, anchorMiddleMiddle)

	for i := 0; i < 10; i++ {
		x := start + 100 + i*90
		c.ellipse(image.Rect(x, 15, x+4, 19), colBright)
		c.ellipse(image.Rect(x, h-19, x+4, h-15), colBright)
	}
}

func (r *Renderer) eventYear(p model.Pass) string {
	if r.opt.EventYear != "" {
		return r.opt.EventYear
	}
	if p.IssuedAt.IsZero() {
		return ""
	}
	return strconv.Itoa(p.IssuedAt.Year())
}

// drawSponsors stacks the most recent sponsors that have a logo on disk,
// newest at the bottom-right, growing upwards.
func (r *Renderer) drawSponsors(c *canvas, sponsors []model.Sponsor) {
	var logos []image.Image
	for i := len(sponsors) - 1; i >= 0 && len(logos) < maxSponsors; i-- {
		sp := sponsors[i]
		logo, ok := r.loadLogo(r.opt.SponsorsDir, sp.Logo, sponsorHeight)
		if !ok {
			r.opt.Logger.WithFields(logrus.Fields{"sponsor": sp.Name, "logo": sp.Logo}).Warn("sponsor logo unavailable, skipping")
			continue
		}
		logos = append(logos, logo)
	}
	top := r.opt.Height - 80
	for i, logo := range logos {
		lw := logo.Bounds().Dx()
		x := r.opt.Width - lw - 60
		y := top - i*sponsorSpacing
		r.card(c, logo, x, y)
		c.text(x-80, y+sponsorHeight/2, "Sponsored by:", r.opt.Fonts.Tiny, colWhite, anchorRightMiddle)
	}
}

func (r *Renderer) drawPoweredBy(c *canvas, pb model.PoweredBy) {
	if pb.Logo == "" {
		return
	}
	logo, ok := r.loadLogo(r.opt.PoweredByDir, pb.Logo, poweredHeight)
	if !ok {
		r.opt.Logger.WithFields(logrus.Fields{"powered_by": pb.Name, "logo": pb.Logo}).Warn("powered-by logo unavailable, skipping")
		return
	}
	x := r.opt.Width - logo.Bounds().Dx() - 20
	y := 10
	r.card(c, logo, x, y)
	c.text(x-85, y+poweredHeight/2, "Powered by", r.opt.Fonts.Tiny, colWhite, anchorRightMiddle)
}

// card pastes logo on a white backing rectangle with cardPadding margin.
func (r *Renderer) card(c *canvas, logo image.Image, x, y int) {
	b := logo.Bounds()
	c.fillRect(image.Rect(x-cardPadding, y-cardPadding, x+b.Dx()+cardPadding+1, y+b.Dy()+cardPadding+1), colWhite)
	c.paste(logo, image.Pt(x, y))
}

// loadLogo resolves name inside dir and scales it to height, preserving
// the aspect ratio.  It reports false when the name is empty, the file is
// missing or it does not decode as an image.
func (r *Renderer) loadLogo(dir, name string, height int) (image.Image, bool) {
	path, ok := resolveAsset(dir, name)
	if !ok {
		return nil, false
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		r.opt.Logger.WithError(err).WithField("logo", name).Warn("logo does not decode")
		return nil, false
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, false
	}
	width := height * sb.Dx() / sb.Dy()
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Over, nil)
	return dst, true
}

// resolveAsset maps a stored file name to a path inside dir.  Only the base
// name is used so records can never point outside the asset directory.
func resolveAsset(dir, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", false
	}
	path := filepath.Join(dir, base)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// writePNG writes img next to path and renames it into place.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pass-*.png")
	if err != nil {
		return err
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
