package handler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/iliyamo/event-pass-system/internal/config"
	"github.com/iliyamo/event-pass-system/internal/model"
	"github.com/iliyamo/event-pass-system/internal/service"
)

// BrandingManager is the part of the lifecycle manager the branding
// endpoints use.
type BrandingManager interface {
	AddSponsor(ctx context.Context, name, logo string) (model.Sponsor, error)
	ListSponsors(ctx context.Context) ([]model.Sponsor, error)
	RemoveSponsor(ctx context.Context, name string) (int, error)
	UpdatePoweredBy(ctx context.Context, name, logo string) (model.PoweredBy, error)
	GetPoweredBy(ctx context.Context) (model.PoweredBy, error)
}

// SponsorHandler manages sponsor logos and the powered-by branding.
type SponsorHandler struct {
	Cfg      config.Config
	Branding BrandingManager
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewSponsorHandler(cfg config.Config, b BrandingManager, log logrus.FieldLogger) *SponsorHandler {
	return &SponsorHandler{Cfg: cfg, Branding: b, Log: log, Now: time.Now}
}

type sponsorView struct {
	model.Sponsor
	LogoURL string `json:"logo_url"`
}

type poweredByView struct {
	model.PoweredBy
	LogoURL string `json:"logo_url,omitempty"`
}

var imageExt = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
}

// saveLogo validates an uploaded logo and stores it in dir under a unique
// name starting with prefix.  Oversized or undecodable uploads fail with
// ErrValidation.
func (h *SponsorHandler) saveLogo(fh *multipart.FileHeader, dir, prefix string) (string, error) {
	limit := h.Cfg.MaxUploadBytes
	tooLarge := fmt.Errorf("%w: logo larger than %d bytes", service.ErrValidation, limit)
	if limit > 0 && fh.Size > limit {
		return "", tooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", tooLarge
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	ext, ok := imageExt[format]
	if err != nil || !ok {
		return "", fmt.Errorf("%w: logo is not a supported image", service.ErrValidation)
	}

	name := fmt.Sprintf("%s_%s_%s%s", prefix, h.Now().Format("20060102150405"), uuid.NewString()[:8], ext)
	tmp := filepath.Join(dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return name, nil
}

// upload reads the name field and logo file shared by both branding forms.
func (h *SponsorHandler) upload(c echo.Context, dir, prefix string) (name, logo string, err error) {
	name = strings.TrimSpace(c.FormValue("name"))
	fh, ferr := c.FormFile("logo")
	if name == "" || ferr != nil {
		return "", "", fmt.Errorf("%w: name and logo required", service.ErrValidation)
	}
	logo, err = h.saveLogo(fh, dir, prefix)
	return name, logo, err
}

// AddSponsor stores an uploaded logo and records the sponsor.
func (h *SponsorHandler) AddSponsor(c echo.Context) error {
	name, logo, err := h.upload(c, h.Cfg.SponsorsDir, "sponsor")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	sp, err := h.Branding.AddSponsor(c.Request().Context(), name, logo)
	if err != nil {
		_ = os.Remove(filepath.Join(h.Cfg.SponsorsDir, logo))
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Sponsor added successfully",
		"sponsor": sponsorView{Sponsor: sp, LogoURL: assetURL(c, h.Cfg.BaseURL, sponsorsPath, sp.Logo)},
	})
}

// ListSponsors returns sponsors in the order they were added.
func (h *SponsorHandler) ListSponsors(c echo.Context) error {
	sponsors, err := h.Branding.ListSponsors(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]sponsorView, 0, len(sponsors))
	for _, sp := range sponsors {
		out = append(out, sponsorView{Sponsor: sp, LogoURL: assetURL(c, h.Cfg.BaseURL, sponsorsPath, sp.Logo)})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "sponsors": out})
}

// RemoveSponsor deletes every sponsor with the given name.  Logo files are
// left on disk.
func (h *SponsorHandler) RemoveSponsor(c echo.Context) error {
	n, err := h.Branding.RemoveSponsor(c.Request().Context(), pathParam(c, "name"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Sponsor removed", "removed": n})
}

// UpdatePoweredBy replaces the powered-by name and logo.
func (h *SponsorHandler) UpdatePoweredBy(c echo.Context) error {
	name, logo, err := h.upload(c, h.Cfg.PoweredByDir, "powered_by")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	pb, err := h.Branding.UpdatePoweredBy(c.Request().Context(), name, logo)
	if err != nil {
		_ = os.Remove(filepath.Join(h.Cfg.PoweredByDir, logo))
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "Powered by updated successfully",
		"powered_by": h.poweredByView(c, pb),
	})
}

// GetPoweredBy returns the current powered-by branding.
func (h *SponsorHandler) GetPoweredBy(c echo.Context) error {
	pb, err := h.Branding.GetPoweredBy(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, h.poweredByView(c, pb))
}

func (h *SponsorHandler) poweredByView(c echo.Context, pb model.PoweredBy) poweredByView {
	v := poweredByView{PoweredBy: pb}
	if pb.Logo != "" {
		v.LogoURL = assetURL(c, h.Cfg.BaseURL, poweredByPath, pb.Logo)
	}
	return v
}
