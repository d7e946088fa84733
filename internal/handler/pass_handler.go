package handler

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/config"
	"github.com/iliyamo/event-pass-system/internal/model"
	"github.com/iliyamo/event-pass-system/internal/render"
	"github.com/iliyamo/event-pass-system/internal/serial"
	"github.com/iliyamo/event-pass-system/internal/service"
)

// PassManager is the part of the lifecycle manager the pass endpoints use.
type PassManager interface {
	CreatePass(ctx context.Context, in service.CreatePassInput) (service.CreatePassResult, error)
	Verify(ctx context.Context, serial string) (model.Verdict, error)
	Scan(ctx context.Context, serial string) (model.Verdict, error)
	ListPasses(ctx context.Context) ([]model.Pass, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// PassHandler serves issuance, verification, listing, download and stats.
type PassHandler struct {
	Cfg      config.Config
	Passes   PassManager
	Validate *validator.Validate
	Log      logrus.FieldLogger
}

func NewPassHandler(cfg config.Config, passes PassManager, v *validator.Validate, log logrus.FieldLogger) *PassHandler {
	return &PassHandler{Cfg: cfg, Passes: passes, Validate: v, Log: log}
}

// ----- DTOs -----

// CreatePassRequest is the body of POST /api/generate.  Event fields left
// empty take the configured event defaults.
type CreatePassRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	TicketType string `json:"ticketType" validate:"required,max=50"`
	EventName  string `json:"eventName" validate:"max=100"`
	EventDate  string `json:"eventDate" validate:"max=100"`
	Venue      string `json:"venue" validate:"max=200"`
}

type verifyReq struct {
	SerialNumber string `json:"serial_number"`
}

type passView struct {
	model.Pass
	PassURL string `json:"pass_url"`
}

type statsResp struct {
	Success bool `json:"success"`
	model.Stats
}

func (r *CreatePassRequest) applyDefaults(ev config.EventConfig) {
	r.Name = strings.TrimSpace(r.Name)
	r.TicketType = strings.TrimSpace(r.TicketType)
	r.EventName = strings.TrimSpace(r.EventName)
	r.EventDate = strings.TrimSpace(r.EventDate)
	r.Venue = strings.TrimSpace(r.Venue)
	if r.EventName == "" {
		r.EventName = ev.Name
	}
	if r.EventDate == "" {
		r.EventDate = ev.Date
	}
	if r.Venue == "" {
		r.Venue = ev.Venue
	}
}

// Generate issues a pass and returns its serial and image URL.
func (h *PassHandler) Generate(c echo.Context) error {
	var req CreatePassRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.applyDefaults(h.Cfg.Event)
	ctx := c.Request().Context()
	if err := validate(ctx, h.Validate, req); err != nil {
		return respondError(c, h.Log, err)
	}

	res, err := h.Passes.CreatePass(ctx, service.CreatePassInput{
		AttendeeName: req.Name,
		TicketType:   req.TicketType,
		EventName:    req.EventName,
		EventDate:    req.EventDate,
		Venue:        req.Venue,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"serial_number": res.Pass.SerialNumber,
		"id":            res.Pass.ID,
		"pass_url":      assetURL(c, h.Cfg.BaseURL, passesPath, res.Filename),
	})
}

// Scan is the gate endpoint: it verifies the serial and records the entry
// when the pass is admitted.
func (h *PassHandler) Scan(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	v, err := h.Passes.Scan(c.Request().Context(), strings.TrimSpace(req.SerialNumber))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Verify reports the verdict for a serial without recording a scan.
func (h *PassHandler) Verify(c echo.Context) error {
	v, err := h.Passes.Verify(c.Request().Context(), strings.TrimSpace(pathParam(c, "serial")))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// List returns every issued pass with the URL of its image.
func (h *PassHandler) List(c echo.Context) error {
	passes, err := h.Passes.ListPasses(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]passView, 0, len(passes))
	for _, p := range passes {
		out = append(out, passView{Pass: p, PassURL: assetURL(c, h.Cfg.BaseURL, passesPath, render.Filename(p.SerialNumber))})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "passes": out, "total": len(out)})
}

// Download sends the rendered pass image as an attachment.
func (h *PassHandler) Download(c echo.Context) error {
	s := pathParam(c, "serial")
	if !serial.Valid(s) {
		return fail(c, http.StatusBadRequest, "invalid serial number")
	}
	name := render.Filename(s)
	path := filepath.Join(h.Cfg.PassesDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fail(c, http.StatusNotFound, "pass not found")
		}
		return respondError(c, h.Log, err)
	}
	return c.Attachment(path, name)
}

// Stats returns attendance totals.
func (h *PassHandler) Stats(c echo.Context) error {
	st, err := h.Passes.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, statsResp{Success: true, Stats: st})
}
