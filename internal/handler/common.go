// Package handler exposes the HTTP API: pass issuance, verification and
// scanning, downloads, attendance statistics and branding management.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/service"
)

// Static asset sub-directories, relative to the /static mount.
const (
	passesPath    = "passes"
	sponsorsPath  = "sponsors"
	poweredByPath = "powered_by"
)

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// respondError maps service errors onto HTTP responses.  Validation
// failures are the caller's fault; everything else is logged and hidden.
func respondError(c echo.Context, log logrus.FieldLogger, err error) error {
	if errors.Is(err, service.ErrValidation) {
		return fail(c, http.StatusBadRequest, validationMessage(err))
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return fail(c, http.StatusInternalServerError, "internal server error")
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
}

// validate runs the struct tags of payload and folds every failing field
// into one ErrValidation.
func validate(ctx context.Context, v *validator.Validate, payload any) error {
	err := v.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		switch f.Tag() {
		case "required":
			msgs[i] = fmt.Sprintf("'%s' is required", f.Field())
		default:
			msgs[i] = fmt.Sprintf("invalid '%s' with value '%v'", f.Field(), f.Value())
		}
	}
	return fmt.Errorf("%w: %s", service.ErrValidation, strings.Join(msgs, ", "))
}

// assetURL builds an absolute URL under /static.  Without a configured
// base URL the scheme and host of the request are used.
func assetURL(c echo.Context, baseURL, dir, name string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return base + "/static/" + dir + "/" + url.PathEscape(name)
}

// pathParam returns the decoded value of a route parameter.  Echo matches
// on URL.RawPath when the request has one, leaving parameters escaped;
// otherwise they come from the already decoded URL.Path.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// NewValidator returns a validator that reports fields by their JSON
// names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
