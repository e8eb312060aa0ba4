package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *ValidationError
		if errors.As(err, &ve) {
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "title": "validation error"})
			return
		}

		switch {
		case errors.Is(err, ErrInvalidIndex):
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		case errors.Is(err, ErrSessionExpired):
			_ = c.JSON(http.StatusGone, map[string]string{"error": "selection expired, start a new one"})
			return
		case errors.Is(err, ErrScopeBusy):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": "still working on your previous request"})
			return
		}

		var ce *CompositionError
		if errors.As(err, &ce) {
			slog.Error("Composition failed", "error", err)
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": "sorry, I could not put an answer together right now"})
			return
		}

		var se *StoreError
		if errors.As(err, &se) {
			slog.Error("Store failed", "op", se.Op, "error", err)
			_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable, try again later"})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		slog.Error("Unhandled error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
