package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAnalyst/internal/apperr"
)

func TestNewValidationWrap(t *testing.T) {
	inner := fmt.Errorf("parse failed")
	err := apperr.NewValidationWrap("invalid question", inner)

	assert.Equal(t, "invalid question: parse failed", err.Error())
	assert.True(t, errors.Is(err, inner))
}

func TestStoreError_SurvivesFmtWrapping(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := fmt.Errorf("run fetch cycle: %w", apperr.NewStore("insert", inner))

	var se *apperr.StoreError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, wrapped, inner)
}

func TestShortlistFailure_Message(t *testing.T) {
	err := &apperr.ShortlistFailure{Reason: "no valid ids"}
	assert.Equal(t, "shortlist: no valid ids", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestGlobalErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: apperr.NewValidation("question is required"), want: http.StatusBadRequest},
		{name: "invalid index", err: fmt.Errorf("toggle: %w", apperr.ErrInvalidIndex), want: http.StatusBadRequest},
		{name: "expired", err: apperr.ErrSessionExpired, want: http.StatusGone},
		{name: "busy", err: apperr.ErrScopeBusy, want: http.StatusConflict},
		{name: "composition", err: apperr.NewComposition(errors.New("timeout")), want: http.StatusBadGateway},
		{name: "store", err: apperr.NewStore("recent", errors.New("down")), want: http.StatusServiceUnavailable},
		{name: "echo http error", err: echo.NewHTTPError(http.StatusNotFound, "missing"), want: http.StatusNotFound},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	handler := apperr.GlobalErrorHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handler(tt.err, c)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
