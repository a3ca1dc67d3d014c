package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tmi/internal/metrics"
)

func serve(t *testing.T, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/eventsub", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, Middleware()(handler)(e.NewContext(req, rec)))
	return rec
}

func TestMiddlewareWithStructuredError(t *testing.T) {
	metrics.HTTPErrors.Reset()

	rec := serve(t, func(echo.Context) error {
		return ForbiddenError("invalid signature")
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid signature", resp.Error)
	assert.Equal(t, TypeForbidden, resp.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPErrors.WithLabelValues("forbidden")))
}

func TestMiddlewareWithStandardError(t *testing.T) {
	metrics.HTTPErrors.Reset()

	rec := serve(t, func(echo.Context) error {
		return errors.New("standard error")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, TypeInternal, resp.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPErrors.WithLabelValues("internal")))
}

func TestMiddlewareWithNoError(t *testing.T) {
	metrics.HTTPErrors.Reset()

	rec := serve(t, func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.HTTPErrors))
}

func TestMiddlewarePassesEchoErrorsThrough(t *testing.T) {
	metrics.HTTPErrors.Reset()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Middleware()(func(echo.Context) error {
		return echo.ErrNotFound
	})(c)

	assert.ErrorIs(t, err, echo.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPErrors.WithLabelValues("validation")))
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusNotFound, TypeValidation},
		{http.StatusUnauthorized, TypeForbidden},
		{http.StatusRequestEntityTooLarge, TypeTooLarge},
		{http.StatusServiceUnavailable, TypeExternal},
		{http.StatusTeapot, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := WrapHTTPError(echo.NewHTTPError(tt.code))
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, http.StatusText(tt.code), err.Message)
		})
	}

	cause := errors.New("inner")
	wrapped := WrapHTTPError(echo.NewHTTPError(http.StatusBadGateway, "upstream").SetInternal(cause))
	assert.Equal(t, "upstream", wrapped.Message)
	assert.Same(t, cause, wrapped.Cause)
}
