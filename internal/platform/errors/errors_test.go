package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusAllTypes(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{ForbiddenError("signature"), http.StatusForbidden},
		{TooLargeError("body"), http.StatusRequestEntityTooLarge},
		{InternalError("failed", nil), http.StatusInternalServerError},
		{ExternalError("redis", errors.New("down")), http.StatusBadGateway},
		{&Error{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "forbidden: invalid signature", ForbiddenError("invalid signature").Error())
	assert.Equal(t, "external: join failed: timeout",
		ExternalError("join failed", errors.New("timeout")).Error())
}

func TestWithContext(t *testing.T) {
	err := ValidationError("missing header").
		WithContext("header", "Twitch-Eventsub-Message-Id").
		WithContext("header", "Twitch-Eventsub-Message-Type")

	assert.Len(t, err.Context, 1)
	assert.Equal(t, "Twitch-Eventsub-Message-Type", err.Context["header"])

	nilMap := &Error{Type: TypeValidation}
	nilMap.WithContext("k", "v")
	assert.Equal(t, "v", nilMap.Context["k"])
}

func TestToResponse(t *testing.T) {
	resp := ForbiddenError("stale timestamp").WithContext("age", "11m").ToResponse()

	assert.Equal(t, "stale timestamp", resp.Error)
	assert.Equal(t, TypeForbidden, resp.Type)
	assert.Equal(t, "11m", resp.Context["age"])
}

func TestUnwrapSupportsErrorsIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("handle: %w", ExternalError("dedup", cause))

	assert.ErrorIs(t, err, cause)

	var structured *Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, TypeExternal, structured.Type)
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := ValidationError("bad")
	assert.Same(t, original, AsStructuredError(fmt.Errorf("wrapped: %w", original)))

	plain := AsStructuredError(errors.New("boom"))
	assert.Equal(t, TypeInternal, plain.Type)
	assert.Equal(t, "internal server error", plain.Message)
	assert.EqualError(t, plain.Cause, "boom")
}
