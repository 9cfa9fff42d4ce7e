package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("insufficient stock")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("order %s not found", "x")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("checkout failed: %w", Conflict("coupon usage limit reached"))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("quantity must be > 0"), http.StatusBadRequest},
		{NotFound("no such coupon"), http.StatusNotFound},
		{Conflict("cannot transition"), http.StatusUnprocessableEntity},
		{Permission("not your order"), http.StatusForbidden},
		{External(errors.New("timeout"), "provider refund failed"), http.StatusBadGateway},
		{Signature("signature mismatch"), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestExternal_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := External(cause, "refund call failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "refund call failed")
	assert.Contains(t, err.Error(), "connection refused")
}
