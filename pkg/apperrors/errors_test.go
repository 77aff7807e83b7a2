package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_WrappedChain(t *testing.T) {
	sentinel := New(KindNotFound, "api key not found")
	err := fmt.Errorf("revoke: %w", sentinel)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestRateLimited_Message(t *testing.T) {
	err := RateLimited(12 * time.Second)

	assert.Equal(t, "Rate limit exceeded. Please try again after 12 seconds.", err.Error())
	assert.Equal(t, 12*time.Second, err.RetryAfter)
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err.Kind))
}

func TestValidation_CarriesField(t *testing.T) {
	err := fmt.Errorf("issue: %w", Validation("display_name", "Display name is required"))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "display_name", appErr.Field)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(appErr.Kind))
}

func TestWrap_Unwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(KindStoreUnavailable, "store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable: dial tcp: connection refused", err.Error())
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err.Kind))
}

func TestHTTPStatus_Table(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindNotFound:         http.StatusNotFound,
		KindRateLimited:      http.StatusTooManyRequests,
		KindTokenExpired:     http.StatusUnauthorized,
		KindTokenInvalid:     http.StatusUnauthorized,
		KindStoreUnavailable: http.StatusServiceUnavailable,
		KindDelivery:         http.StatusInternalServerError,
		KindUpstream:         http.StatusBadGateway,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
