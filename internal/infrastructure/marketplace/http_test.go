package marketplace

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/meschain/sync/internal/domain/integration"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"absent", "", 0},
		{"delay seconds", "30", 30 * time.Second},
		{"zero seconds", "0", 0},
		{"negative seconds", "-5", 0},
		{"garbage", "soon", 0},
		{"past HTTP date", "Mon, 02 Jan 2006 15:04:05 GMT", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.want, parseRetryAfter(h))
		})
	}

	t.Run("future HTTP date", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", time.Now().Add(90*time.Second).UTC().Format(http.TimeFormat))
		got := parseRetryAfter(h)
		assert.Greater(t, got, 80*time.Second)
		assert.LessOrEqual(t, got, 90*time.Second)
	})
}

func TestClassifyStatus(t *testing.T) {
	resp := func(code int) *http.Response {
		return &http.Response{StatusCode: code, Header: http.Header{}}
	}

	assert.NoError(t, classifyStatus(resp(http.StatusOK)))
	assert.NoError(t, classifyStatus(resp(http.StatusCreated)))
	assert.ErrorIs(t, classifyStatus(resp(http.StatusUnauthorized)), integration.ErrAuthFailed)
	assert.ErrorIs(t, classifyStatus(resp(http.StatusNotFound)), integration.ErrExternalNotFound)
	assert.ErrorIs(t, classifyStatus(resp(http.StatusUnprocessableEntity)), integration.ErrValidationRejected)
	assert.ErrorIs(t, classifyStatus(resp(http.StatusServiceUnavailable)), integration.ErrRemoteUnavailable)
	assert.ErrorIs(t, classifyStatus(resp(http.StatusTooManyRequests)), integration.ErrRateLimited)
}

func TestParseDecimal(t *testing.T) {
	assert.True(t, ParseDecimal("12.50").Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, ParseDecimal("").IsZero())
	assert.True(t, ParseDecimal("abc").IsZero())
}
