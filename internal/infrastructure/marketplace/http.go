// Package marketplace contains the concrete API adapters for the supported
// marketplaces. Each adapter translates the domain's outbound operations into
// provider-specific HTTP calls and classifies failures against the domain's
// error taxonomy.
package marketplace

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from marketplace APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// readBody reads a bounded response body
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", integration.ErrInvalidResponse, err)
	}
	return body, nil
}

// classifyStatus maps an HTTP status code to the domain error taxonomy.
// Returns nil for 2xx responses.
func classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return integration.ErrAuthFailed
	case code == http.StatusNotFound:
		return integration.ErrExternalNotFound
	case code == http.StatusTooManyRequests:
		return &integration.RateLimitError{RetryAfter: parseRetryAfter(resp.Header)}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: HTTP %d", integration.ErrValidationRejected, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", integration.ErrRemoteUnavailable, code)
	default:
		return fmt.Errorf("%w: unexpected HTTP %d", integration.ErrInvalidResponse, code)
	}
}

// parseRetryAfter reads the Retry-After header, supporting both delay-seconds
// and HTTP-date forms. Returns zero when absent or malformed.
func parseRetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ParseDecimal parses a decimal string, returning zero on malformed input
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
