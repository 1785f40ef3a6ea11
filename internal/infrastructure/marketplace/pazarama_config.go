package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// PazaramaConfig holds configuration for Pazarama marketplace API integration
type PazaramaConfig struct {
	// APIKey is the client ID from the Pazarama seller panel
	APIKey string
	// APISecret is the client secret paired with the key
	APISecret string
	// WebhookSecret is the shared secret used to sign webhook deliveries
	WebhookSecret string
	// APIBaseURL is the base URL for the Pazarama API
	APIBaseURL string
	// TokenURL is the OAuth token endpoint
	TokenURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// PazaramaProductionAPIURL is the production API endpoint
	PazaramaProductionAPIURL = "https://isortagimapi.pazarama.com"
	// PazaramaTokenURL is the OAuth token endpoint
	PazaramaTokenURL = "https://isortagimgiris.pazarama.com/connect/token"
)

// Errors for Pazarama configuration
var (
	ErrPazaramaConfigMissingAPIKey    = errors.New("pazarama: API key is required")
	ErrPazaramaConfigMissingAPISecret = errors.New("pazarama: API secret is required")
)

// NewPazaramaConfig creates a new Pazarama configuration with defaults
func NewPazaramaConfig(apiKey, apiSecret, webhookSecret string) *PazaramaConfig {
	return &PazaramaConfig{
		APIKey:         apiKey,
		APISecret:      apiSecret,
		WebhookSecret:  webhookSecret,
		APIBaseURL:     PazaramaProductionAPIURL,
		TokenURL:       PazaramaTokenURL,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Pazarama configuration
func (c *PazaramaConfig) Validate() error {
	if c.APIKey == "" {
		return ErrPazaramaConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrPazaramaConfigMissingAPISecret
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = PazaramaProductionAPIURL
	}
	if c.TokenURL == "" {
		c.TokenURL = PazaramaTokenURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// SignWebhook computes the hex HMAC-SHA256 of a webhook body with the shared
// secret. Pazarama sends this value in the X-Pazarama-Signature header.
func (c *PazaramaConfig) SignWebhook(body []byte) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks a webhook signature using a constant-time comparison
func (c *PazaramaConfig) VerifyWebhook(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(c.SignWebhook(body))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
