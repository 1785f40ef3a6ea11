package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// TrendyolConfig holds configuration for Trendyol marketplace API integration
type TrendyolConfig struct {
	// SellerID is the supplier ID assigned by Trendyol
	SellerID string
	// APIKey is the API key from the Trendyol seller panel
	APIKey string
	// APISecret is the API secret paired with the key
	APISecret string
	// WebhookSecret is the shared secret used to sign webhook deliveries
	WebhookSecret string
	// APIBaseURL is the base URL for the Trendyol API (production or sandbox)
	APIBaseURL string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// TrendyolProductionAPIURL is the production API endpoint
	TrendyolProductionAPIURL = "https://api.trendyol.com/sapigw"
	// TrendyolSandboxAPIURL is the sandbox API endpoint
	TrendyolSandboxAPIURL = "https://stageapi.trendyol.com/stagesapigw"
)

// Errors for Trendyol configuration
var (
	ErrTrendyolConfigMissingSellerID  = errors.New("trendyol: seller ID is required")
	ErrTrendyolConfigMissingAPIKey    = errors.New("trendyol: API key is required")
	ErrTrendyolConfigMissingAPISecret = errors.New("trendyol: API secret is required")
)

// NewTrendyolConfig creates a new Trendyol configuration with defaults
func NewTrendyolConfig(sellerID, apiKey, apiSecret, webhookSecret string) *TrendyolConfig {
	return &TrendyolConfig{
		SellerID:       sellerID,
		APIKey:         apiKey,
		APISecret:      apiSecret,
		WebhookSecret:  webhookSecret,
		APIBaseURL:     TrendyolProductionAPIURL,
		IsSandbox:      false,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Trendyol configuration
func (c *TrendyolConfig) Validate() error {
	if c.SellerID == "" {
		return ErrTrendyolConfigMissingSellerID
	}
	if c.APIKey == "" {
		return ErrTrendyolConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrTrendyolConfigMissingAPISecret
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = TrendyolSandboxAPIURL
		} else {
			c.APIBaseURL = TrendyolProductionAPIURL
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// SignWebhook computes the base64 HMAC-SHA256 of a webhook body with the
// shared secret. Trendyol sends this value in the X-Trendyol-Signature header.
func (c *TrendyolConfig) SignWebhook(body []byte) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks a webhook signature using a constant-time comparison
func (c *TrendyolConfig) VerifyWebhook(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(c.SignWebhook(body))
	if err != nil {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
