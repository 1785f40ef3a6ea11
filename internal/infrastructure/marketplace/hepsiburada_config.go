package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// HepsiburadaConfig holds configuration for Hepsiburada marketplace API integration
type HepsiburadaConfig struct {
	// MerchantID is the merchant UUID assigned by Hepsiburada
	MerchantID string
	// Username is the integration API username
	Username string
	// Password is the integration API password
	Password string
	// WebhookSecret is the shared secret used to sign webhook deliveries
	WebhookSecret string
	// APIBaseURL is the base URL for the Hepsiburada API (production or sandbox)
	APIBaseURL string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// HepsiburadaProductionAPIURL is the production API endpoint
	HepsiburadaProductionAPIURL = "https://listing-external.hepsiburada.com"
	// HepsiburadaSandboxAPIURL is the sandbox API endpoint
	HepsiburadaSandboxAPIURL = "https://listing-external-sit.hepsiburada.com"
)

// Errors for Hepsiburada configuration
var (
	ErrHepsiburadaConfigMissingMerchantID = errors.New("hepsiburada: merchant ID is required")
	ErrHepsiburadaConfigMissingUsername   = errors.New("hepsiburada: username is required")
	ErrHepsiburadaConfigMissingPassword   = errors.New("hepsiburada: password is required")
)

// NewHepsiburadaConfig creates a new Hepsiburada configuration with defaults
func NewHepsiburadaConfig(merchantID, username, password, webhookSecret string) *HepsiburadaConfig {
	return &HepsiburadaConfig{
		MerchantID:     merchantID,
		Username:       username,
		Password:       password,
		WebhookSecret:  webhookSecret,
		APIBaseURL:     HepsiburadaProductionAPIURL,
		IsSandbox:      false,
		TimeoutSeconds: 30,
	}
}

// Validate validates the Hepsiburada configuration
func (c *HepsiburadaConfig) Validate() error {
	if c.MerchantID == "" {
		return ErrHepsiburadaConfigMissingMerchantID
	}
	if c.Username == "" {
		return ErrHepsiburadaConfigMissingUsername
	}
	if c.Password == "" {
		return ErrHepsiburadaConfigMissingPassword
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = HepsiburadaSandboxAPIURL
		} else {
			c.APIBaseURL = HepsiburadaProductionAPIURL
		}
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// SignWebhook computes the hex HMAC-SHA256 of a webhook body with the shared
// secret. Hepsiburada sends this value in the X-HB-Signature header.
func (c *HepsiburadaConfig) SignWebhook(body []byte) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks a webhook signature using a constant-time comparison
func (c *HepsiburadaConfig) VerifyWebhook(body []byte, signature string) bool {
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
