package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	// Marketplace errors
	ErrMarketplaceNotConfigured = errors.New("integration: marketplace not configured")
	ErrMarketplaceNotEnabled    = errors.New("integration: marketplace not enabled")
	ErrAdapterNotRegistered     = errors.New("integration: no adapter registered for marketplace")

	// Adapter call errors, classified at the adapter boundary so callers can
	// branch on retry eligibility without string matching
	ErrAuthFailed         = errors.New("integration: marketplace authentication failed")
	ErrValidationRejected = errors.New("integration: payload rejected by marketplace")
	ErrRateLimited        = errors.New("integration: marketplace rate limited")
	ErrRemoteUnavailable  = errors.New("integration: marketplace temporarily unavailable")
	ErrInvalidResponse    = errors.New("integration: invalid marketplace response")
	ErrExternalNotFound   = errors.New("integration: external entity not found on marketplace")

	// Webhook errors
	ErrInvalidSignature = errors.New("integration: invalid webhook signature")
	ErrDuplicateEvent   = errors.New("integration: webhook event already processed")
	ErrUnknownEventType = errors.New("integration: unknown webhook event type")

	// Mapping errors
	ErrMappingNotFound    = errors.New("integration: mapping not found")
	ErrMappingInvalid     = errors.New("integration: invalid mapping")
	ErrTransitionConflict = errors.New("integration: mapping status changed concurrently")
)

// RateLimitError wraps ErrRateLimited with the retry-after interval advertised
// by the marketplace (zero when the provider did not send one).
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("integration: marketplace rate limited, retry after %s", e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold for RateLimitError values
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterOf extracts the advertised retry-after from a rate limit error.
// Returns false when err is not a rate limit error.
func RetryAfterOf(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimited) {
		return 0, true
	}
	return 0, false
}

// IsRetryable returns true for transient adapter errors that are eligible for
// retry with backoff
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRemoteUnavailable)
}

// IsFatal returns true for adapter errors that must not be retried
// automatically (credentials or payload need correction first)
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrValidationRejected)
}

// ---------------------------------------------------------------------------
// MarketplaceCode
// ---------------------------------------------------------------------------

// MarketplaceCode identifies an external marketplace
type MarketplaceCode string

const (
	// MarketplaceCodeTrendyol represents the Trendyol marketplace
	MarketplaceCodeTrendyol MarketplaceCode = "TRENDYOL"
	// MarketplaceCodeHepsiburada represents the Hepsiburada marketplace
	MarketplaceCodeHepsiburada MarketplaceCode = "HEPSIBURADA"
	// MarketplaceCodePazarama represents the Pazarama marketplace
	MarketplaceCodePazarama MarketplaceCode = "PAZARAMA"
	// MarketplaceCodeN11 represents the N11 marketplace
	MarketplaceCodeN11 MarketplaceCode = "N11"
	// MarketplaceCodeOzon represents the Ozon marketplace
	MarketplaceCodeOzon MarketplaceCode = "OZON"
)

// IsValid returns true if the marketplace code is valid
func (c MarketplaceCode) IsValid() bool {
	switch c {
	case MarketplaceCodeTrendyol, MarketplaceCodeHepsiburada, MarketplaceCodePazarama,
		MarketplaceCodeN11, MarketplaceCodeOzon:
		return true
	default:
		return false
	}
}

// String returns the string representation of MarketplaceCode
func (c MarketplaceCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the marketplace
func (c MarketplaceCode) DisplayName() string {
	switch c {
	case MarketplaceCodeTrendyol:
		return "Trendyol"
	case MarketplaceCodeHepsiburada:
		return "Hepsiburada"
	case MarketplaceCodePazarama:
		return "Pazarama"
	case MarketplaceCodeN11:
		return "N11"
	case MarketplaceCodeOzon:
		return "Ozon"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// OrderStatus
// ---------------------------------------------------------------------------

// OrderStatus is the canonical order status shared by all marketplaces.
// Adapters translate marketplace-specific statuses into these values.
type OrderStatus string

const (
	// OrderStatusCreated indicates the order was placed, payment pending
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusApproved indicates payment received, pending fulfilment
	OrderStatusApproved OrderStatus = "APPROVED"
	// OrderStatusPicking indicates the order is being prepared
	OrderStatusPicking OrderStatus = "PICKING"
	// OrderStatusShipped indicates the order has been handed to the carrier
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the order reached the buyer
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusReturned indicates the order was returned by the buyer
	OrderStatusReturned OrderStatus = "RETURNED"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusApproved, OrderStatusPicking,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a terminal state
func (s OrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// RequiresShipment returns true if pushing this status needs tracking info
func (s OrderStatus) RequiresShipment() bool {
	return s == OrderStatusShipped
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// Session represents an authenticated marketplace session
type Session struct {
	// MarketplaceCode identifies which marketplace this session is for
	MarketplaceCode MarketplaceCode
	// Token is the bearer/access token to attach to API calls
	Token string
	// ExpiresAt is when the token stops being valid (zero for static keys)
	ExpiresAt time.Time
}

// Expired returns true if the session token has expired
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// ProductPush is the outbound product payload sent to a marketplace
type ProductPush struct {
	// LocalID is our internal product ID
	LocalID uuid.UUID
	// SKU is our internal stock code
	SKU string
	// Barcode is the product barcode (primary external matching key)
	Barcode string
	// Title is the product name
	Title string
	// Description is the product description
	Description string
	// Brand is the product brand name
	Brand string
	// CategoryID is the marketplace category ID
	CategoryID string
	// Price is the selling price
	Price decimal.Decimal
	// ListPrice is the strike-through/compare price
	ListPrice decimal.Decimal
	// Quantity is the available stock quantity
	Quantity int64
	// VATRate is the VAT percentage applied to the price
	VATRate int
	// OnSale indicates if the product should be listed for sale
	OnSale bool
	// ImageURLs contains product image URLs
	ImageURLs []string
}

// UpsertResult is the outcome of a product create/update call
type UpsertResult struct {
	// ExternalID is the product ID assigned by the marketplace
	ExternalID string
	// RemoteStatus is the listing status reported by the marketplace
	RemoteStatus string
}

// RawOrder represents an order as reported by a marketplace
type RawOrder struct {
	// ExternalOrderID is the order ID on the marketplace
	ExternalOrderID string
	// MarketplaceCode identifies which marketplace this order is from
	MarketplaceCode MarketplaceCode
	// Status is the canonical order status
	Status OrderStatus
	// BuyerName is the buyer's display name
	BuyerName string
	// City is the delivery city
	City string
	// TotalAmount is what the buyer paid
	TotalAmount decimal.Decimal
	// Currency is the payment currency
	Currency string
	// Lines contains the order line items
	Lines []RawOrderLine
	// OrderedAt is when the order was placed on the marketplace
	OrderedAt time.Time
	// RawData is the original marketplace response (JSON)
	RawData string
}

// RawOrderLine represents a line item in a marketplace order
type RawOrderLine struct {
	// ExternalLineID is the line ID on the marketplace
	ExternalLineID string
	// ExternalProductID is the product ID on the marketplace
	ExternalProductID string
	// SKU is the merchant stock code echoed back by the marketplace
	SKU string
	// Quantity is the ordered quantity
	Quantity int64
	// UnitPrice is the unit price
	UnitPrice decimal.Decimal
}

// OrderPage is one page of orders pulled from a marketplace.
// Cursor is opaque to callers; passing NextCursor back resumes the listing.
type OrderPage struct {
	Orders     []RawOrder
	NextCursor string
	HasMore    bool
}

// Shipment carries tracking info for shipped-status pushes
type Shipment struct {
	Carrier        string
	TrackingNumber string
}

// ---------------------------------------------------------------------------
// Inbound events
// ---------------------------------------------------------------------------

// InboundEventType classifies webhook notifications after translation
type InboundEventType string

const (
	// InboundOrderCreated indicates a new order was placed on the marketplace
	InboundOrderCreated InboundEventType = "ORDER_CREATED"
	// InboundOrderStatusChanged indicates an order changed status remotely
	InboundOrderStatusChanged InboundEventType = "ORDER_STATUS_CHANGED"
	// InboundStockChanged indicates stock was edited on the marketplace dashboard
	InboundStockChanged InboundEventType = "STOCK_CHANGED"
	// InboundPriceChanged indicates price was edited on the marketplace dashboard
	InboundPriceChanged InboundEventType = "PRICE_CHANGED"
)

// IsValid returns true if the event type is valid
func (t InboundEventType) IsValid() bool {
	switch t {
	case InboundOrderCreated, InboundOrderStatusChanged, InboundStockChanged, InboundPriceChanged:
		return true
	default:
		return false
	}
}

// String returns the string representation of InboundEventType
func (t InboundEventType) String() string {
	return string(t)
}

// InboundEvent is the canonical translation of a marketplace webhook payload
type InboundEvent struct {
	// EventID is the marketplace-supplied event ID used for deduplication
	EventID string
	// Type classifies the notification
	Type InboundEventType
	// MarketplaceCode identifies the source marketplace
	MarketplaceCode MarketplaceCode
	// ExternalID is the marketplace-side ID of the affected order or product
	ExternalID string
	// Status carries the new order status for status-change events
	Status OrderStatus
	// Quantity carries the new stock level for stock push-back events
	Quantity *int64
	// Price carries the new price for price push-back events
	Price *decimal.Decimal
	// Order carries the full order for order-created events
	Order *RawOrder
	// OccurredAt is when the event happened on the marketplace
	OccurredAt time.Time
}

// ---------------------------------------------------------------------------
// Adapter Port Interface
// ---------------------------------------------------------------------------

// Adapter defines the port interface for external marketplaces.
// This interface follows the Ports & Adapters pattern - it's defined in the
// domain layer, and concrete implementations (Trendyol, Hepsiburada, Pazarama)
// are in the infrastructure layer.
//
// Adapters hold no local state beyond configuration; all errors are returned
// classified against the sentinel errors above. Serialization of concurrent
// calls for the same entity pair is the orchestrator's job, not the adapter's.
type Adapter interface {
	// MarketplaceCode returns the marketplace this adapter handles
	MarketplaceCode() MarketplaceCode

	// Authenticate validates credentials against the remote service and
	// returns a session. Fails with ErrAuthFailed on missing, malformed or
	// rejected credentials.
	Authenticate(ctx context.Context) (*Session, error)

	// UpsertProduct creates the product when externalID is empty, updates it
	// otherwise. Returns the marketplace-assigned external ID.
	UpsertProduct(ctx context.Context, product *ProductPush, externalID string) (*UpsertResult, error)

	// UpdateStock pushes a stock level for an already-created product
	UpdateStock(ctx context.Context, externalID string, quantity int64) error

	// UpdatePrice pushes a price for an already-created product
	UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error

	// UpdateOrderStatus pushes an order status change to the marketplace.
	// shipment is required when status is SHIPPED.
	UpdateOrderStatus(ctx context.Context, externalOrderID string, status OrderStatus, shipment *Shipment) error

	// ListOrders pulls orders created since the given time. An empty cursor
	// starts from the beginning; the listing is finite and restartable from
	// the returned NextCursor.
	ListOrders(ctx context.Context, since time.Time, cursor string) (*OrderPage, error)

	// VerifyWebhookSignature checks the signature header against the raw
	// body using the shared secret. Uses constant-time comparison and
	// returns false (never an error) on malformed signatures.
	VerifyWebhookSignature(body []byte, signatureHeader string) bool

	// SignatureHeader returns the HTTP header the marketplace uses to carry
	// the webhook signature
	SignatureHeader() string

	// ParseWebhook translates a verified raw webhook body into a canonical
	// inbound event
	ParseWebhook(body []byte) (*InboundEvent, error)
}

// AdapterRegistry provides access to configured marketplace adapters
type AdapterRegistry interface {
	// Get returns the adapter for the specified marketplace
	Get(code MarketplaceCode) (Adapter, error)

	// List returns all registered adapters
	List() []Adapter
}
