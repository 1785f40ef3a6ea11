package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// Order is the canonical record of a marketplace order imported into the
// local system. The (marketplace, external order ID) pair is unique, which
// makes importing the same remote order twice a no-op.
type Order struct {
	shared.BaseEntity
	MarketplaceCode integration.MarketplaceCode
	ExternalOrderID string
	Status          integration.OrderStatus
	BuyerName       string
	City            string
	TotalAmount     decimal.Decimal
	Currency        string
	Lines           []OrderLine
	OrderedAt       time.Time
	// Carrier and TrackingNumber are set when the merchant ships the order
	Carrier        string
	TrackingNumber string
	// Version increments on every status change
	Version int64
}

// OrderLine is one line item of an imported order
type OrderLine struct {
	ExternalLineID    string
	ExternalProductID string
	SKU               string
	Quantity          int64
	UnitPrice         decimal.Decimal
}

// NewOrder creates an order imported from a marketplace
func NewOrder(code integration.MarketplaceCode, externalOrderID string, status integration.OrderStatus, orderedAt time.Time) (*Order, error) {
	if !code.IsValid() {
		return nil, shared.NewDomainError("INVALID_MARKETPLACE", "invalid marketplace code: "+code.String())
	}
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ORDER_ID", "external order ID is required")
	}
	if !status.IsValid() {
		status = integration.OrderStatusCreated
	}
	return &Order{
		BaseEntity:      shared.NewBaseEntity(),
		MarketplaceCode: code,
		ExternalOrderID: externalOrderID,
		Status:          status,
		OrderedAt:       orderedAt,
		Version:         1,
	}, nil
}

// ApplyStatus records a status change. Equal statuses are a no-op so webhook
// redeliveries do not bump the version.
func (o *Order) ApplyStatus(status integration.OrderStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_ORDER_STATUS", "invalid order status: "+status.String())
	}
	if o.Status == status {
		return nil
	}
	o.Status = status
	o.Version++
	o.Touch()
	return nil
}

// Ship records tracking info and moves the order to SHIPPED. Repeating the
// call with corrected tracking bumps the version again so the new tracking
// number reaches the marketplace.
func (o *Order) Ship(carrier, trackingNumber string) error {
	carrier = strings.TrimSpace(carrier)
	trackingNumber = strings.TrimSpace(trackingNumber)
	if carrier == "" || trackingNumber == "" {
		return shared.NewDomainError("SHIPMENT_REQUIRED", "carrier and tracking number are required")
	}
	if o.Status == integration.OrderStatusDelivered {
		return shared.NewDomainError("ORDER_ALREADY_DELIVERED", "delivered orders cannot be shipped")
	}
	o.Carrier = carrier
	o.TrackingNumber = trackingNumber
	o.Status = integration.OrderStatusShipped
	o.Version++
	o.Touch()
	return nil
}
