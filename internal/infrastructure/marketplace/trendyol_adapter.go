package marketplace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/integration"
)

// trendyolSignatureHeader carries the webhook HMAC signature
const trendyolSignatureHeader = "X-Trendyol-Signature"

// TrendyolAdapter implements the Adapter interface for the Trendyol marketplace.
// Trendyol keys listings by barcode: the barcode doubles as the external ID for
// product mappings, and price/stock updates address listings by it.
type TrendyolAdapter struct {
	config     *TrendyolConfig
	httpClient *http.Client
}

// NewTrendyolAdapter creates a new Trendyol adapter with the given configuration
func NewTrendyolAdapter(config *TrendyolConfig) (*TrendyolAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &TrendyolAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// MarketplaceCode returns the marketplace this adapter handles
func (a *TrendyolAdapter) MarketplaceCode() integration.MarketplaceCode {
	return integration.MarketplaceCodeTrendyol
}

// Authenticate validates the static API key pair against the supplier
// addresses endpoint. Trendyol has no token exchange, so the session carries
// the basic-auth credential and never expires.
func (a *TrendyolAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	path := fmt.Sprintf("/suppliers/%s/addresses", a.config.SellerID)
	if _, err := a.doRequest(ctx, http.MethodGet, path, nil); err != nil {
		return nil, err
	}
	return &integration.Session{
		MarketplaceCode: integration.MarketplaceCodeTrendyol,
		Token:           a.basicAuth(),
	}, nil
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// UpsertProduct creates or updates a listing. Trendyol processes product
// submissions as asynchronous batches; the returned external ID is the
// barcode, which is the stable listing key for later stock and price calls.
func (a *TrendyolAdapter) UpsertProduct(ctx context.Context, product *integration.ProductPush, externalID string) (*integration.UpsertResult, error) {
	if product.Barcode == "" {
		return nil, fmt.Errorf("%w: barcode is required", integration.ErrValidationRejected)
	}

	item := TrendyolProductItem{
		Barcode:       product.Barcode,
		Title:         product.Title,
		ProductMainID: product.SKU,
		BrandName:     product.Brand,
		CategoryID:    product.CategoryID,
		StockCode:     product.SKU,
		Description:   product.Description,
		ListPrice:     product.ListPrice.StringFixed(2),
		SalePrice:     product.Price.StringFixed(2),
		Quantity:      product.Quantity,
		VATRate:       product.VATRate,
		OnSale:        product.OnSale,
	}
	for _, u := range product.ImageURLs {
		item.Images = append(item.Images, TrendyolProductImage{URL: u})
	}

	// Same endpoint creates and updates; an existing barcode is an update
	path := fmt.Sprintf("/suppliers/%s/v2/products", a.config.SellerID)
	respBody, err := a.doRequest(ctx, http.MethodPost, path, TrendyolProductRequest{Items: []TrendyolProductItem{item}})
	if err != nil {
		return nil, err
	}

	var resp TrendyolBatchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing batch response: %v", integration.ErrInvalidResponse, err)
	}
	if resp.BatchRequestID == "" {
		return nil, fmt.Errorf("%w: missing batchRequestId", integration.ErrInvalidResponse)
	}

	return &integration.UpsertResult{
		ExternalID:   product.Barcode,
		RemoteStatus: "BATCH_" + resp.BatchRequestID,
	}, nil
}

// UpdateStock pushes a stock level for an existing listing
func (a *TrendyolAdapter) UpdateStock(ctx context.Context, externalID string, quantity int64) error {
	req := TrendyolPriceInventoryRequest{
		Items: []TrendyolPriceInventoryItem{{Barcode: externalID, Quantity: &quantity}},
	}
	path := fmt.Sprintf("/suppliers/%s/products/price-and-inventory", a.config.SellerID)
	_, err := a.doRequest(ctx, http.MethodPost, path, req)
	return err
}

// UpdatePrice pushes a price for an existing listing
func (a *TrendyolAdapter) UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error {
	req := TrendyolPriceInventoryRequest{
		Items: []TrendyolPriceInventoryItem{{Barcode: externalID, SalePrice: price.StringFixed(2)}},
	}
	path := fmt.Sprintf("/suppliers/%s/products/price-and-inventory", a.config.SellerID)
	_, err := a.doRequest(ctx, http.MethodPost, path, req)
	return err
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// ListOrders pulls shipment packages created since the given time. The cursor
// is the zero-based page number.
func (a *TrendyolAdapter) ListOrders(ctx context.Context, since time.Time, cursor string) (*integration.OrderPage, error) {
	page := 0
	if cursor != "" {
		p, err := strconv.Atoi(cursor)
		if err != nil || p < 0 {
			return nil, fmt.Errorf("%w: invalid order cursor %q", integration.ErrInvalidResponse, cursor)
		}
		page = p
	}

	q := url.Values{}
	q.Set("startDate", strconv.FormatInt(since.UnixMilli(), 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("size", "50")
	q.Set("orderByField", "CreatedDate")
	q.Set("orderByDirection", "ASC")

	path := fmt.Sprintf("/suppliers/%s/orders?%s", a.config.SellerID, q.Encode())
	respBody, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp TrendyolOrdersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing orders response: %v", integration.ErrInvalidResponse, err)
	}

	result := &integration.OrderPage{
		Orders:  make([]integration.RawOrder, 0, len(resp.Content)),
		HasMore: page+1 < resp.TotalPages,
	}
	if result.HasMore {
		result.NextCursor = strconv.Itoa(page + 1)
	}
	for i := range resp.Content {
		result.Orders = append(result.Orders, a.convertOrder(&resp.Content[i]))
	}
	return result, nil
}

// UpdateOrderStatus pushes an order status change to Trendyol. Shipped
// transitions carry the tracking number on the shipment package.
func (a *TrendyolAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status integration.OrderStatus, shipment *integration.Shipment) error {
	req := TrendyolStatusUpdateRequest{Status: mapToTrendyolStatus(status)}
	if req.Status == "" {
		return fmt.Errorf("%w: status %s cannot be pushed to trendyol", integration.ErrValidationRejected, status)
	}
	if status.RequiresShipment() {
		if shipment == nil {
			return fmt.Errorf("%w: shipped status requires tracking info", integration.ErrValidationRejected)
		}
		req.TrackingNumber = shipment.TrackingNumber
		req.CargoProvider = shipment.Carrier
	}

	path := fmt.Sprintf("/suppliers/%s/shipment-packages/%s", a.config.SellerID, url.PathEscape(externalOrderID))
	_, err := a.doRequest(ctx, http.MethodPut, path, req)
	return err
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// SignatureHeader returns the header Trendyol signs deliveries with
func (a *TrendyolAdapter) SignatureHeader() string {
	return trendyolSignatureHeader
}

// VerifyWebhookSignature checks the delivery signature in constant time
func (a *TrendyolAdapter) VerifyWebhookSignature(body []byte, signatureHeader string) bool {
	return a.config.VerifyWebhook(body, signatureHeader)
}

// ParseWebhook translates a verified Trendyol delivery into a canonical event
func (a *TrendyolAdapter) ParseWebhook(body []byte) (*integration.InboundEvent, error) {
	var payload TrendyolWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing webhook body: %v", integration.ErrInvalidResponse, err)
	}
	if payload.EventID == "" {
		return nil, fmt.Errorf("%w: missing eventId", integration.ErrInvalidResponse)
	}

	event := &integration.InboundEvent{
		EventID:         payload.EventID,
		MarketplaceCode: integration.MarketplaceCodeTrendyol,
		OccurredAt:      time.UnixMilli(payload.Timestamp),
	}

	switch payload.EventType {
	case TrendyolEventOrderCreated:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		order := a.convertOrder(payload.Order)
		event.Type = integration.InboundOrderCreated
		event.ExternalID = order.ExternalOrderID
		event.Order = &order
	case TrendyolEventOrderStatusChanged:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundOrderStatusChanged
		event.ExternalID = payload.Order.OrderNumber
		event.Status = mapTrendyolStatus(payload.Order.Status)
	case TrendyolEventStockUpdated:
		if payload.Product == nil || payload.Product.Quantity == nil {
			return nil, fmt.Errorf("%w: stock event without quantity", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundStockChanged
		event.ExternalID = payload.Product.Barcode
		event.Quantity = payload.Product.Quantity
	case TrendyolEventPriceUpdated:
		if payload.Product == nil || payload.Product.SalePrice == "" {
			return nil, fmt.Errorf("%w: price event without price", integration.ErrInvalidResponse)
		}
		price := ParseDecimal(payload.Product.SalePrice)
		event.Type = integration.InboundPriceChanged
		event.ExternalID = payload.Product.Barcode
		event.Price = &price
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrUnknownEventType, payload.EventType)
	}

	return event, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// basicAuth builds the base64 credential Trendyol expects
func (a *TrendyolAdapter) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(a.config.APIKey + ":" + a.config.APISecret))
}

// doRequest performs an HTTP request against the Trendyol API
func (a *TrendyolAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("trendyol: marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("trendyol: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+a.basicAuth())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.config.SellerID+" - SelfIntegration")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	return readBody(resp)
}

// convertOrder converts a Trendyol shipment package to a canonical raw order
func (a *TrendyolAdapter) convertOrder(order *TrendyolOrder) integration.RawOrder {
	raw := integration.RawOrder{
		ExternalOrderID: order.OrderNumber,
		MarketplaceCode: integration.MarketplaceCodeTrendyol,
		Status:          mapTrendyolStatus(order.Status),
		BuyerName:       order.CustomerFirstName + " " + order.CustomerLastName,
		City:            order.City,
		TotalAmount:     decimal.NewFromFloat(order.TotalPrice),
		Currency:        order.CurrencyCode,
		OrderedAt:       time.UnixMilli(order.OrderDate),
		Lines:           make([]integration.RawOrderLine, 0, len(order.Lines)),
	}
	if raw.Currency == "" {
		raw.Currency = "TRY"
	}

	for _, line := range order.Lines {
		raw.Lines = append(raw.Lines, integration.RawOrderLine{
			ExternalLineID:    strconv.FormatInt(line.LineID, 10),
			ExternalProductID: line.Barcode,
			SKU:               line.SKU,
			Quantity:          line.Quantity,
			UnitPrice:         decimal.NewFromFloat(line.Price),
		})
	}

	if rawBytes, err := json.Marshal(order); err == nil {
		raw.RawData = string(rawBytes)
	}
	return raw
}

// ---------------------------------------------------------------------------
// Status Mapping
// ---------------------------------------------------------------------------

// mapTrendyolStatus maps a Trendyol package status to the canonical status
func mapTrendyolStatus(status string) integration.OrderStatus {
	switch status {
	case TrendyolStatusCreated:
		return integration.OrderStatusCreated
	case TrendyolStatusPicking, TrendyolStatusInvoiced:
		return integration.OrderStatusPicking
	case TrendyolStatusShipped, TrendyolStatusUnDelivered:
		return integration.OrderStatusShipped
	case TrendyolStatusDelivered:
		return integration.OrderStatusDelivered
	case TrendyolStatusCancelled:
		return integration.OrderStatusCancelled
	case TrendyolStatusReturned:
		return integration.OrderStatusReturned
	default:
		return integration.OrderStatusCreated
	}
}

// mapToTrendyolStatus maps a canonical status to a pushable Trendyol status.
// Returns empty for statuses Trendyol owns itself.
func mapToTrendyolStatus(status integration.OrderStatus) string {
	switch status {
	case integration.OrderStatusPicking:
		return TrendyolStatusPicking
	case integration.OrderStatusShipped:
		return TrendyolStatusShipped
	case integration.OrderStatusCancelled:
		return TrendyolStatusCancelled
	default:
		return ""
	}
}

// Ensure TrendyolAdapter implements the Adapter interface
var _ integration.Adapter = (*TrendyolAdapter)(nil)
