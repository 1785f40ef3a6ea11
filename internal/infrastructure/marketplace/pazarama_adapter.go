package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/integration"
)

// pazaramaSignatureHeader carries the webhook HMAC signature
const pazaramaSignatureHeader = "X-Pazarama-Signature"

// pazaramaPageSize is the order listing page size
const pazaramaPageSize = 50

// tokenExpirySlack renews tokens this long before their actual expiry
const tokenExpirySlack = time.Minute

// PazaramaAdapter implements the Adapter interface for the Pazarama
// marketplace. Pazarama uses OAuth client credentials; the adapter caches the
// access token and renews it shortly before expiry.
type PazaramaAdapter struct {
	config     *PazaramaConfig
	httpClient *http.Client

	mu      sync.Mutex
	session *integration.Session
}

// NewPazaramaAdapter creates a new Pazarama adapter with the given configuration
func NewPazaramaAdapter(config *PazaramaConfig) (*PazaramaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PazaramaAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// MarketplaceCode returns the marketplace this adapter handles
func (a *PazaramaAdapter) MarketplaceCode() integration.MarketplaceCode {
	return integration.MarketplaceCodePazarama
}

// Authenticate exchanges the client credentials for an access token
func (a *PazaramaAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "merchantgatewayapi.fullaccess")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("pazarama: creating token request: %w", err)
	}
	req.SetBasicAuth(a.config.APIKey, a.config.APISecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, integration.ErrAuthFailed
	}
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	var token PazaramaTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: parsing token response: %v", integration.ErrInvalidResponse, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", integration.ErrAuthFailed)
	}

	session := &integration.Session{
		MarketplaceCode: integration.MarketplaceCodePazarama,
		Token:           token.AccessToken,
		ExpiresAt:       time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	return session, nil
}

// currentToken returns a valid access token, renewing it when close to expiry
func (a *PazaramaAdapter) currentToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	if s != nil && time.Until(s.ExpiresAt) > tokenExpirySlack {
		return s.Token, nil
	}

	s, err := a.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// UpsertProduct creates the product when externalID is empty, updates it
// otherwise. Pazarama assigns its own product ID on creation.
func (a *PazaramaAdapter) UpsertProduct(ctx context.Context, product *integration.ProductPush, externalID string) (*integration.UpsertResult, error) {
	if product.SKU == "" {
		return nil, fmt.Errorf("%w: stock code is required", integration.ErrValidationRejected)
	}

	body := PazaramaProduct{
		Code:        externalID,
		Name:        product.Title,
		DisplayName: product.Title,
		Description: product.Description,
		BrandName:   product.Brand,
		CategoryID:  product.CategoryID,
		GroupCode:   product.Barcode,
		StockCode:   product.SKU,
		StockCount:  product.Quantity,
		ListPrice:   product.ListPrice.StringFixed(2),
		SalePrice:   product.Price.StringFixed(2),
		VATRate:     product.VATRate,
		IsActive:    product.OnSale,
		Images:      product.ImageURLs,
	}

	path := "/product/create"
	if externalID != "" {
		path = "/product/update"
	}
	respBody, err := a.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var resp PazaramaProductCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing product response: %v", integration.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s - %s", integration.ErrValidationRejected, resp.Code, resp.Message)
	}
	if resp.Data == nil || resp.Data.ProductID == "" {
		if externalID != "" {
			// Updates may omit the ID in the response
			return &integration.UpsertResult{ExternalID: externalID}, nil
		}
		return nil, fmt.Errorf("%w: missing product ID", integration.ErrInvalidResponse)
	}

	return &integration.UpsertResult{
		ExternalID:   resp.Data.ProductID,
		RemoteStatus: resp.Data.Status,
	}, nil
}

// UpdateStock pushes a stock level for an existing product
func (a *PazaramaAdapter) UpdateStock(ctx context.Context, externalID string, quantity int64) error {
	req := PazaramaItemsRequest[PazaramaStockUpdate]{
		Items: []PazaramaStockUpdate{{ProductID: externalID, StockCount: quantity}},
	}
	respBody, err := a.doRequest(ctx, http.MethodPost, "/product/updateStock", req)
	if err != nil {
		return err
	}
	return a.checkEnvelope(respBody)
}

// UpdatePrice pushes a price for an existing product
func (a *PazaramaAdapter) UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error {
	req := PazaramaItemsRequest[PazaramaPriceUpdate]{
		Items: []PazaramaPriceUpdate{{ProductID: externalID, SalePrice: price.StringFixed(2)}},
	}
	respBody, err := a.doRequest(ctx, http.MethodPost, "/product/updatePrice", req)
	if err != nil {
		return err
	}
	return a.checkEnvelope(respBody)
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// ListOrders pulls orders placed since the given time. The cursor is the
// one-based page number.
func (a *PazaramaAdapter) ListOrders(ctx context.Context, since time.Time, cursor string) (*integration.OrderPage, error) {
	page := 1
	if cursor != "" {
		p, err := strconv.Atoi(cursor)
		if err != nil || p < 1 {
			return nil, fmt.Errorf("%w: invalid order cursor %q", integration.ErrInvalidResponse, cursor)
		}
		page = p
	}

	q := url.Values{}
	q.Set("startDate", since.UTC().Format(time.RFC3339))
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pazaramaPageSize))

	respBody, err := a.doRequest(ctx, http.MethodGet, "/order/getOrders?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp PazaramaOrdersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing orders response: %v", integration.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s - %s", integration.ErrInvalidResponse, resp.Code, resp.Message)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing order data", integration.ErrInvalidResponse)
	}

	seen := int64((page-1)*pazaramaPageSize + len(resp.Data.Orders))
	result := &integration.OrderPage{
		Orders:  make([]integration.RawOrder, 0, len(resp.Data.Orders)),
		HasMore: seen < resp.Data.TotalCount && len(resp.Data.Orders) > 0,
	}
	if result.HasMore {
		result.NextCursor = strconv.Itoa(page + 1)
	}
	for i := range resp.Data.Orders {
		result.Orders = append(result.Orders, a.convertOrder(&resp.Data.Orders[i]))
	}
	return result, nil
}

// UpdateOrderStatus pushes an order status change to Pazarama
func (a *PazaramaAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status integration.OrderStatus, shipment *integration.Shipment) error {
	req := PazaramaStatusUpdateRequest{
		OrderNumber: externalOrderID,
		Status:      mapToPazaramaStatus(status),
	}
	if req.Status == "" {
		return fmt.Errorf("%w: status %s cannot be pushed to pazarama", integration.ErrValidationRejected, status)
	}
	if status.RequiresShipment() {
		if shipment == nil {
			return fmt.Errorf("%w: shipped status requires tracking info", integration.ErrValidationRejected)
		}
		req.CargoCompany = shipment.Carrier
		req.TrackingNumber = shipment.TrackingNumber
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, "/order/updateOrderStatus", req)
	if err != nil {
		return err
	}
	return a.checkEnvelope(respBody)
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// SignatureHeader returns the header Pazarama signs deliveries with
func (a *PazaramaAdapter) SignatureHeader() string {
	return pazaramaSignatureHeader
}

// VerifyWebhookSignature checks the delivery signature in constant time
func (a *PazaramaAdapter) VerifyWebhookSignature(body []byte, signatureHeader string) bool {
	return a.config.VerifyWebhook(body, signatureHeader)
}

// ParseWebhook translates a verified Pazarama delivery into a canonical event
func (a *PazaramaAdapter) ParseWebhook(body []byte) (*integration.InboundEvent, error) {
	var payload PazaramaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing webhook body: %v", integration.ErrInvalidResponse, err)
	}
	if payload.EventID == "" {
		return nil, fmt.Errorf("%w: missing eventId", integration.ErrInvalidResponse)
	}

	event := &integration.InboundEvent{
		EventID:         payload.EventID,
		MarketplaceCode: integration.MarketplaceCodePazarama,
	}
	if t, err := time.Parse(time.RFC3339, payload.EventDate); err == nil {
		event.OccurredAt = t
	}

	switch payload.EventType {
	case PazaramaEventOrderCreated:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		order := a.convertOrder(payload.Order)
		event.Type = integration.InboundOrderCreated
		event.ExternalID = order.ExternalOrderID
		event.Order = &order
	case PazaramaEventOrderStatusChanged:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundOrderStatusChanged
		event.ExternalID = payload.Order.OrderNumber
		event.Status = mapPazaramaStatus(payload.Order.Status)
	case PazaramaEventStockChanged:
		if payload.Product == nil || payload.Product.StockCount == nil {
			return nil, fmt.Errorf("%w: stock event without quantity", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundStockChanged
		event.ExternalID = payload.Product.ProductID
		event.Quantity = payload.Product.StockCount
	case PazaramaEventPriceChanged:
		if payload.Product == nil || payload.Product.SalePrice == "" {
			return nil, fmt.Errorf("%w: price event without price", integration.ErrInvalidResponse)
		}
		price := ParseDecimal(payload.Product.SalePrice)
		event.Type = integration.InboundPriceChanged
		event.ExternalID = payload.Product.ProductID
		event.Price = &price
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrUnknownEventType, payload.EventType)
	}

	return event, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated HTTP request against the Pazarama API
func (a *PazaramaAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := a.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("pazarama: marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("pazarama: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

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

// checkEnvelope validates the common success envelope
func (a *PazaramaAdapter) checkEnvelope(respBody []byte) error {
	var resp PazaramaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: parsing response: %v", integration.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s - %s", integration.ErrValidationRejected, resp.Code, resp.Message)
	}
	return nil
}

// convertOrder converts a Pazarama order to a canonical raw order
func (a *PazaramaAdapter) convertOrder(order *PazaramaOrder) integration.RawOrder {
	raw := integration.RawOrder{
		ExternalOrderID: order.OrderNumber,
		MarketplaceCode: integration.MarketplaceCodePazarama,
		Status:          mapPazaramaStatus(order.Status),
		BuyerName:       order.CustomerName,
		City:            order.City,
		TotalAmount:     ParseDecimal(order.TotalAmount),
		Currency:        order.Currency,
		Lines:           make([]integration.RawOrderLine, 0, len(order.Items)),
	}
	if raw.Currency == "" {
		raw.Currency = "TRY"
	}
	if t, err := time.Parse(time.RFC3339, order.OrderDate); err == nil {
		raw.OrderedAt = t
	}

	for _, item := range order.Items {
		raw.Lines = append(raw.Lines, integration.RawOrderLine{
			ExternalLineID:    item.ItemID,
			ExternalProductID: item.ProductID,
			SKU:               item.StockCode,
			Quantity:          item.Quantity,
			UnitPrice:         ParseDecimal(item.UnitPrice),
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

// mapPazaramaStatus maps a Pazarama order status to the canonical status
func mapPazaramaStatus(status string) integration.OrderStatus {
	switch status {
	case PazaramaStatusWaitingPayment:
		return integration.OrderStatusCreated
	case PazaramaStatusApproved:
		return integration.OrderStatusApproved
	case PazaramaStatusPreparing:
		return integration.OrderStatusPicking
	case PazaramaStatusShipped:
		return integration.OrderStatusShipped
	case PazaramaStatusDelivered:
		return integration.OrderStatusDelivered
	case PazaramaStatusCancelled:
		return integration.OrderStatusCancelled
	case PazaramaStatusReturned:
		return integration.OrderStatusReturned
	default:
		return integration.OrderStatusCreated
	}
}

// mapToPazaramaStatus maps a canonical status to a pushable Pazarama status.
// Returns empty for statuses the marketplace owns itself.
func mapToPazaramaStatus(status integration.OrderStatus) string {
	switch status {
	case integration.OrderStatusPicking:
		return PazaramaStatusPreparing
	case integration.OrderStatusShipped:
		return PazaramaStatusShipped
	case integration.OrderStatusCancelled:
		return PazaramaStatusCancelled
	default:
		return ""
	}
}

// Ensure PazaramaAdapter implements the Adapter interface
var _ integration.Adapter = (*PazaramaAdapter)(nil)
