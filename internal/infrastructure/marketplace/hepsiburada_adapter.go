package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/integration"
)

// hepsiburadaSignatureHeader carries the webhook HMAC signature
const hepsiburadaSignatureHeader = "X-HB-Signature"

// hepsiburadaPageSize is the order listing page size
const hepsiburadaPageSize = 50

// HepsiburadaAdapter implements the Adapter interface for the Hepsiburada
// marketplace. Listings are keyed by the Hepsiburada SKU assigned at import,
// which serves as the external ID for product mappings.
type HepsiburadaAdapter struct {
	config     *HepsiburadaConfig
	httpClient *http.Client
}

// NewHepsiburadaAdapter creates a new Hepsiburada adapter with the given configuration
func NewHepsiburadaAdapter(config *HepsiburadaConfig) (*HepsiburadaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HepsiburadaAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// MarketplaceCode returns the marketplace this adapter handles
func (a *HepsiburadaAdapter) MarketplaceCode() integration.MarketplaceCode {
	return integration.MarketplaceCodeHepsiburada
}

// Authenticate validates the merchant credentials against the listings
// endpoint. Hepsiburada uses static basic auth, so the session never expires.
func (a *HepsiburadaAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	path := fmt.Sprintf("/listings/merchantid/%s?limit=1", a.config.MerchantID)
	if _, err := a.doRequest(ctx, http.MethodGet, path, nil); err != nil {
		return nil, err
	}
	return &integration.Session{
		MarketplaceCode: integration.MarketplaceCodeHepsiburada,
		Token:           a.config.Username,
	}, nil
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// UpsertProduct imports or updates a listing. Hepsiburada keys updates by
// merchant SKU; the external ID is the merchant SKU echoed back because the
// marketplace-assigned SKU only becomes visible after the async import
// completes.
func (a *HepsiburadaAdapter) UpsertProduct(ctx context.Context, product *integration.ProductPush, externalID string) (*integration.UpsertResult, error) {
	if product.SKU == "" {
		return nil, fmt.Errorf("%w: merchant SKU is required", integration.ErrValidationRejected)
	}

	item := HepsiburadaListingItem{
		MerchantSKU:    product.SKU,
		Barcode:        product.Barcode,
		ProductName:    product.Title,
		Brand:          product.Brand,
		CategoryID:     product.CategoryID,
		Description:    product.Description,
		Price:          product.Price.StringFixed(2),
		ListPrice:      product.ListPrice.StringFixed(2),
		AvailableStock: product.Quantity,
		VATRate:        product.VATRate,
		IsActive:       product.OnSale,
		Images:         product.ImageURLs,
	}

	path := fmt.Sprintf("/listings/merchantid/%s/import", a.config.MerchantID)
	respBody, err := a.doRequest(ctx, http.MethodPost, path, HepsiburadaImportRequest{Listings: []HepsiburadaListingItem{item}})
	if err != nil {
		return nil, err
	}

	var resp HepsiburadaImportResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing import response: %v", integration.ErrInvalidResponse, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", integration.ErrValidationRejected, resp.Message)
	}

	ext := externalID
	if ext == "" {
		ext = product.SKU
	}
	return &integration.UpsertResult{
		ExternalID:   ext,
		RemoteStatus: "TRACKING_" + resp.TrackingID,
	}, nil
}

// UpdateStock pushes a stock level for an existing listing
func (a *HepsiburadaAdapter) UpdateStock(ctx context.Context, externalID string, quantity int64) error {
	path := fmt.Sprintf("/listings/merchantid/%s/stock-uploads", a.config.MerchantID)
	items := []HepsiburadaStockItem{{HepsiburadaSKU: externalID, AvailableStock: quantity}}
	_, err := a.doRequest(ctx, http.MethodPost, path, items)
	return err
}

// UpdatePrice pushes a price for an existing listing
func (a *HepsiburadaAdapter) UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error {
	path := fmt.Sprintf("/listings/merchantid/%s/price-uploads", a.config.MerchantID)
	items := []HepsiburadaPriceItem{{HepsiburadaSKU: externalID, Price: price.StringFixed(2)}}
	_, err := a.doRequest(ctx, http.MethodPost, path, items)
	return err
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// ListOrders pulls orders placed since the given time. The cursor is the
// numeric listing offset.
func (a *HepsiburadaAdapter) ListOrders(ctx context.Context, since time.Time, cursor string) (*integration.OrderPage, error) {
	offset := 0
	if cursor != "" {
		o, err := strconv.Atoi(cursor)
		if err != nil || o < 0 {
			return nil, fmt.Errorf("%w: invalid order cursor %q", integration.ErrInvalidResponse, cursor)
		}
		offset = o
	}

	q := url.Values{}
	q.Set("beginDate", since.UTC().Format(time.RFC3339))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(hepsiburadaPageSize))

	path := fmt.Sprintf("/orders/merchantid/%s?%s", a.config.MerchantID, q.Encode())
	respBody, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp HepsiburadaOrdersResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing orders response: %v", integration.ErrInvalidResponse, err)
	}

	next := offset + len(resp.Items)
	result := &integration.OrderPage{
		Orders:  make([]integration.RawOrder, 0, len(resp.Items)),
		HasMore: int64(next) < resp.TotalCount && len(resp.Items) > 0,
	}
	if result.HasMore {
		result.NextCursor = strconv.Itoa(next)
	}
	for i := range resp.Items {
		result.Orders = append(result.Orders, a.convertOrder(&resp.Items[i]))
	}
	return result, nil
}

// UpdateOrderStatus pushes an order status change to Hepsiburada
func (a *HepsiburadaAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status integration.OrderStatus, shipment *integration.Shipment) error {
	req := HepsiburadaStatusUpdateRequest{Status: mapToHepsiburadaStatus(status)}
	if req.Status == "" {
		return fmt.Errorf("%w: status %s cannot be pushed to hepsiburada", integration.ErrValidationRejected, status)
	}
	if status.RequiresShipment() {
		if shipment == nil {
			return fmt.Errorf("%w: shipped status requires tracking info", integration.ErrValidationRejected)
		}
		req.CargoCompany = shipment.Carrier
		req.TrackingNumber = shipment.TrackingNumber
	}

	path := fmt.Sprintf("/orders/merchantid/%s/ordernumber/%s/status", a.config.MerchantID, url.PathEscape(externalOrderID))
	_, err := a.doRequest(ctx, http.MethodPut, path, req)
	return err
}

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// SignatureHeader returns the header Hepsiburada signs deliveries with
func (a *HepsiburadaAdapter) SignatureHeader() string {
	return hepsiburadaSignatureHeader
}

// VerifyWebhookSignature checks the delivery signature in constant time
func (a *HepsiburadaAdapter) VerifyWebhookSignature(body []byte, signatureHeader string) bool {
	return a.config.VerifyWebhook(body, signatureHeader)
}

// ParseWebhook translates a verified Hepsiburada delivery into a canonical event
func (a *HepsiburadaAdapter) ParseWebhook(body []byte) (*integration.InboundEvent, error) {
	var payload HepsiburadaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing webhook body: %v", integration.ErrInvalidResponse, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", integration.ErrInvalidResponse)
	}

	event := &integration.InboundEvent{
		EventID:         payload.ID,
		MarketplaceCode: integration.MarketplaceCodeHepsiburada,
	}
	if t, err := time.Parse(time.RFC3339, payload.CreatedAt); err == nil {
		event.OccurredAt = t
	}

	switch payload.Type {
	case HepsiburadaEventOrderCreated:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		order := a.convertOrder(payload.Order)
		event.Type = integration.InboundOrderCreated
		event.ExternalID = order.ExternalOrderID
		event.Order = &order
	case HepsiburadaEventOrderUpdated:
		if payload.Order == nil {
			return nil, fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundOrderStatusChanged
		event.ExternalID = payload.Order.OrderNumber
		event.Status = mapHepsiburadaStatus(payload.Order.Status)
	case HepsiburadaEventStockChanged:
		if payload.Listing == nil || payload.Listing.AvailableStock == nil {
			return nil, fmt.Errorf("%w: stock event without quantity", integration.ErrInvalidResponse)
		}
		event.Type = integration.InboundStockChanged
		event.ExternalID = payload.Listing.HepsiburadaSKU
		event.Quantity = payload.Listing.AvailableStock
	case HepsiburadaEventPriceChanged:
		if payload.Listing == nil || payload.Listing.Price == "" {
			return nil, fmt.Errorf("%w: price event without price", integration.ErrInvalidResponse)
		}
		price := ParseDecimal(payload.Listing.Price)
		event.Type = integration.InboundPriceChanged
		event.ExternalID = payload.Listing.HepsiburadaSKU
		event.Price = &price
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrUnknownEventType, payload.Type)
	}

	return event, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an HTTP request against the Hepsiburada API
func (a *HepsiburadaAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("hepsiburada: marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("hepsiburada: creating request: %w", err)
	}
	req.SetBasicAuth(a.config.Username, a.config.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.config.MerchantID)

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

// convertOrder converts a Hepsiburada order to a canonical raw order
func (a *HepsiburadaAdapter) convertOrder(order *HepsiburadaOrder) integration.RawOrder {
	raw := integration.RawOrder{
		ExternalOrderID: order.OrderNumber,
		MarketplaceCode: integration.MarketplaceCodeHepsiburada,
		Status:          mapHepsiburadaStatus(order.Status),
		BuyerName:       order.CustomerName,
		City:            order.City,
		TotalAmount:     ParseDecimal(order.TotalPrice.Amount),
		Currency:        order.TotalPrice.Currency,
		Lines:           make([]integration.RawOrderLine, 0, len(order.Lines)),
	}
	if raw.Currency == "" {
		raw.Currency = "TRY"
	}
	if t, err := time.Parse(time.RFC3339, order.OrderDate); err == nil {
		raw.OrderedAt = t
	}

	for _, line := range order.Lines {
		raw.Lines = append(raw.Lines, integration.RawOrderLine{
			ExternalLineID:    line.LineID,
			ExternalProductID: line.HepsiburadaSKU,
			SKU:               line.MerchantSKU,
			Quantity:          line.Quantity,
			UnitPrice:         ParseDecimal(line.UnitPrice.Amount),
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

// mapHepsiburadaStatus maps a Hepsiburada order status to the canonical status
func mapHepsiburadaStatus(status string) integration.OrderStatus {
	switch status {
	case HepsiburadaStatusOpen:
		return integration.OrderStatusCreated
	case HepsiburadaStatusPayed:
		return integration.OrderStatusApproved
	case HepsiburadaStatusPicking:
		return integration.OrderStatusPicking
	case HepsiburadaStatusShipped:
		return integration.OrderStatusShipped
	case HepsiburadaStatusDelivered:
		return integration.OrderStatusDelivered
	case HepsiburadaStatusCancelled:
		return integration.OrderStatusCancelled
	case HepsiburadaStatusReturned:
		return integration.OrderStatusReturned
	default:
		return integration.OrderStatusCreated
	}
}

// mapToHepsiburadaStatus maps a canonical status to a pushable Hepsiburada
// status. Returns empty for statuses the marketplace owns itself.
func mapToHepsiburadaStatus(status integration.OrderStatus) string {
	switch status {
	case integration.OrderStatusPicking:
		return HepsiburadaStatusPicking
	case integration.OrderStatusShipped:
		return HepsiburadaStatusShipped
	case integration.OrderStatusCancelled:
		return HepsiburadaStatusCancelled
	default:
		return ""
	}
}

// Ensure HepsiburadaAdapter implements the Adapter interface
var _ integration.Adapter = (*HepsiburadaAdapter)(nil)
