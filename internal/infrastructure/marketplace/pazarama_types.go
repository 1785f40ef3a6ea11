package marketplace

// PazaramaTokenResponse is the OAuth client-credentials token response
type PazaramaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// PazaramaResponse is the common response envelope
type PazaramaResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IsSuccess returns true if the API call succeeded
func (r *PazaramaResponse) IsSuccess() bool {
	return r.Success
}

// PazaramaProduct is the product payload for create/update calls
type PazaramaProduct struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	BrandName   string   `json:"brandName"`
	CategoryID  string   `json:"categoryId"`
	GroupCode   string   `json:"groupCode"`
	StockCode   string   `json:"stockCode"`
	StockCount  int64    `json:"stockCount"`
	ListPrice   string   `json:"listPrice"`
	SalePrice   string   `json:"salePrice"`
	VATRate     int      `json:"vatRate"`
	IsActive    bool     `json:"isActive"`
	Images      []string `json:"images,omitempty"`
}

// PazaramaProductCreateResponse is returned by product submissions
type PazaramaProductCreateResponse struct {
	PazaramaResponse
	Data *PazaramaProductCreateData `json:"data"`
}

// PazaramaProductCreateData carries the product ID assigned by Pazarama
type PazaramaProductCreateData struct {
	ProductID string `json:"productId"`
	Status    string `json:"status"`
}

// PazaramaStockUpdate is one entry in a stock update request
type PazaramaStockUpdate struct {
	ProductID  string `json:"productId"`
	StockCount int64  `json:"stockCount"`
}

// PazaramaPriceUpdate is one entry in a price update request
type PazaramaPriceUpdate struct {
	ProductID string `json:"productId"`
	SalePrice string `json:"salePrice"`
}

// PazaramaItemsRequest wraps batch item updates
type PazaramaItemsRequest[T any] struct {
	Items []T `json:"items"`
}

// PazaramaOrdersResponse is the paginated order listing response
type PazaramaOrdersResponse struct {
	PazaramaResponse
	Data *PazaramaOrdersData `json:"data"`
}

// PazaramaOrdersData carries the order page
type PazaramaOrdersData struct {
	Orders     []PazaramaOrder `json:"orders"`
	PageNumber int             `json:"pageNumber"`
	PageSize   int             `json:"pageSize"`
	TotalCount int64           `json:"totalCount"`
}

// PazaramaOrder is one order in the listing
type PazaramaOrder struct {
	OrderNumber  string              `json:"orderNumber"`
	Status       string              `json:"orderStatus"`
	CustomerName string              `json:"customerName"`
	City         string              `json:"city"`
	TotalAmount  string              `json:"totalAmount"`
	Currency     string              `json:"currencyCode"`
	OrderDate    string              `json:"orderDate"` // RFC3339
	Items        []PazaramaOrderItem `json:"items"`
}

// PazaramaOrderItem is one line item in an order
type PazaramaOrderItem struct {
	ItemID    string `json:"orderItemId"`
	ProductID string `json:"productId"`
	StockCode string `json:"stockCode"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// PazaramaStatusUpdateRequest updates an order's status
type PazaramaStatusUpdateRequest struct {
	OrderNumber    string `json:"orderNumber"`
	Status         string `json:"status"`
	CargoCompany   string `json:"cargoCompany,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// PazaramaWebhookPayload is the body of a Pazarama webhook delivery
type PazaramaWebhookPayload struct {
	EventID   string                  `json:"eventId"`
	EventType string                  `json:"eventType"`
	EventDate string                  `json:"eventDate"` // RFC3339
	Order     *PazaramaOrder          `json:"order,omitempty"`
	Product   *PazaramaWebhookProduct `json:"product,omitempty"`
}

// PazaramaWebhookProduct carries product fields for stock/price events
type PazaramaWebhookProduct struct {
	ProductID  string `json:"productId"`
	StockCount *int64 `json:"stockCount,omitempty"`
	SalePrice  string `json:"salePrice,omitempty"`
}

// Pazarama webhook event types
const (
	PazaramaEventOrderCreated       = "OrderCreated"
	PazaramaEventOrderStatusChanged = "OrderStatusChanged"
	PazaramaEventStockChanged       = "StockChanged"
	PazaramaEventPriceChanged       = "PriceChanged"
)

// Pazarama order statuses
const (
	PazaramaStatusWaitingPayment  = "WaitingPayment"
	PazaramaStatusApproved        = "Approved"
	PazaramaStatusPreparing       = "Preparing"
	PazaramaStatusShipped         = "Shipped"
	PazaramaStatusDelivered       = "Delivered"
	PazaramaStatusCancelled       = "Cancelled"
	PazaramaStatusReturned        = "Returned"
)
