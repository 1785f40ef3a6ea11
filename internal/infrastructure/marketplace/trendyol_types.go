package marketplace

// TrendyolProductItem is one product in a create/update batch request
type TrendyolProductItem struct {
	Barcode        string                 `json:"barcode"`
	Title          string                 `json:"title"`
	ProductMainID  string                 `json:"productMainId"`
	BrandName      string                 `json:"brandName"`
	CategoryID     string                 `json:"pimCategoryId"`
	StockCode      string                 `json:"stockCode"`
	Description    string                 `json:"description"`
	ListPrice      string                 `json:"listPrice"`
	SalePrice      string                 `json:"salePrice"`
	Quantity       int64                  `json:"quantity"`
	VATRate        int                    `json:"vatRate"`
	OnSale         bool                   `json:"onSale"`
	Images         []TrendyolProductImage `json:"images,omitempty"`
}

// TrendyolProductImage is a product image reference
type TrendyolProductImage struct {
	URL string `json:"url"`
}

// TrendyolProductRequest is the batch product create/update request body
type TrendyolProductRequest struct {
	Items []TrendyolProductItem `json:"items"`
}

// TrendyolBatchResponse is returned by batch product submissions
type TrendyolBatchResponse struct {
	BatchRequestID string `json:"batchRequestId"`
}

// TrendyolPriceInventoryItem is one entry in a price/inventory update
type TrendyolPriceInventoryItem struct {
	Barcode   string `json:"barcode"`
	Quantity  *int64 `json:"quantity,omitempty"`
	SalePrice string `json:"salePrice,omitempty"`
	ListPrice string `json:"listPrice,omitempty"`
}

// TrendyolPriceInventoryRequest is the price/inventory update request body
type TrendyolPriceInventoryRequest struct {
	Items []TrendyolPriceInventoryItem `json:"items"`
}

// TrendyolOrdersResponse is the paginated order listing response
type TrendyolOrdersResponse struct {
	Content       []TrendyolOrder `json:"content"`
	Page          int             `json:"page"`
	Size          int             `json:"size"`
	TotalPages    int             `json:"totalPages"`
	TotalElements int64           `json:"totalElements"`
}

// TrendyolOrder is one shipment package in the order listing
type TrendyolOrder struct {
	OrderNumber       string               `json:"orderNumber"`
	ShipmentPackageID int64                `json:"id"`
	Status            string               `json:"status"`
	CustomerFirstName string               `json:"customerFirstName"`
	CustomerLastName  string               `json:"customerLastName"`
	City              string               `json:"city"`
	GrossAmount       float64              `json:"grossAmount"`
	TotalPrice        float64              `json:"totalPrice"`
	CurrencyCode      string               `json:"currencyCode"`
	OrderDate         int64                `json:"orderDate"` // unix millis
	Lines             []TrendyolOrderLine  `json:"lines"`
}

// TrendyolOrderLine is one line item in a shipment package
type TrendyolOrderLine struct {
	LineID    int64   `json:"id"`
	ProductID int64   `json:"productId"`
	Barcode   string  `json:"barcode"`
	SKU       string  `json:"merchantSku"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
}

// TrendyolStatusUpdateRequest updates a shipment package status
type TrendyolStatusUpdateRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	CargoProvider  string `json:"cargoProvider,omitempty"`
}

// TrendyolWebhookPayload is the body of a Trendyol webhook delivery
type TrendyolWebhookPayload struct {
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Timestamp int64          `json:"timestamp"` // unix millis
	Order     *TrendyolOrder `json:"order,omitempty"`
	Product   *TrendyolWebhookProduct `json:"product,omitempty"`
}

// TrendyolWebhookProduct carries product fields for stock/price events
type TrendyolWebhookProduct struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	Quantity  *int64 `json:"quantity,omitempty"`
	SalePrice string `json:"salePrice,omitempty"`
}

// Trendyol webhook event types
const (
	TrendyolEventOrderCreated       = "OrderCreated"
	TrendyolEventOrderStatusChanged = "OrderStatusChanged"
	TrendyolEventStockUpdated       = "StockUpdated"
	TrendyolEventPriceUpdated       = "PriceUpdated"
)

// Trendyol shipment package statuses
const (
	TrendyolStatusCreated    = "Created"
	TrendyolStatusPicking    = "Picking"
	TrendyolStatusInvoiced   = "Invoiced"
	TrendyolStatusShipped    = "Shipped"
	TrendyolStatusDelivered  = "Delivered"
	TrendyolStatusCancelled  = "Cancelled"
	TrendyolStatusReturned   = "Returned"
	TrendyolStatusUnDelivered = "UnDelivered"
)
