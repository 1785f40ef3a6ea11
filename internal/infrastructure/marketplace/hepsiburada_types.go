package marketplace

// HepsiburadaListingItem is one listing in an import/update submission
type HepsiburadaListingItem struct {
	MerchantSKU  string   `json:"merchantSku"`
	Barcode      string   `json:"barcode"`
	ProductName  string   `json:"productName"`
	Brand        string   `json:"brand"`
	CategoryID   string   `json:"categoryId"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	ListPrice    string   `json:"marketPrice,omitempty"`
	AvailableStock int64  `json:"availableStock"`
	VATRate      int      `json:"vatRate"`
	IsActive     bool     `json:"isActive"`
	Images       []string `json:"images,omitempty"`
}

// HepsiburadaImportRequest is the listing import request body
type HepsiburadaImportRequest struct {
	Listings []HepsiburadaListingItem `json:"listings"`
}

// HepsiburadaImportResponse is returned by listing submissions
type HepsiburadaImportResponse struct {
	Success    bool   `json:"success"`
	TrackingID string `json:"trackingId"`
	Message    string `json:"message"`
}

// HepsiburadaStockItem updates the stock of one listing
type HepsiburadaStockItem struct {
	HepsiburadaSKU string `json:"hepsiburadaSku"`
	AvailableStock int64  `json:"availableStock"`
}

// HepsiburadaPriceItem updates the price of one listing
type HepsiburadaPriceItem struct {
	HepsiburadaSKU string `json:"hepsiburadaSku"`
	Price          string `json:"price"`
}

// HepsiburadaOrdersResponse is the paginated order listing response
type HepsiburadaOrdersResponse struct {
	Items      []HepsiburadaOrder `json:"items"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
	TotalCount int64              `json:"totalCount"`
}

// HepsiburadaOrder is one order in the listing
type HepsiburadaOrder struct {
	OrderNumber  string                 `json:"orderNumber"`
	Status       string                 `json:"status"`
	CustomerName string                 `json:"customerName"`
	City         string                 `json:"city"`
	TotalPrice   HepsiburadaAmount      `json:"totalPrice"`
	OrderDate    string                 `json:"orderDate"` // RFC3339
	Lines        []HepsiburadaOrderLine `json:"lines"`
}

// HepsiburadaAmount is a money value with its currency
type HepsiburadaAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// HepsiburadaOrderLine is one line item in an order
type HepsiburadaOrderLine struct {
	LineID         string            `json:"id"`
	HepsiburadaSKU string            `json:"hepsiburadaSku"`
	MerchantSKU    string            `json:"merchantSku"`
	Quantity       int64             `json:"quantity"`
	UnitPrice      HepsiburadaAmount `json:"unitPrice"`
}

// HepsiburadaStatusUpdateRequest updates an order's delivery status
type HepsiburadaStatusUpdateRequest struct {
	Status         string `json:"status"`
	CargoCompany   string `json:"cargoCompany,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// HepsiburadaWebhookPayload is the body of a Hepsiburada webhook delivery
type HepsiburadaWebhookPayload struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	CreatedAt string            `json:"createdAt"` // RFC3339
	Order     *HepsiburadaOrder `json:"order,omitempty"`
	Listing   *HepsiburadaWebhookListing `json:"listing,omitempty"`
}

// HepsiburadaWebhookListing carries listing fields for stock/price events
type HepsiburadaWebhookListing struct {
	HepsiburadaSKU string `json:"hepsiburadaSku"`
	AvailableStock *int64 `json:"availableStock,omitempty"`
	Price          string `json:"price,omitempty"`
}

// Hepsiburada webhook event types
const (
	HepsiburadaEventOrderCreated  = "order.created"
	HepsiburadaEventOrderUpdated  = "order.statusChanged"
	HepsiburadaEventStockChanged  = "listing.stockChanged"
	HepsiburadaEventPriceChanged  = "listing.priceChanged"
)

// Hepsiburada order statuses
const (
	HepsiburadaStatusOpen       = "Open"
	HepsiburadaStatusPayed      = "Payed"
	HepsiburadaStatusPicking    = "Picking"
	HepsiburadaStatusShipped    = "Shipped"
	HepsiburadaStatusDelivered  = "Delivered"
	HepsiburadaStatusCancelled  = "Cancelled"
	HepsiburadaStatusReturned   = "Returned"
)
