package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/interfaces/http/dto"
)

// CatalogWriter is the slice of the catalog service the handler needs
type CatalogWriter interface {
	CreateProduct(ctx context.Context, sku, title string, price decimal.Decimal, quantity int64) (*catalog.Product, error)
	ChangePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*catalog.Product, error)
	ChangeStock(ctx context.Context, id uuid.UUID, quantity int64) (*catalog.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*catalog.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status integration.OrderStatus) (*catalog.Order, error)
	ShipOrder(ctx context.Context, id uuid.UUID, carrier, trackingNumber string) (*catalog.Order, error)
}

// OrderDirtier flags an order mapping for a fresh outbound push
type OrderDirtier interface {
	DirtyOrder(ctx context.Context, orderID uuid.UUID, code integration.MarketplaceCode, version int64) error
}

// CatalogHandler exposes the merchant-facing catalog write surface. Product
// edits bump the product version, which the sync workers pick up on their
// next change scan; order status edits flag the order mapping directly.
type CatalogHandler struct {
	BaseHandler
	service CatalogWriter
	dirtier OrderDirtier
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service CatalogWriter, dirtier OrderDirtier) *CatalogHandler {
	return &CatalogHandler{service: service, dirtier: dirtier}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/catalog/products")
	products.POST("", h.Create)
	products.GET("/:id", h.Get)
	products.PUT("/:id/price", h.ChangePrice)
	products.PUT("/:id/stock", h.ChangeStock)

	orders := rg.Group("/catalog/orders")
	orders.GET("/:id", h.GetOrder)
	orders.PUT("/:id/status", h.UpdateOrderStatus)
	orders.PUT("/:id/ship", h.ShipOrder)
}

type createProductRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Quantity int64  `json:"quantity" binding:"min=0"`
}

type changePriceRequest struct {
	Price string `json:"price" binding:"required"`
}

type changeStockRequest struct {
	Quantity int64 `json:"quantity" binding:"min=0"`
}

// ProductResponse is the HTTP representation of a catalog product
type ProductResponse struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Title        string    `json:"title"`
	Price        string    `json:"price"`
	Quantity     int64     `json:"quantity"`
	OnSale       bool      `json:"on_sale"`
	Version      int64     `json:"version"`
	PriceChanged bool      `json:"price_changed"`
	StockChanged bool      `json:"stock_changed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		SKU:          p.SKU,
		Title:        p.Title,
		Price:        p.Price.String(),
		Quantity:     p.Quantity,
		OnSale:       p.OnSale,
		Version:      p.Version,
		PriceChanged: p.PriceChanged,
		StockChanged: p.StockChanged,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// Create handles POST /catalog/products
func (h *CatalogHandler) Create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.BadRequest(c, "invalid price: "+req.Price)
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), req.SKU, req.Title, price, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toProductResponse(product))
}

// Get handles GET /catalog/products/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	id, ok := h.productID(c)
	if !ok {
		return
	}
	product, err := h.service.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toProductResponse(product))
}

// ChangePrice handles PUT /catalog/products/:id/price
func (h *CatalogHandler) ChangePrice(c *gin.Context) {
	id, ok := h.productID(c)
	if !ok {
		return
	}
	var req changePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.BadRequest(c, "invalid price: "+req.Price)
		return
	}

	product, err := h.service.ChangePrice(c.Request.Context(), id, price)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toProductResponse(product))
}

// ChangeStock handles PUT /catalog/products/:id/stock
func (h *CatalogHandler) ChangeStock(c *gin.Context) {
	id, ok := h.productID(c)
	if !ok {
		return
	}
	var req changeStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	product, err := h.service.ChangeStock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toProductResponse(product))
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type shipOrderRequest struct {
	Carrier        string `json:"carrier" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// OrderResponse is the HTTP representation of a catalog order
type OrderResponse struct {
	ID              string    `json:"id"`
	MarketplaceCode string    `json:"marketplace_code"`
	ExternalOrderID string    `json:"external_order_id"`
	Status          string    `json:"status"`
	BuyerName       string    `json:"buyer_name,omitempty"`
	City            string    `json:"city,omitempty"`
	TotalAmount     string    `json:"total_amount"`
	Currency        string    `json:"currency,omitempty"`
	Carrier         string    `json:"carrier,omitempty"`
	TrackingNumber  string    `json:"tracking_number,omitempty"`
	Version         int64     `json:"version"`
	OrderedAt       time.Time `json:"ordered_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toOrderResponse(o *catalog.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID.String(),
		MarketplaceCode: o.MarketplaceCode.String(),
		ExternalOrderID: o.ExternalOrderID,
		Status:          o.Status.String(),
		BuyerName:       o.BuyerName,
		City:            o.City,
		TotalAmount:     o.TotalAmount.String(),
		Currency:        o.Currency,
		Carrier:         o.Carrier,
		TrackingNumber:  o.TrackingNumber,
		Version:         o.Version,
		OrderedAt:       o.OrderedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// GetOrder handles GET /catalog/orders/:id
func (h *CatalogHandler) GetOrder(c *gin.Context) {
	id, ok := h.entityID(c, "order")
	if !ok {
		return
	}
	order, err := h.service.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOrderResponse(order))
}

// UpdateOrderStatus handles PUT /catalog/orders/:id/status
func (h *CatalogHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.entityID(c, "order")
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	status := integration.OrderStatus(strings.ToUpper(req.Status))
	if !status.IsValid() {
		h.BadRequest(c, "invalid order status: "+req.Status)
		return
	}

	order, err := h.service.UpdateOrderStatus(c.Request.Context(), id, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.queueOrderPush(c, order) {
		return
	}
	h.Success(c, toOrderResponse(order))
}

// ShipOrder handles PUT /catalog/orders/:id/ship
func (h *CatalogHandler) ShipOrder(c *gin.Context) {
	id, ok := h.entityID(c, "order")
	if !ok {
		return
	}
	var req shipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	order, err := h.service.ShipOrder(c.Request.Context(), id, req.Carrier, req.TrackingNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.queueOrderPush(c, order) {
		return
	}
	h.Success(c, toOrderResponse(order))
}

// queueOrderPush flags the order mapping so the next sync cycle pushes the
// new status. The status change is already persisted; a flagging failure is
// reported so the caller repeats the idempotent request.
func (h *CatalogHandler) queueOrderPush(c *gin.Context, order *catalog.Order) bool {
	err := h.dirtier.DirtyOrder(c.Request.Context(), order.ID, order.MarketplaceCode, order.Version)
	if err != nil {
		if errors.Is(err, integration.ErrTransitionConflict) {
			h.Conflict(c, "Order is being synced, retry shortly")
			return false
		}
		h.InternalError(c, "Order updated but could not be queued for sync, retry the request")
		return false
	}
	return true
}

func (h *CatalogHandler) productID(c *gin.Context) (uuid.UUID, bool) {
	return h.entityID(c, "product")
}

func (h *CatalogHandler) entityID(c *gin.Context, noun string) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "invalid "+noun+" ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "invalid "+noun+" ID")
		return uuid.Nil, false
	}
	return id, true
}
