// Package tillapi is the local HTTP surface the till front end talks to: it
// edits the open cart against the stock cache and runs checkout.
package tillapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/client/cart"
	"github.com/rl1809/pos-inventory/internal/client/checkout"
	"github.com/rl1809/pos-inventory/internal/client/stockcache"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

type Handler struct {
	cart     *cart.Cart
	cache    *stockcache.Cache
	checkout *checkout.Service
	logger   *zap.Logger
}

type AddItemRequest struct {
	ID            string `json:"id" binding:"required"`
	ProductID     string `json:"product_id"`
	SKU           string `json:"sku"`
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	UnitSellMinor *int64 `json:"unit_sell_minor"`
}

type AddItemResponse struct {
	Quantity int                     `json:"quantity"`
	Added    int                     `json:"added"`
	Reason   domain.StockLimitReason `json:"reason,omitempty"`
}

type CheckoutRequest struct {
	SaleID  string   `json:"sale_id" binding:"required"`
	LineIDs []string `json:"line_ids"`
}

type CheckoutResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message,omitempty"`
	EventID   string                  `json:"event_id,omitempty"`
	Queued    bool                    `json:"queued,omitempty"`
	Partial   bool                    `json:"partial,omitempty"`
	Remaining int                     `json:"remaining"`
	Details   []domain.ShortageDetail `json:"details,omitempty"`
}

func New(c *cart.Cart, cache *stockcache.Cache, svc *checkout.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cart: c, cache: cache, checkout: svc, logger: logger}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/cart", h.Cart)
	r.POST("/cart/items", h.AddItem)
	r.DELETE("/cart/items/:id", h.RemoveItem)
	r.POST("/checkout", h.Checkout)
}

func (h *Handler) Cart(c *gin.Context) {
	c.JSON(http.StatusOK, h.cart.Items())
}

func (h *Handler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	item := domain.CartItem{
		ID:            req.ID,
		ProductID:     req.ProductID,
		SKU:           req.SKU,
		Barcode:       req.Barcode,
		Name:          req.Name,
		UnitSellMinor: req.UnitSellMinor,
	}
	res := h.cart.Add(item, req.Quantity, h.cache.Stock(item.StockKeys()))
	c.JSON(http.StatusOK, AddItemResponse{Quantity: res.NextQty, Added: res.AddedQty, Reason: res.Reason()})
}

func (h *Handler) RemoveItem(c *gin.Context) {
	if !h.cart.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no such cart line"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckoutResponse{Message: err.Error()})
		return
	}

	res, err := h.checkout.Checkout(c.Request.Context(), req.LineIDs, req.SaleID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, CheckoutResponse{
			Success:   true,
			EventID:   res.EventID,
			Queued:    res.Queued,
			Partial:   res.Partition.IsPartial,
			Remaining: len(res.Partition.RemainingItems),
		})
	case errors.Is(err, checkout.ErrNothingToSell):
		c.JSON(http.StatusBadRequest, CheckoutResponse{Message: err.Error(), Remaining: len(h.cart.Items())})
	case errors.Is(err, domain.ErrInsufficientStock):
		c.JSON(http.StatusConflict, CheckoutResponse{
			Message:   err.Error(),
			Remaining: len(h.cart.Items()),
			Details:   domain.ShortageDetails(err),
		})
	case domain.IsRejection(err):
		c.JSON(http.StatusUnprocessableEntity, CheckoutResponse{Message: err.Error(), Remaining: len(h.cart.Items())})
	default:
		h.logger.Error("checkout failed", zap.String("sale_id", req.SaleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, CheckoutResponse{Message: "checkout failed", Remaining: len(h.cart.Items())})
	}
}
