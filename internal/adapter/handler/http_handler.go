package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/core/service"
	"github.com/rl1809/pos-inventory/internal/port"
)

type HTTPHandler struct {
	ledger *service.LedgerService
	guard  *service.AvailabilityGuard
	events *service.EventService
	logger *zap.Logger
}

type MovementHTTPRequest struct {
	StoreID       string `json:"store_id"`
	ProductID     string `json:"product_id"`
	MovementType  string `json:"movement_type"`
	Quantity      int    `json:"quantity"`
	UnitCostMinor *int64 `json:"unit_cost_minor"`
	UnitSellMinor *int64 `json:"unit_sell_minor"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Barcode       string `json:"barcode"`
}

type AvailabilityHTTPRequest struct {
	Items []struct {
		SkuID    string `json:"sku_id"`
		Quantity int    `json:"quantity"`
		Name     string `json:"name"`
	} `json:"items"`
}

type EventHTTPRequest struct {
	EventID   string          `json:"event_id"`
	DeviceID  string          `json:"device_id"`
	StoreID   string          `json:"store_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type HTTPResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Code      string                  `json:"code,omitempty"`
	Duplicate bool                    `json:"duplicate,omitempty"`
	Details   []domain.ShortageDetail `json:"details,omitempty"`
}

func NewHTTPHandler(ledger *service.LedgerService, guard *service.AvailabilityGuard, events *service.EventService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{ledger: ledger, guard: guard, events: events, logger: logger}
}

// Register mounts the API routes on r.
func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/v1")
	api.POST("/movements", h.ApplyMovement)
	api.POST("/events", h.SubmitEvent)
	api.GET("/stores/:store/stock", h.ListStock)
	api.POST("/stores/:store/availability", h.EnsureAvailability)
	api.GET("/stores/:store/reconcile", h.Reconcile)
	api.GET("/stores/:store/products/:product/ledger-stock", h.FetchLedgerStock)
}

func (h *HTTPHandler) ApplyMovement(c *gin.Context) {
	var req MovementHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	entry, err := h.ledger.ApplyMovement(c.Request.Context(), domain.Movement{
		StoreID:       req.StoreID,
		ProductID:     req.ProductID,
		Type:          domain.MovementType(req.MovementType),
		Quantity:      req.Quantity,
		UnitCostMinor: req.UnitCostMinor,
		UnitSellMinor: req.UnitSellMinor,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Barcode:       req.Barcode,
	})
	if err != nil {
		h.writeError(c, "apply movement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "movement applied", "entry_id": entry.ID})
}

func (h *HTTPHandler) FetchLedgerStock(c *gin.Context) {
	store, product := c.Param("store"), c.Param("product")
	qty, err := h.ledger.FetchLedgerStock(c.Request.Context(), store, product)
	if err != nil {
		h.writeError(c, "fetch ledger stock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store_id": store, "product_id": product, "quantity": qty})
}

func (h *HTTPHandler) EnsureAvailability(c *gin.Context) {
	var req AvailabilityHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	items := make([]service.AvailabilityItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.AvailabilityItem{SkuID: it.SkuID, Quantity: it.Quantity, Name: it.Name})
	}
	if err := h.guard.EnsureAvailability(c.Request.Context(), c.Param("store"), items); err != nil {
		h.writeError(c, "ensure availability", err)
		return
	}
	c.JSON(http.StatusOK, HTTPResponse{Success: true, Message: "available"})
}

func (h *HTTPHandler) ListStock(c *gin.Context) {
	levels, err := h.ledger.ListStock(c.Request.Context(), c.Param("store"))
	if err != nil {
		h.writeError(c, "list stock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

func (h *HTTPHandler) Reconcile(c *gin.Context) {
	drift, err := h.ledger.Reconcile(c.Request.Context(), c.Param("store"))
	if err != nil {
		h.writeError(c, "reconcile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": len(drift) == 0, "drift": drift})
}

func (h *HTTPHandler) SubmitEvent(c *gin.Context) {
	var req EventHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, HTTPResponse{Message: "invalid request body"})
		return
	}

	outcome, err := h.events.Process(c.Request.Context(), domain.InboundEvent{
		EventID:   req.EventID,
		DeviceID:  req.DeviceID,
		StoreID:   req.StoreID,
		EventType: req.EventType,
		Payload:   req.Payload,
	})
	if err != nil {
		h.writeError(c, "submit event", err)
		return
	}
	if outcome == service.OutcomeDuplicate {
		c.JSON(http.StatusOK, HTTPResponse{Success: true, Duplicate: true, Message: "already processed"})
		return
	}
	c.JSON(http.StatusOK, HTTPResponse{Success: true, Message: "event applied"})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeError(c *gin.Context, op string, err error) {
	code := domain.ErrorCode(err)
	switch {
	case code == domain.CodeInsufficientStock:
		c.JSON(http.StatusConflict, HTTPResponse{Code: code, Message: err.Error(), Details: domain.ShortageDetails(err)})
	case code != "":
		c.JSON(http.StatusBadRequest, HTTPResponse{Code: code, Message: err.Error()})
	case errors.Is(err, port.ErrLockTimeout):
		c.JSON(http.StatusServiceUnavailable, HTTPResponse{Message: "stock is busy, retry"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, HTTPResponse{Message: "internal error"})
	}
}
