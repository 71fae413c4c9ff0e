package handlers

import (
	"net/http"

	"agropos-system/internal/database/models"
	"agropos-system/internal/repository"
	"agropos-system/internal/server/middleware"
	"agropos-system/internal/services/cart"
	"agropos-system/internal/services/catalog"
	"agropos-system/internal/services/orders"
	"agropos-system/internal/services/payments"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StoreHandler serves the customer-facing storefront: cart, checkout and
// order history. Customers are resolved from the identity provider's
// subject on every request.
type StoreHandler struct {
	catalog    *catalog.Service
	cart       *cart.Service
	engine     *orders.Engine
	reconciler *payments.Reconciler
	store      repository.Store
	log        zerolog.Logger
}

func NewStoreHandler(
	catalogSvc *catalog.Service,
	cartSvc *cart.Service,
	engine *orders.Engine,
	reconciler *payments.Reconciler,
	store repository.Store,
	log zerolog.Logger,
) *StoreHandler {
	return &StoreHandler{
		catalog:    catalogSvc,
		cart:       cartSvc,
		engine:     engine,
		reconciler: reconciler,
		store:      store,
		log:        log,
	}
}

type AddToCartRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
}

type CheckoutRequest struct {
	// OrderID retries payment for an existing pending order instead of
	// creating a new one from the cart.
	OrderID       *int64 `json:"order_id,omitempty"`
	PaymentMethod string `json:"payment_method"`
	Phone         string `json:"phone"`
}

func (h *StoreHandler) customer(c *gin.Context) (*models.Customer, bool) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	cust, err := h.catalog.EnsureCustomer(c.Request.Context(), claims.Username, claims.Username, claims.Email)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return cust, true
}

func (h *StoreHandler) ListProducts(c *gin.Context) {
	items, err := h.catalog.ListProducts(c.Request.Context(), true)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (h *StoreHandler) GetCart(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	contents, err := h.cart.Get(c.Request.Context(), cust.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, contents)
}

func (h *StoreHandler) AddToCart(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.cart.Add(c.Request.Context(), cust.ID, req.ProductID, req.Quantity); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoreHandler) RemoveFromCart(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	id, err := pathID(c, "productID")
	if err != nil {
		return
	}
	if err := h.cart.Remove(c.Request.Context(), cust.ID, id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoreHandler) ClearCart(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	if err := h.cart.Clear(c.Request.Context(), cust.ID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout turns the cart into a pending online order, or retries payment
// for an existing one. A failed payment push never undoes the order or its
// stock deduction; the customer retries against the same order id.
func (h *StoreHandler) Checkout(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var order *models.Order
	if req.OrderID != nil {
		existing, err := h.store.OrderByID(c.Request.Context(), *req.OrderID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if existing.CustomerID == nil || *existing.CustomerID != cust.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		order = existing
	} else {
		contents, err := h.cart.Contents(c.Request.Context(), cust.ID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if len(contents) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
			return
		}

		in := orders.CreateOrderInput{
			Kind:       models.OrderKindSale,
			Channel:    models.ChannelWeb,
			CustomerID: &cust.ID,
		}
		for productID, qty := range contents {
			in.Lines = append(in.Lines, orders.CreateLine{ProductID: productID, Quantity: qty})
		}

		order, err = h.engine.CreateOrder(c.Request.Context(), in)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if err := h.cart.Clear(c.Request.Context(), cust.ID); err != nil {
			h.log.Warn().Err(err).Int64("customer_id", cust.ID).Msg("failed to clear cart after checkout")
		}
	}

	if req.PaymentMethod == "mpesa" {
		attempt, err := h.reconciler.InitiatePayment(c.Request.Context(), order.ID, req.Phone)
		if err != nil {
			// The order stands either way; surface the payment failure with
			// the order id so the client can retry.
			c.JSON(http.StatusBadGateway, gin.H{
				"order_id": order.ID,
				"status":   order.Status,
				"error":    "payment initiation failed, please try again",
			})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"order":               order,
			"checkout_request_id": attempt.CheckoutRequestID,
			"message":             "M-Pesa prompt sent to " + attempt.Phone,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (h *StoreHandler) MyOrders(c *gin.Context) {
	cust, ok := h.customer(c)
	if !ok {
		return
	}
	items, err := h.store.ListOrders(c.Request.Context(), repository.OrderFilter{
		Kind:       models.OrderKindSale,
		CustomerID: cust.ID,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": items})
}
