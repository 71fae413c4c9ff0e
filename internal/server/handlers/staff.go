package handlers

import (
	"net/http"
	"strconv"
	"time"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/repository"
	"agropos-system/internal/services/catalog"
	"agropos-system/internal/services/inventory"
	"agropos-system/internal/services/orders"
	"agropos-system/internal/services/payments"
	"agropos-system/internal/services/reports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type StaffHandler struct {
	catalog    *catalog.Service
	inventory  *inventory.Service
	engine     *orders.Engine
	reconciler *payments.Reconciler
	reports    *reports.Service
	store      repository.Store
	log        zerolog.Logger
}

func NewStaffHandler(
	catalogSvc *catalog.Service,
	inventorySvc *inventory.Service,
	engine *orders.Engine,
	reconciler *payments.Reconciler,
	reportsSvc *reports.Service,
	store repository.Store,
	log zerolog.Logger,
) *StaffHandler {
	return &StaffHandler{
		catalog:    catalogSvc,
		inventory:  inventorySvc,
		engine:     engine,
		reconciler: reconciler,
		reports:    reportsSvc,
		store:      store,
		log:        log,
	}
}

// Request structs
type ProductRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	UnitID       *int64          `json:"unit_id,omitempty"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ReorderLevel int32           `json:"reorder_level"`
	IsActive     *bool           `json:"is_active,omitempty"`
}

type PurchaseLineRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

type CreatePurchaseRequest struct {
	SupplierID int64                 `json:"supplier_id" binding:"required"`
	Lines      []PurchaseLineRequest `json:"lines" binding:"required,min=1"`
}

type SaleLineRequest struct {
	ProductID int64            `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateSaleRequest struct {
	CustomerID *int64            `json:"customer_id,omitempty"`
	Lines      []SaleLineRequest `json:"lines" binding:"required,min=1"`
}

type AdjustStockRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	Reason    string          `json:"reason" binding:"required"`
}

func (h *StaffHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := models.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		UnitID:       req.UnitID,
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
		ReorderLevel: req.ReorderLevel,
		IsActive:     true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalog.CreateProduct(c.Request.Context(), &p); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *StaffHandler) UpdateProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := models.Product{
		ID:           id,
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		UnitID:       req.UnitID,
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
		ReorderLevel: req.ReorderLevel,
		IsActive:     true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := h.catalog.UpdateProduct(c.Request.Context(), &p); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *StaffHandler) GetProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}
	p, err := h.catalog.Product(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	qty, err := h.inventory.StockQuantity(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p, "stock_quantity": qty})
}

func (h *StaffHandler) ListProducts(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	items, err := h.catalog.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

func (h *StaffHandler) DeleteProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StaffHandler) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := orders.CreateOrderInput{
		Kind:       models.OrderKindPurchase,
		SupplierID: &req.SupplierID,
	}
	for _, l := range req.Lines {
		price := l.UnitPrice
		in.Lines = append(in.Lines, orders.CreateLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: &price,
		})
	}
	order, err := h.engine.CreateOrder(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *StaffHandler) CreatePOSSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := orders.CreateOrderInput{
		Kind:       models.OrderKindSale,
		Channel:    models.ChannelPOS,
		CustomerID: req.CustomerID,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, orders.CreateLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	order, err := h.engine.CreateOrder(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *StaffHandler) ListOrders(c *gin.Context) {
	f := repository.OrderFilter{
		Kind:    c.Query("kind"),
		Channel: c.Query("channel"),
		Status:  c.Query("status"),
		Limit:   50,
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 1 {
		f.Offset = (page - 1) * f.Limit
	}
	items, err := h.store.ListOrders(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": items})
}

func (h *StaffHandler) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}
	order, err := h.store.OrderByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *StaffHandler) ApproveOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		return
	}
	order, err := h.reconciler.ApproveOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *StaffHandler) ListMovements(c *gin.Context) {
	var productID int64
	if v := c.Query("product_id"); v != "" {
		productID, _ = strconv.ParseInt(v, 10, 64)
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.inventory.Movements(c.Request.Context(), productID, limit, offset)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": items})
}

func (h *StaffHandler) AdjustStock(c *gin.Context) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	movement, err := h.inventory.Adjust(c.Request.Context(), req.ProductID, req.Quantity, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *StaffHandler) LowStock(c *gin.Context) {
	items, err := h.inventory.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"low_stock": items})
}

func (h *StaffHandler) Revenue(c *gin.Context) {
	from, to, err := reportWindow(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	total, err := h.reports.Revenue(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "revenue": total})
}

func (h *StaffHandler) RecentSales(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	items, err := h.reports.RecentSales(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": items})
}

func (h *StaffHandler) Dashboard(c *gin.Context) {
	d, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *StaffHandler) CreateSupplier(c *gin.Context) {
	var s models.Supplier
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.CreateSupplier(c.Request.Context(), &s); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *StaffHandler) ListSuppliers(c *gin.Context) {
	items, err := h.catalog.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": items})
}

func (h *StaffHandler) CreateCustomer(c *gin.Context) {
	var cust models.Customer
	if err := c.ShouldBindJSON(&cust); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.CreateCustomer(c.Request.Context(), &cust); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h *StaffHandler) ListCustomers(c *gin.Context) {
	items, err := h.catalog.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": items})
}

func (h *StaffHandler) CreateCategory(c *gin.Context) {
	var cat models.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.CreateCategory(c.Request.Context(), &cat); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (h *StaffHandler) ListCategories(c *gin.Context) {
	items, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": items})
}

func (h *StaffHandler) CreateUnit(c *gin.Context) {
	var u models.Unit
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.catalog.CreateUnit(c.Request.Context(), &u); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *StaffHandler) ListUnits(c *gin.Context) {
	items, err := h.catalog.ListUnits(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": items})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, errs.ErrNotFound
	}
	return id, nil
}

// reportWindow parses ?period=today|weekly|monthly|yearly or an explicit
// ?from=YYYY-MM-DD&to=YYYY-MM-DD pair (to is inclusive).
func reportWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	if from := c.Query("from"); from != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, &errs.ValidationError{Reason: "from must be YYYY-MM-DD"}
		}
		end := now
		if to := c.Query("to"); to != "" {
			t, err := time.Parse("2006-01-02", to)
			if err != nil {
				return time.Time{}, time.Time{}, &errs.ValidationError{Reason: "to must be YYYY-MM-DD"}
			}
			end = t.AddDate(0, 0, 1)
		}
		return start, end, nil
	}

	switch c.DefaultQuery("period", "today") {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), now, nil
	case "weekly":
		return now.AddDate(0, 0, -7), now, nil
	case "monthly":
		return now.AddDate(0, 0, -30), now, nil
	case "yearly":
		return now.AddDate(0, 0, -365), now, nil
	default:
		return time.Time{}, time.Time{}, &errs.ValidationError{Reason: "unknown report period"}
	}
}
