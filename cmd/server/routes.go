package main

import (
	"agropos-system/internal/server/handlers"
	"agropos-system/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

func setupRouter(
	jwtSecret []byte,
	staff *handlers.StaffHandler,
	store *handlers.StoreHandler,
	payment *handlers.PaymentHandler,
) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit("120-M"))

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		// Provider callbacks carry no auth; the reconciler discards
		// anything it cannot match.
		public.POST("/payments/mpesa/callback", payment.MpesaCallback)
		public.GET("/store/products", store.ListProducts)
	}

	// --- Customer API Group ---
	customer := r.Group("/api/v1/store")
	customer.Use(middleware.JWTAuth(jwtSecret))
	{
		customer.GET("/cart", store.GetCart)
		customer.POST("/cart/items", store.AddToCart)
		customer.DELETE("/cart/items/:productID", store.RemoveFromCart)
		customer.DELETE("/cart", store.ClearCart)
		customer.POST("/checkout", store.Checkout)
		customer.GET("/orders", store.MyOrders)
	}

	// --- Staff API Group ---
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret), middleware.StaffOnly())
	{
		products := admin.Group("/products")
		{
			products.POST("", staff.CreateProduct)
			products.GET("", staff.ListProducts)
			products.GET("/:id", staff.GetProduct)
			products.PUT("/:id", staff.UpdateProduct)
			products.DELETE("/:id", staff.DeleteProduct)
		}

		admin.POST("/purchases", staff.CreatePurchase)
		admin.POST("/sales", staff.CreatePOSSale)

		ordersGroup := admin.Group("/orders")
		{
			ordersGroup.GET("", staff.ListOrders)
			ordersGroup.GET("/:id", staff.GetOrder)
			ordersGroup.POST("/:id/approve", staff.ApproveOrder)
		}

		stock := admin.Group("/stock")
		{
			stock.GET("/movements", staff.ListMovements)
			stock.POST("/adjust", staff.AdjustStock)
			stock.GET("/low", staff.LowStock)
		}

		reports := admin.Group("/reports")
		{
			reports.GET("/revenue", staff.Revenue)
			reports.GET("/sales/recent", staff.RecentSales)
			reports.GET("/dashboard", staff.Dashboard)
		}

		admin.POST("/suppliers", staff.CreateSupplier)
		admin.GET("/suppliers", staff.ListSuppliers)
		admin.POST("/customers", staff.CreateCustomer)
		admin.GET("/customers", staff.ListCustomers)
		admin.POST("/categories", staff.CreateCategory)
		admin.GET("/categories", staff.ListCategories)
		admin.POST("/units", staff.CreateUnit)
		admin.GET("/units", staff.ListUnits)
	}

	return r
}
