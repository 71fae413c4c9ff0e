package main

import (
	"log"
	"os"

	"agropos-system/config"
	"agropos-system/internal/database"
	"agropos-system/internal/notify"
	"agropos-system/internal/repository"
	"agropos-system/internal/server/handlers"
	"agropos-system/internal/services/cart"
	"agropos-system/internal/services/catalog"
	"agropos-system/internal/services/inventory"
	"agropos-system/internal/services/orders"
	"agropos-system/internal/services/payments"
	"agropos-system/internal/services/reports"

	"github.com/rs/zerolog"
)

func main() {
	cfg := config.LoadConfig()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "agropos").Logger()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	store := repository.NewStore(db)
	events := notify.NewRedisPublisher(redisClient, logger)

	catalogSvc := catalog.NewService(db, logger)
	inventorySvc := inventory.NewService(store, logger)
	engine := orders.NewEngine(store, events, logger)
	mpesa := payments.NewMpesaClient(cfg.Mpesa, logger)
	reconciler := payments.NewReconciler(store, mpesa, events, logger)
	reportsSvc := reports.NewService(store, redisClient, logger)
	cartSvc := cart.NewService(redisClient, db, logger)

	staffHandler := handlers.NewStaffHandler(catalogSvc, inventorySvc, engine, reconciler, reportsSvc, store, logger)
	storeHandler := handlers.NewStoreHandler(catalogSvc, cartSvc, engine, reconciler, store, logger)
	paymentHandler := handlers.NewPaymentHandler(reconciler, logger)

	r := setupRouter([]byte(cfg.Auth.JWTSecret), staffHandler, storeHandler, paymentHandler)

	log.Printf("🛒 agropos server listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}
