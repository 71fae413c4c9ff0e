// Package reports serves the read-only dashboard views. Everything here is
// derived data; bounded staleness is acceptable, so the summary is cached.
package reports

import (
	"context"
	"encoding/json"
	"time"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	dashboardCacheKey = "reports:dashboard"
	dashboardCacheTTL = 1 * time.Minute
)

type Dashboard struct {
	TodayRevenue     decimal.Decimal           `json:"today_revenue"`
	PendingWebOrders int64                     `json:"pending_web_orders"`
	LowStock         []repository.ProductStock `json:"low_stock"`
	OutOfStock       []repository.ProductStock `json:"out_of_stock"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

type Service struct {
	store repository.Store
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewService(store repository.Store, rdb *redis.Client, log zerolog.Logger) *Service {
	return &Service{store: store, rdb: rdb, log: log}
}

// Revenue sums completed sales inside [from, to).
func (s *Service) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	if !to.After(from) {
		return decimal.Zero, &errs.ValidationError{Reason: "report window must end after it starts"}
	}
	return s.store.RevenueBetween(ctx, from, to)
}

func (s *Service) RecentSales(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.store.ListOrders(ctx, repository.OrderFilter{
		Kind:   models.OrderKindSale,
		Status: models.StatusCompleted,
		Limit:  limit,
	})
}

// Dashboard assembles the staff landing page numbers, served from cache
// when a recent copy exists.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, dashboardCacheKey).Bytes(); err == nil {
			var cached Dashboard
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today, err := s.store.RevenueBetween(ctx, dayStart, now)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountPendingWebOrders(ctx)
	if err != nil {
		return nil, err
	}
	low, err := s.store.LowStock(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		TodayRevenue:     today,
		PendingWebOrders: pending,
		LowStock:         make([]repository.ProductStock, 0, len(low)),
		OutOfStock:       []repository.ProductStock{},
		GeneratedAt:      now,
	}
	for _, ps := range low {
		if ps.Quantity.IsPositive() {
			d.LowStock = append(d.LowStock, ps)
		} else {
			d.OutOfStock = append(d.OutOfStock, ps)
		}
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(d); err == nil {
			if err := s.rdb.Set(ctx, dashboardCacheKey, raw, dashboardCacheTTL).Err(); err != nil {
				s.log.Warn().Err(err).Msg("failed to cache dashboard")
			}
		}
	}
	return d, nil
}
