package inventory

import (
	"context"
	"time"

	"go-gin-bus-reservation/internal/cache"
	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/internal/repository"
	"go-gin-bus-reservation/pkg/logger"

	"go.uber.org/zap"
)

// Inventory 依路線與日期提供可預訂票券。空結果是合法結果，不是錯誤。
type Inventory interface {
	Search(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error)
}

// DefaultTickets 模擬庫存的固定票券
func DefaultTickets() []model.Ticket {
	return []model.Ticket{
		{
			ID:             1,
			Carrier:        "Express Cameroon",
			Class:          model.TicketClassStandard,
			Price:          5000,
			TotalSeats:     45,
			AvailableSeats: 12,
			Features:       []string{"Comfortable seats", "Insurance included", "Air conditioning"},
		},
		{
			ID:             2,
			Carrier:        "Luxury Travel VIP",
			Class:          model.TicketClassVIP,
			Price:          12000,
			TotalSeats:     30,
			AvailableSeats: 8,
			Features:       []string{"Free WiFi", "Refreshments", "Reclining seats", "Priority boarding"},
		},
		{
			ID:             3,
			Carrier:        "Central Voyages",
			Class:          model.TicketClassStandard,
			Price:          4500,
			TotalSeats:     50,
			AvailableSeats: 20,
			Features:       []string{"Comfortable seats", "Insurance included", "Luggage space"},
		},
		{
			ID:             4,
			Carrier:        "Premium Bus Services",
			Class:          model.TicketClassVIP,
			Price:          15000,
			TotalSeats:     25,
			AvailableSeats: 5,
			Features:       []string{"High-speed WiFi", "Premium snacks", "Spacious seats", "Personalized service"},
		},
		{
			ID:             5,
			Carrier:        "Garanti Express",
			Class:          model.TicketClassStandard,
			Price:          6000,
			TotalSeats:     40,
			AvailableSeats: 0,
			Features:       []string{"Comfortable seats", "Luggage space"},
		},
	}
}

// SimulatedInventory 以固定延遲回傳固定票券，可透過 context 取消
type SimulatedInventory struct {
	latency time.Duration
	tickets []model.Ticket
}

func NewSimulatedInventory(latency time.Duration, tickets []model.Ticket) *SimulatedInventory {
	return &SimulatedInventory{latency: latency, tickets: tickets}
}

func (s *SimulatedInventory) Search(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	tickets := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		tickets = append(tickets, t.Clone())
	}
	return tickets, nil
}

// RepositoryInventory 從 Postgres 票券目錄查詢
type RepositoryInventory struct {
	repo repository.TicketRepository
}

func NewRepositoryInventory(repo repository.TicketRepository) *RepositoryInventory {
	return &RepositoryInventory{repo: repo}
}

func (r *RepositoryInventory) Search(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error) {
	return r.repo.ListByRoute(ctx, query)
}

// CachedInventory 先查搜尋快取，未命中再查下游並回填
type CachedInventory struct {
	next  Inventory
	cache cache.SearchCache
}

func NewCachedInventory(next Inventory, c cache.SearchCache) *CachedInventory {
	return &CachedInventory{next: next, cache: c}
}

func (c *CachedInventory) Search(ctx context.Context, query model.RouteQuery) ([]model.Ticket, error) {
	if tickets, ok := c.cache.Get(ctx, query); ok {
		return tickets, nil
	}

	tickets, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, query, tickets); err != nil {
		// 快取失敗不影響查詢結果
		logger.WithComponent("inventory").Warn("cache search result failed", zap.Error(err))
	}
	return tickets, nil
}
