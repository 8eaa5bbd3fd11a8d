package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go-gin-bus-reservation/internal/model"

	"github.com/redis/go-redis/v9"
)

type SearchCache interface {
	// 取得：命中時回傳票券列表
	Get(ctx context.Context, query model.RouteQuery) ([]model.Ticket, bool)
	// 設定：寫入搜尋結果（含空結果）
	Set(ctx context.Context, query model.RouteQuery, tickets []model.Ticket) error
}

type RedisSearchCacheImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSearchCache(client *redis.Client, ttl time.Duration) SearchCache {
	return &RedisSearchCacheImpl{
		client: client,
		ttl:    ttl,
	}
}

// 搜尋結果 key
func (c *RedisSearchCacheImpl) getKey(query model.RouteQuery) string {
	normalized := model.RouteQuery{
		DepartureCity:   strings.ToLower(strings.TrimSpace(query.DepartureCity)),
		DestinationCity: strings.ToLower(strings.TrimSpace(query.DestinationCity)),
		Date:            query.Date,
	}
	data, _ := json.Marshal(normalized)
	hash := sha256.Sum256(data)
	return "search:" + hex.EncodeToString(hash[:])
}

func (c *RedisSearchCacheImpl) Get(ctx context.Context, query model.RouteQuery) ([]model.Ticket, bool) {
	data, err := c.client.Get(ctx, c.getKey(query)).Bytes()
	if err != nil {
		return nil, false
	}

	var tickets []model.Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return nil, false
	}
	return tickets, true
}

func (c *RedisSearchCacheImpl) Set(ctx context.Context, query model.RouteQuery, tickets []model.Ticket) error {
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	data, err := json.Marshal(tickets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.getKey(query), data, c.ttl).Err()
}
