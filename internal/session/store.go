package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store 保存訂位 session。讀寫都是副本，呼叫端修改回傳值不會影響已保存的狀態。
type Store interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func encode(s *model.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*model.Session, error) {
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreImpl 單一行程使用的 session 儲存。過期的 session 在讀寫時移除，
// Create 時每隔一個 TTL 清掃一次整個 map。
type MemoryStoreImpl struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStore ttl 為 0 時 session 不會過期
func NewMemoryStore(ttl time.Duration) Store {
	return &MemoryStoreImpl{
		sessions: make(map[uuid.UUID]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (m *MemoryStoreImpl) put(s *model.Session, now time.Time) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	entry := memoryEntry{data: data}
	if m.ttl > 0 {
		entry.expiresAt = now.Add(m.ttl)
	}
	m.sessions[s.ID] = entry
	return nil
}

// sweep 呼叫端需持有寫鎖
func (m *MemoryStoreImpl) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	for id, entry := range m.sessions {
		if entry.expired(now) {
			delete(m.sessions, id)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStoreImpl) Create(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	return m.put(s, now)
}

func (m *MemoryStoreImpl) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	if now := m.now(); entry.expired(now) {
		m.mu.Lock()
		// 重新檢查，避免刪掉剛被 Create 取代的新 session
		if current, ok := m.sessions[id]; ok && current.expired(now) {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, apperrors.ErrSessionNotFound
	}
	return decode(entry.data)
}

// Save 只更新仍有效的 session；已過期的不會被復活
func (m *MemoryStoreImpl) Save(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	entry, ok := m.sessions[s.ID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if entry.expired(now) {
		delete(m.sessions, s.ID)
		return apperrors.ErrSessionNotFound
	}
	return m.put(s, now)
}

func (m *MemoryStoreImpl) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

const keyPrefix = "reservation:session:"

// RedisStoreImpl 多實例部署共用的 session 儲存，每次寫入都會刷新 TTL
type RedisStoreImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &RedisStoreImpl{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStoreImpl) getKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (r *RedisStoreImpl) Create(ctx context.Context, s *model.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.getKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStoreImpl) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	data, err := r.client.Get(ctx, r.getKey(id)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(data)
}

func (r *RedisStoreImpl) Save(ctx context.Context, s *model.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	// XX: 只更新既有 session，過期後不會被復活
	ok, err := r.client.SetXX(ctx, r.getKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *RedisStoreImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, r.getKey(id)).Err()
}
