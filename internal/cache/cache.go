// Package cache 请求处理器使用的缓存抽象：进程内有界缓存、Redis 缓存以及两级组合
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/LJTian/GozaMadrid/internal/metrics"
)

// DefaultMaxEntries 进程内缓存的默认容量
const DefaultMaxEntries = 50

// Cache 通过依赖注入传给处理器，而不是包级全局变量
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
	storedAt  time.Time
}

// Memory 固定 TTL + 容量上限。超出上限时线性扫描删除写入时间最早的条目（不是 LRU）
type Memory[V any] struct {
	name       string
	mu         sync.Mutex
	items      map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

// NewMemory name 用于指标标签
func NewMemory[V any](name string, maxEntries int) *Memory[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory[V]{
		name:       name,
		items:      make(map[string]entry[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.items[key]
	if !ok {
		metrics.CacheLookup(m.name, false)
		return zero, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		metrics.CacheLookup(m.name, false)
		return zero, false
	}
	metrics.CacheLookup(m.name, true)
	return e.value, true
}

// Set ttl <= 0 表示不过期
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := entry[V]{value: value, storedAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.items[key] = e

	for len(m.items) > m.maxEntries {
		m.evictOldestLocked()
	}
}

func (m *Memory[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range m.items {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(m.items, oldestKey)
	}
}

// Len 当前条目数（含尚未清理的过期条目）
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Tiered L1 命中直接返回；L2 命中后回填 L1
type Tiered[V any] struct {
	L1    Cache[V]
	L2    Cache[V]
	L1TTL time.Duration
}

func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := t.L1.Get(ctx, key); ok {
		return v, true
	}
	v, ok := t.L2.Get(ctx, key)
	if ok {
		t.L1.Set(ctx, key, v, t.L1TTL)
	}
	return v, ok
}

func (t *Tiered[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	l1TTL := t.L1TTL
	if l1TTL <= 0 || (ttl > 0 && ttl < l1TTL) {
		l1TTL = ttl
	}
	t.L1.Set(ctx, key, value, l1TTL)
	t.L2.Set(ctx, key, value, ttl)
}

// Nop 不缓存任何内容
type Nop[V any] struct{}

func (Nop[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[V]) Set(context.Context, string, V, time.Duration) {}
