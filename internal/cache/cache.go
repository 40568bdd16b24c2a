package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize 是内存缓存默认保留的条目数。
const DefaultMemorySize = 1024

// Cache 是一个简单的字符串键值缓存。
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// Memory 是有容量上限的进程内缓存，超出容量时淘汰最久未使用的条目。
// ttl 为 0 表示永不过期。
type Memory struct {
	items *lru.Cache[string, memoryItem]
	now   func() time.Time
}

// NewMemory 创建内存缓存，size 不大于 0 时使用 DefaultMemorySize。
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	// 只有 size 非正时才会返回错误。
	items, _ := lru.New[string, memoryItem](size)
	return &Memory{items: items, now: time.Now}
}

// Get 读取缓存，过期项视为不存在。
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	item, ok := m.items.Get(key)
	if !ok {
		return "", false, nil
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		m.items.Remove(key)
		return "", false, nil
	}
	return item.value, true, nil
}

// Set 写入缓存。
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items.Add(key, item)
	return nil
}

// Close 清空缓存。
func (m *Memory) Close() error {
	m.items.Purge()
	return nil
}
