package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig 用于配置LRU缓存的行为。
// Capacity 与 MaxWeight 至少要设置一个，两者都设置时任一超限都会触发淘汰。
type CacheConfig[K comparable, V any] struct {
	// Capacity 是缓存的最大元素数量。为 0 时不按数量限制。
	Capacity int
	// MaxWeight 是缓存中所有元素的最大权重总和。为 0 时不按权重限制。
	MaxWeight int
	// TTL 是元素的存活时间。为 0 时元素永不过期。
	TTL time.Duration
}

// item 是链表节点中存放的实际数据。
type item[K comparable, V any] struct {
	key       K
	value     V
	weight    int
	expiresAt time.Time
}

// LRUCache 是一个支持泛型、可配置且线程安全的LRU缓存。
// 过期元素在 Get 时被动淘汰，没有后台清理协程。
type LRUCache[K comparable, V any] struct {
	config CacheConfig[K, V]
	order  *list.List
	items  map[K]*list.Element
	weight int
	mu     sync.Mutex
}

// NewWithConfig 使用指定的配置创建一个LRU缓存实例。
func NewWithConfig[K comparable, V any](config CacheConfig[K, V]) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 && config.MaxWeight <= 0 {
		return nil, fmt.Errorf("必须设置 Capacity 或 MaxWeight 中的至少一个")
	}
	return &LRUCache[K, V]{
		config: config,
		order:  list.New(),
		items:  make(map[K]*list.Element),
	}, nil
}

// deadline 计算新写入元素的过期时间，TTL 为 0 时返回零值。
func (c *LRUCache[K, V]) deadline() time.Time {
	if c.config.TTL > 0 {
		return time.Now().Add(c.config.TTL)
	}
	return time.Time{}
}

// Get 根据键获取一个值，命中的元素被标记为最近使用。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	// TTL 过期的元素在这里被动淘汰。
	it := elem.Value.(*item[K, V])
	if !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return it.value, true
}

// Put 向缓存中添加或更新一个键值对，并指定其权重。
// 只按数量淘汰时 weight 传 1 即可。
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		it := elem.Value.(*item[K, V])
		c.weight += weight - it.weight
		it.value = value
		it.weight = weight
		it.expiresAt = c.deadline()
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&item[K, V]{
			key:       key,
			value:     value,
			weight:    weight,
			expiresAt: c.deadline(),
		})
		c.items[key] = elem
		c.weight += weight
	}

	// 一个权重很大的新元素可能需要连续淘汰多个旧元素。
	for c.overLimit() {
		c.evictOldest()
	}
}

// overLimit 检查缓存是否超出容量或权重限制。调用方必须已持有锁。
func (c *LRUCache[K, V]) overLimit() bool {
	if c.config.Capacity > 0 && c.order.Len() > c.config.Capacity {
		return true
	}
	return c.config.MaxWeight > 0 && c.weight > c.config.MaxWeight
}

// evictOldest 淘汰最久未使用的元素。调用方必须已持有锁。
func (c *LRUCache[K, V]) evictOldest() {
	if elem := c.order.Back(); elem != nil {
		c.remove(elem)
	}
}

// remove 从链表和map中移除元素。调用方必须已持有锁。
func (c *LRUCache[K, V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	it := elem.Value.(*item[K, V])
	delete(c.items, it.key)
	c.weight -= it.weight
}
