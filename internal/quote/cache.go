// internal/quote/cache.go
package quote

import "sync"

// Cache хранит не более одной котировки на символ.
// Пишет в него только stream-коннектор, читать можно из любого числа горутин.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewCache создаёт пустой кэш.
func NewCache() *Cache {
	return &Cache{quotes: make(map[string]Quote)}
}

// Put безусловно заменяет запись для символа q.ID.
func (c *Cache) Put(q Quote) {
	q.ID = Normalize(q.ID)
	c.mu.Lock()
	c.quotes[q.ID] = q
	c.mu.Unlock()
}

// PutIfNewer сохраняет q, если в кэше нет записи с более поздним Time.
// Возвращает false, если q устарела и отброшена.
func (c *Cache) PutIfNewer(q Quote) bool {
	q.ID = Normalize(q.ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.quotes[q.ID]; ok && cur.Time > q.Time {
		return false
	}
	c.quotes[q.ID] = q
	return true
}

// Snapshot возвращает независимую копию всего кэша.
func (c *Cache) Snapshot() map[string]Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Quote, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}

// Len — число символов в кэше.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
