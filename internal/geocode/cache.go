package geocode

import (
	"container/list"
	"context"
	"sync"
	"time"

	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
	"parking-rank/internal/region"
)

// DefaultCacheTTL 地理编码结果保留 7 天
const DefaultCacheTTL = 7 * 24 * time.Hour

// 文档注释：缓存条目
// 约束：写入后不可修改，重新解析时整体覆盖；Found=false 为"无结果"标记，Miss 记录当时的失败类别。
type Entry struct {
	Key       string    `json:"key"`
	Found     bool      `json:"found"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Label     string    `json:"label"`
	Provider  string    `json:"provider"`
	Miss      errs.Kind `json:"miss,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Entry) Point() geo.Point { return geo.Point{Lat: e.Lat, Lon: e.Lon} }

// 文档注释：缓存存储后端
// 约束：只负责存取，不判断过期；Get 未命中返回 (Entry{}, false, nil)。实现需可并发调用。
// DeleteExpired 只在存储中的条目 ExpiresAt 仍等于 expiresAt 时删除，并发写入的新条目保留。
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, key string, expiresAt time.Time) error
}

// 文档注释：带过期时间的地理编码缓存
// 背景：过期时间随条目存储，每次读取都与 now() 比较；不依赖后端自身的 TTL 机制。
// 约束：后端错误只记录日志并按未命中处理，缓存故障不阻断解析。
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// SetClock 替换时钟（测试用）
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Key 缓存键：归一化后的输入文本
func Key(text string) string { return region.Normalize(text) }

// 文档注释：读取
// 约束：过期条目视为未命中并尽力删除（只删读到的那一条）；返回的条目一定满足 now < ExpiresAt。
func (c *Cache) Get(ctx context.Context, text string) (Entry, bool) {
	key := Key(text)
	if key == "" {
		return Entry{}, false
	}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.L().Warn("geocode_cache_get_error", "key", key, "err", err)
		metrics.GeocodeCacheMissesTotal.Inc()
		return Entry{}, false
	}
	if !ok {
		metrics.GeocodeCacheMissesTotal.Inc()
		return Entry{}, false
	}
	if !c.now().Before(e.ExpiresAt) {
		metrics.GeocodeCacheExpiredTotal.Inc()
		logger.L().Debug("geocode_cache_expired", "key", key, "expires_at", e.ExpiresAt)
		if err := c.store.DeleteExpired(ctx, key, e.ExpiresAt); err != nil {
			logger.L().Debug("geocode_cache_delete_error", "key", key, "err", err)
		}
		return Entry{}, false
	}
	metrics.GeocodeCacheHitsTotal.Inc()
	return e, true
}

// PutHit 写入成功解析的结果
func (c *Cache) PutHit(ctx context.Context, text string, h Hit) {
	c.put(ctx, Entry{Key: Key(text), Found: true, Lat: h.Result.Point.Lat, Lon: h.Result.Point.Lon, Label: h.Result.DisplayName, Provider: h.Provider})
}

// PutMiss 写入"无结果"标记
func (c *Cache) PutMiss(ctx context.Context, text string, kind errs.Kind) {
	c.put(ctx, Entry{Key: Key(text), Miss: kind})
}

func (c *Cache) put(ctx context.Context, e Entry) {
	if e.Key == "" {
		return
	}
	now := c.now()
	e.CreatedAt = now
	e.ExpiresAt = now.Add(c.ttl)
	if err := c.store.Put(ctx, e); err != nil {
		logger.L().Warn("geocode_cache_put_error", "key", e.Key, "err", err)
	}
}

// 文档注释：进程内 LRU 存储
// 背景：单机部署的默认后端；容量满时淘汰最久未使用的条目。过期判断由 Cache 负责。
type MemoryStore struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[string]*list.Element
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 4096
	}
	return &MemoryStore{cap: capacity, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (s *MemoryStore) Get(_ context.Context, k string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.dict[k]; ok {
		s.lst.MoveToFront(e)
		return e.Value.(Entry), true, nil
	}
	return Entry{}, false, nil
}

func (s *MemoryStore) Put(_ context.Context, v Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.dict[v.Key]; ok {
		e.Value = v
		s.lst.MoveToFront(e)
		return nil
	}
	s.dict[v.Key] = s.lst.PushFront(v)
	for s.lst.Len() > s.cap {
		back := s.lst.Back()
		if back == nil {
			break
		}
		delete(s.dict, back.Value.(Entry).Key)
		s.lst.Remove(back)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, k string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.dict[k]; ok {
		s.lst.Remove(e)
		delete(s.dict, k)
	}
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, k string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.dict[k]; ok && e.Value.(Entry).ExpiresAt.Equal(expiresAt) {
		s.lst.Remove(e)
		delete(s.dict, k)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lst.Len()
}
