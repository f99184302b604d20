package store

import (
	"context"
	"testing"
	"time"

	"parking-rank/internal/errs"
	"parking-rank/internal/geocode"
	"parking-rank/internal/migrate"
	"parking-rank/internal/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := utils.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	// 重复执行应无副作用
	if err := migrate.EnsureSchema(db); err != nil {
		t.Fatalf("schema again: %v", err)
	}
	s := Attach(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGeocodeCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)
	c := s.GeocodeCache()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, ok, err := c.Get(ctx, "pier 39"); err != nil || ok {
		t.Fatalf("empty get: ok=%v err=%v", ok, err)
	}
	hit := geocode.Entry{Key: "pier 39", Found: true, Lat: 37.8087, Lon: -122.4098, Label: "Pier 39", Provider: "nominatim",
		CreatedAt: now, ExpiresAt: now.Add(geocode.DefaultCacheTTL)}
	if err := c.Put(ctx, hit); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, "pier 39")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Found || got.Lat != hit.Lat || got.Lon != hit.Lon || got.Label != hit.Label || got.Provider != hit.Provider {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(hit.ExpiresAt) || !got.CreatedAt.Equal(now) {
		t.Fatalf("times mismatch: %+v", got)
	}
	if got.Miss != "" {
		t.Fatalf("unexpected miss kind %q", got.Miss)
	}

	// 覆盖写为无结果标记
	miss := geocode.Entry{Key: "pier 39", Miss: errs.KindOutOfRegion, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := c.Put(ctx, miss); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, ok, _ = c.Get(ctx, "pier 39")
	if !ok || got.Found || got.Miss != errs.KindOutOfRegion {
		t.Fatalf("upsert not applied: %+v", got)
	}

	if err := c.Delete(ctx, "pier 39"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "pier 39"); ok {
		t.Fatalf("entry still present after delete")
	}
}

func TestGeocodeCachePurgeExpired(t *testing.T) {
	s := openTestStore(t)
	c := s.GeocodeCache()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, k := range []string{"a", "b", "c"} {
		e := geocode.Entry{Key: k, Found: true, CreatedAt: now, ExpiresAt: now.Add(time.Duration(i) * time.Hour)}
		if err := c.Put(ctx, e); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	n, err := c.PurgeExpired(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d rows, want 2", n)
	}
	if _, ok, _ := c.Get(ctx, "c"); !ok {
		t.Fatalf("unexpired entry removed")
	}
}

func TestGeocodeCacheDeleteExpiredComparesExpiry(t *testing.T) {
	s := openTestStore(t)
	c := s.GeocodeCache()
	ctx := context.Background()
	old := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fresh := old.Add(geocode.DefaultCacheTTL)

	// 读到旧条目后被并发覆盖：按旧过期时间删除不应生效
	if err := c.Put(ctx, geocode.Entry{Key: "ferry building", Found: true, CreatedAt: old, ExpiresAt: fresh}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.DeleteExpired(ctx, "ferry building", old); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "ferry building"); !ok {
		t.Fatalf("rewritten row deleted")
	}
	if err := c.DeleteExpired(ctx, "ferry building", fresh); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "ferry building"); ok {
		t.Fatalf("matching row kept")
	}
}

func TestCacheOverSQLHonoursTTL(t *testing.T) {
	s := openTestStore(t)
	cache := geocode.NewCache(s.GeocodeCache(), 0)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cur := base
	cache.SetClock(func() time.Time { return cur })
	ctx := context.Background()

	cache.PutMiss(ctx, "Atlantis", errs.KindResolutionFailed)
	if e, ok := cache.Get(ctx, "atlantis"); !ok || e.Miss != errs.KindResolutionFailed {
		t.Fatalf("miss marker not cached: %+v ok=%v", e, ok)
	}
	cur = base.Add(geocode.DefaultCacheTTL)
	if _, ok := cache.Get(ctx, "atlantis"); ok {
		t.Fatalf("entry should expire at ttl boundary")
	}
}

func TestStatsTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.IncrStats(ctx); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	tot, err := s.GetTotals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if tot.Total != 3 || tot.Today != 3 {
		t.Fatalf("totals = %+v, want 3/3", tot)
	}
}
