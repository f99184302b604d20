// 包 store：SQL 数据访问层（Postgres / SQLite），提供地理编码缓存持久化与查询统计
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"parking-rank/internal/errs"
	"parking-rank/internal/geocode"
	"parking-rank/internal/logger"
)

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sqlx.DB
}

func Attach(db *sqlx.DB) *Store { return &Store{db: db} }

// Close：关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sqlx.DB { return s.db }

// 表行；时间以 Unix 纳秒存储，两种数据库表现一致
type cacheRow struct {
	Key       string         `db:"cache_key"`
	Found     int            `db:"found"`
	Lat       float64        `db:"lat"`
	Lon       float64        `db:"lon"`
	Label     string         `db:"label"`
	Provider  string         `db:"provider"`
	Miss      sql.NullString `db:"miss"`
	CreatedAt int64          `db:"created_at"`
	ExpiresAt int64          `db:"expires_at"`
}

func toRow(e geocode.Entry) cacheRow {
	r := cacheRow{
		Key:       e.Key,
		Lat:       e.Lat,
		Lon:       e.Lon,
		Label:     e.Label,
		Provider:  e.Provider,
		Miss:      sql.NullString{String: string(e.Miss), Valid: e.Miss != ""},
		CreatedAt: e.CreatedAt.UnixNano(),
		ExpiresAt: e.ExpiresAt.UnixNano(),
	}
	if e.Found {
		r.Found = 1
	}
	return r
}

func (r cacheRow) entry() geocode.Entry {
	return geocode.Entry{
		Key:       r.Key,
		Found:     r.Found != 0,
		Lat:       r.Lat,
		Lon:       r.Lon,
		Label:     r.Label,
		Provider:  r.Provider,
		Miss:      errs.Kind(r.Miss.String),
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		ExpiresAt: time.Unix(0, r.ExpiresAt).UTC(),
	}
}

// GeocodeCache 返回实现 geocode.Store 的视图
func (s *Store) GeocodeCache() *GeocodeCache { return &GeocodeCache{db: s.db} }

// 文档注释：SQL 地理编码缓存
// 约束：只存取，不判断过期；过期由 geocode.Cache 在读取时判断，PurgeExpired 仅用于清理。
type GeocodeCache struct {
	db *sqlx.DB
}

func (c *GeocodeCache) Get(ctx context.Context, key string) (geocode.Entry, bool, error) {
	var r cacheRow
	err := c.db.GetContext(ctx, &r, c.db.Rebind(`SELECT cache_key, found, lat, lon, label, provider, miss, created_at, expires_at
        FROM geocode_cache WHERE cache_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return geocode.Entry{}, false, nil
	}
	if err != nil {
		return geocode.Entry{}, false, err
	}
	return r.entry(), true, nil
}

func (c *GeocodeCache) Put(ctx context.Context, e geocode.Entry) error {
	_, err := c.db.NamedExecContext(ctx, `INSERT INTO geocode_cache(cache_key, found, lat, lon, label, provider, miss, created_at, expires_at)
        VALUES(:cache_key, :found, :lat, :lon, :label, :provider, :miss, :created_at, :expires_at)
        ON CONFLICT (cache_key) DO UPDATE SET found=EXCLUDED.found, lat=EXCLUDED.lat, lon=EXCLUDED.lon, label=EXCLUDED.label,
            provider=EXCLUDED.provider, miss=EXCLUDED.miss, created_at=EXCLUDED.created_at, expires_at=EXCLUDED.expires_at`, toRow(e))
	return err
}

func (c *GeocodeCache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM geocode_cache WHERE cache_key = ?`), key)
	return err
}

// DeleteExpired 只删除 expires_at 仍与读到的值一致的行
func (c *GeocodeCache) DeleteExpired(ctx context.Context, key string, expiresAt time.Time) error {
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM geocode_cache WHERE cache_key = ? AND expires_at = ?`), key, expiresAt.UnixNano())
	return err
}

// PurgeExpired：删除 now 之前过期的条目，返回删除行数
func (c *GeocodeCache) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM geocode_cache WHERE expires_at <= ?`), now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	logger.L().Debug("geocode_cache_purged", "rows", n)
	return n, nil
}

// IncrStats：排序成功后递增累计与当日计数
func (s *Store) IncrStats(ctx context.Context) error {
	day := time.Now().UTC().Format("2006-01-02")
	if _, err := s.db.ExecContext(ctx, `UPDATE rank_stats_total SET total_queries=total_queries+1 WHERE id=1`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO rank_stats_daily(day, queries) VALUES(?, 1)
        ON CONFLICT (day) DO UPDATE SET queries=rank_stats_daily.queries+1`), day)
	logger.L().Debug("stats_incr", "day", day)
	return err
}

// Totals：累计与当日排序次数
type Totals struct {
	Total int64 `json:"total" db:"total"`
	Today int64 `json:"today" db:"today"`
}

// GetTotals：读取累计与当日排序次数
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if err := s.db.GetContext(ctx, &t.Total, `SELECT total_queries FROM rank_stats_total WHERE id=1`); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	day := time.Now().UTC().Format("2006-01-02")
	if err := s.db.GetContext(ctx, &t.Today, s.db.Rebind(`SELECT queries FROM rank_stats_daily WHERE day=?`), day); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}
