package migrate

import (
	"github.com/jmoiron/sqlx"

	"parking-rank/internal/logger"
)

// 背景：首次运行自动创建所需表与索引
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；语句需同时兼容 Postgres 与 SQLite。
func EnsureSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS geocode_cache (
            cache_key TEXT PRIMARY KEY,
            found INTEGER NOT NULL DEFAULT 0,
            lat DOUBLE PRECISION NOT NULL DEFAULT 0,
            lon DOUBLE PRECISION NOT NULL DEFAULT 0,
            label TEXT NOT NULL DEFAULT '',
            provider TEXT NOT NULL DEFAULT '',
            miss TEXT,
            created_at BIGINT NOT NULL,
            expires_at BIGINT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires ON geocode_cache(expires_at)`,
		`CREATE TABLE IF NOT EXISTS rank_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS rank_stats_daily (
            day TEXT PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO rank_stats_total(id, total_queries)
         VALUES(1, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i, "driver", db.DriverName())
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
