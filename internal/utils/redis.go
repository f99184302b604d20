package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"parking-rank/internal/logger"
)

// OpenRedis：使用地址、密码与库号打开 Redis 客户端并 Ping
// 约束：addr 为空时返回 nil, nil，由调用方回退到进程内缓存。
func OpenRedis(ctx context.Context, addr, pass string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	if db < 0 {
		db = 0
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return rc, nil
}
