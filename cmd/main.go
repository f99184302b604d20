// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"parking-rank/internal/api"
	"parking-rank/internal/config"
	"parking-rank/internal/geocode"
	"parking-rank/internal/ingest"
	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
	"parking-rank/internal/middleware"
	"parking-rank/internal/migrate"
	"parking-rank/internal/rank"
	"parking-rank/internal/region"
	"parking-rank/internal/store"
	"parking-rank/internal/utils"
)

func main() {
	cfg := config.Load()
	l := logger.Setup(cfg.LogLevel, cfg.LogFmt)
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := region.Default()
	eng := rank.NewEngine(v.Box())
	if rep, err := eng.Reload(cfg.DataPath, cfg.IndexKind); err != nil {
		// 数据集缺失时仍启动，可通过 /reload 补载
		l.Error("dataset_load_error", "path", cfg.DataPath, "err", err)
	} else {
		l.Info("dataset_ready", "path", cfg.DataPath, "kept", rep.Kept, "dropped", rep.Dropped, "index", cfg.IndexKind)
	}

	var st *store.Store
	cacheStore, closeCache, err := openCacheStore(ctx, cfg, &st)
	if err != nil {
		l.Error("geocode_cache_open_error", "backend", cfg.Cache, "err", err)
		os.Exit(1)
	}
	defer closeCache()
	cache := geocode.NewCache(cacheStore, cfg.CacheTTL)

	m := geocode.NewManager(cfg.GeocodeTimeout, cfg.ProviderHBEvery)
	l.Info("geocoders_ready", "count", api.RegisterGeocoders(m, cfg))
	m.Start(ctx)

	svc := &api.Service{
		Engine:         eng,
		Resolver:       geocode.NewResolver(v, cache, m),
		Manager:        m,
		Intent:         api.BuildExtractor(cfg, v),
		Stats:          st,
		Defaults:       cfg.Defaults,
		ResolveTimeout: cfg.ResolveTimeout,
		DataPath:       cfg.DataPath,
		IndexKind:      cfg.IndexKind,
	}

	ingest.StartDaily(ctx, cfg.ReloadTZ, cfg.ReloadHour, func() error {
		_, err := svc.Reload()
		return err
	})

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, cfg.AdminToken)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	handler := logger.AccessMiddleware(l)(mux)
	if cfg.RateLimit {
		handler = middleware.RateLimit(cfg.RateLimitQPS)(handler)
	}
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if cfg.TLS {
		if made, err := utils.EnsureSelfSignedCert(cfg.TLSCert, cfg.TLSKey, cfg.TLSHost); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		} else if made {
			l.Warn("tls_self_signed", "cert", cfg.TLSCert)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCert)
		err = s.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}

// 文档注释：按配置打开地理编码缓存后端
// 约束：SQL 后端同时提供查询统计（*st 被赋值）；返回的 close 函数总是非 nil。
func openCacheStore(ctx context.Context, cfg config.Config, st **store.Store) (geocode.Store, func(), error) {
	l := logger.L()
	switch cfg.Cache {
	case config.CacheRedis:
		rc, err := utils.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			return nil, func() {}, err
		}
		if rc == nil {
			l.Warn("redis_disabled", "reason", "REDIS_HOST unset", "fallback", config.CacheMemory)
			return geocode.NewMemoryStore(cfg.CacheCapacity), func() {}, nil
		}
		l.Info("redis_ping_ok", "addr", cfg.RedisAddr)
		return geocode.NewRedisStore(rc), func() { _ = rc.Close() }, nil
	case config.CachePostgres, config.CacheSQLite:
		var db *sqlx.DB
		var err error
		if cfg.Cache == config.CachePostgres {
			db, err = utils.OpenPostgres(cfg.PG)
		} else {
			db, err = utils.OpenSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return nil, func() {}, err
		}
		if err := migrate.EnsureSchema(db); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		s := store.Attach(db)
		*st = s
		gc := s.GeocodeCache()
		if n, err := gc.PurgeExpired(ctx, time.Now()); err == nil && n > 0 {
			l.Info("geocode_cache_purged", "rows", n)
		}
		l.Info("db_open_ok", "driver", db.DriverName())
		return gc, func() { _ = s.Close() }, nil
	}
	return geocode.NewMemoryStore(cfg.CacheCapacity), func() {}, nil
}
