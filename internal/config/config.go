// 包 config：从 .env 与环境变量读取服务配置
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"parking-rank/internal/geo"
	"parking-rank/internal/rank"
	"parking-rank/internal/spatial"
	"parking-rank/internal/utils"
)

// 缓存后端
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheSQLite   = "sqlite"
)

// 意图后端
const (
	IntentOllama = "ollama"
	IntentRules  = "rules"
)

type Config struct {
	Addr     string
	APIBase  string
	LogLevel string
	LogFmt   string

	DataPath   string
	IndexKind  spatial.Kind
	Defaults   rank.Params
	ReloadHour int
	ReloadTZ   string

	Geocoders       []string
	NominatimURL    string
	NominatimUA     string
	ArcGISURL       string
	ExtEndpoint     string
	ExtName         string
	GeocodeTimeout  time.Duration
	ResolveTimeout  time.Duration
	ProviderHBEvery time.Duration

	Cache         string
	CacheTTL      time.Duration
	CacheCapacity int
	SQLitePath    string
	PG            utils.PGOptions
	RedisAddr     string
	RedisPass     string
	RedisDB       int

	IntentBackend  string
	IntentFallback bool
	OllamaURL      string
	OllamaModel    string
	IntentTimeout  time.Duration

	RateLimit    bool
	RateLimitQPS int
	AdminToken   string

	TLS     bool
	TLSCert string
	TLSKey  string
	TLSHost string
}

// 文档注释：加载配置
// 背景：依次尝试 .env 与 data/env/.env（不存在忽略），已设置的环境变量优先。
// 约束：非法数值回退默认值；默认排序参数不合法时整体回退 rank.DefaultParams()。
func Load() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv()
}

// FromEnv 只读环境变量，不加载 .env
func FromEnv() Config {
	c := Config{
		Addr:     str("ADDR", ":8080"),
		APIBase:  strings.TrimSuffix(str("API_BASE", "/api"), "/"),
		LogLevel: str("LOG_LEVEL", "info"),
		LogFmt:   str("LOG_FORMAT", "text"),

		DataPath:   str("DATA_PATH", filepath.Join("data", "on_street_parking.csv")),
		ReloadHour: hour("DATA_RELOAD_HOUR"),
		ReloadTZ:   str("DATA_RELOAD_TZ", "America/Los_Angeles"),

		Geocoders:       list("GEOCODERS", []string{"nominatim", "arcgis"}),
		NominatimURL:    os.Getenv("NOMINATIM_URL"),
		NominatimUA:     str("NOMINATIM_USER_AGENT", "parking-rank/1.0"),
		ArcGISURL:       os.Getenv("ARCGIS_URL"),
		ExtEndpoint:     os.Getenv("EXT_GEOCODER_ENDPOINT"),
		ExtName:         str("EXT_GEOCODER_NAME", "ext"),
		GeocodeTimeout:  millis("GEOCODE_TIMEOUT_MS", 4000),
		ResolveTimeout:  millis("RESOLVE_TIMEOUT_MS", 10000),
		ProviderHBEvery: time.Duration(num("PROVIDER_HEARTBEAT_S", 30)) * time.Second,

		Cache:         strings.ToLower(str("GEOCODE_CACHE", CacheMemory)),
		CacheTTL:      time.Duration(num("GEOCODE_CACHE_TTL_H", 168)) * time.Hour,
		CacheCapacity: num("GEOCODE_CACHE_CAPACITY", 4096),
		SQLitePath:    str("SQLITE_PATH", filepath.Join("data", "geocode.db")),
		PG: utils.PGOptions{
			Host:     os.Getenv("PG_HOST"),
			Port:     os.Getenv("PG_PORT"),
			User:     os.Getenv("PG_USER"),
			Password: os.Getenv("PG_PASSWORD"),
			DB:       os.Getenv("PG_DB"),
			SSLMode:  os.Getenv("PG_SSLMODE"),
			MaxOpen:  num("PG_MAX_OPEN_CONNS", 20),
			MaxIdle:  num("PG_MAX_IDLE_CONNS", 10),
		},
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   num("REDIS_DB", 0),

		IntentBackend:  strings.ToLower(str("INTENT_BACKEND", IntentOllama)),
		IntentFallback: boolean("INTENT_RULES_FALLBACK", false),
		OllamaURL:      os.Getenv("OLLAMA_URL"),
		OllamaModel:    os.Getenv("OLLAMA_MODEL"),
		IntentTimeout:  millis("INTENT_TIMEOUT_MS", 20000),

		RateLimit:    boolean("RATE_LIMIT_ENABLED", false),
		RateLimitQPS: num("RATE_LIMIT_QPS", 200),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),

		TLS:     boolean("TLS_ENABLE", false),
		TLSCert: str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKey:  str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		TLSHost: str("TLS_HOST", "parking-rank.local"),
	}
	if h := os.Getenv("REDIS_HOST"); h != "" {
		c.RedisAddr = h + ":" + str("REDIS_PORT", "6379")
	}
	if k, err := spatial.ParseKind(os.Getenv("INDEX_KIND")); err == nil {
		c.IndexKind = k
	} else {
		c.IndexKind = spatial.KindKDTree
	}

	d := rank.DefaultParams()
	p := rank.Params{
		Alpha:  float("DEFAULT_ALPHA", d.Alpha),
		Beta:   float("DEFAULT_BETA", d.Beta),
		Radius: float("DEFAULT_RADIUS", d.Radius),
		Unit:   d.Unit,
		TopN:   num("DEFAULT_TOP_N", d.TopN),
	}
	if u, ok := geo.ParseUnit(os.Getenv("DEFAULT_UNIT")); ok {
		p.Unit = u
	}
	if p.Validate() != nil {
		p = d
	}
	c.Defaults = p
	return c
}

func str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func num(k string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil && n > 0 {
		return n
	}
	return def
}

// 0..23 的整点；未设置或越界返回 -1（不定时重载）
func hour(k string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil && n >= 0 && n <= 23 {
		return n
	}
	return -1
}

func float(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64); err == nil {
		return v
	}
	return def
}

func millis(k string, def int) time.Duration {
	return time.Duration(num(k, def)) * time.Millisecond
}

func boolean(k string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k))); err == nil {
		return b
	}
	return def
}

func list(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
