// 包 utils：数据库与 Redis 连接工具
package utils

import (
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"parking-rank/internal/logger"
)

// PG 连接参数；空值使用默认
type PGOptions struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
}

func BuildPostgresDSN(o PGOptions) string {
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	port := o.Port
	if port == "" {
		port = "5432"
	}
	user := o.User
	if user == "" {
		user = "postgres"
	}
	db := o.DB
	if db == "" {
		db = "parking"
	}
	ssl := o.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{Scheme: "postgres", Host: host + ":" + port, Path: "/" + db, RawQuery: "sslmode=" + url.QueryEscape(ssl)}
	if o.Password != "" {
		u.User = url.UserPassword(user, o.Password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// OpenPostgres：打开连接池并 Ping
func OpenPostgres(o PGOptions) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", BuildPostgresDSN(o))
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := o.MaxOpen, o.MaxIdle
	if maxOpen <= 0 {
		maxOpen = 20
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	logger.L().Debug("postgres_open", "host", o.Host, "db", o.DB)
	return db, nil
}

// OpenSQLite：打开 SQLite（modernc 纯 Go 驱动）；path 为 ":memory:" 时仅单连接有效
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Debug("sqlite_open", "path", path)
	return db, nil
}

func init() {
	// sqlx 不认识 modernc 的驱动名，显式声明为 ? 占位符
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}
