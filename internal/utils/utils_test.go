package utils

import (
	"crypto/tls"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")

	made, err := EnsureSelfSignedCert(cert, key, "parking.local")
	if err != nil || !made {
		t.Fatalf("first call: made=%v err=%v", made, err)
	}
	if _, err := tls.LoadX509KeyPair(cert, key); err != nil {
		t.Fatalf("generated pair unusable: %v", err)
	}
	made, err = EnsureSelfSignedCert(cert, key, "parking.local")
	if err != nil || made {
		t.Fatalf("second call should reuse files: made=%v err=%v", made, err)
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	t.Parallel()
	dsn := BuildPostgresDSN(PGOptions{})
	if dsn != "postgres://postgres@localhost:5432/parking?sslmode=disable" {
		t.Fatalf("default dsn = %s", dsn)
	}
	dsn = BuildPostgresDSN(PGOptions{Host: "db", Port: "6543", User: "app", Password: "p@ss word", DB: "sf", SSLMode: "require"})
	if !strings.HasPrefix(dsn, "postgres://app:p%40ss%20word@db:6543/sf") || !strings.HasSuffix(dsn, "sslmode=require") {
		t.Fatalf("dsn = %s", dsn)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	t.Parallel()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.Get(&n, db.Rebind("SELECT ? + 1"), 41); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 42 {
		t.Fatalf("n = %d", n)
	}
}
