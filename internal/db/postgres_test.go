package db

import (
	"context"
	"testing"
)

func TestConnectPostgresRejectsBadDSN(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "://not-a-dsn", PoolOptions{})
	if err == nil {
		t.Fatal("ConnectPostgres() error = nil, want parse failure")
	}
}

func TestPoolOptionsDefaults(t *testing.T) {
	got := PoolOptions{}.withDefaults()
	if got.MaxConns != 10 || got.MinConns != 1 {
		t.Errorf("withDefaults() = %+v, want MaxConns 10, MinConns 1", got)
	}

	explicit := PoolOptions{MaxConns: 50, MinConns: 5}.withDefaults()
	if explicit != (PoolOptions{MaxConns: 50, MinConns: 5}) {
		t.Errorf("withDefaults() overrode explicit options: %+v", explicit)
	}
}
