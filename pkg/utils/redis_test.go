package utils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/redis/go-redis/v9"
)

func TestRateWindowScriptInitialized(t *testing.T) {
	if rateWindowScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestAllowRate_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	if _, _, err := AllowRate(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, _, err := AllowRate(ctx, rdb, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, _, err := AllowRate(ctx, rdb, "k", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, _, err := AllowRate(ctx, rdb, "k", 1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if _, _, err := AllowRate(ctx, rdb, "k", 1, time.Nanosecond); err == nil {
		t.Fatalf("expected error for sub-microsecond window")
	}
}

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestAllowRate_SlidingWindow(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer rdb.Close()

	key := "test:rate:" + uuid.NewString()
	defer rdb.Del(ctx, key)
	const window = 300 * time.Millisecond

	for i := 0; i < 2; i++ {
		ok, _, err := AllowRate(ctx, rdb, key, 2, window)
		if err != nil || !ok {
			t.Fatalf("admission %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, wait, err := AllowRate(ctx, rdb, key, 2, window)
	if err != nil || ok {
		t.Fatalf("expected third admission to be refused, ok=%v err=%v", ok, err)
	}
	if wait <= 0 || wait > window {
		t.Fatalf("expected wait within the window, got %v", wait)
	}

	// A refused call is not logged, so expiry of the first entries frees the window.
	time.Sleep(window + 20*time.Millisecond)
	ok, _, err = AllowRate(ctx, rdb, key, 2, window)
	if err != nil || !ok {
		t.Fatalf("expected admission after the window slid, ok=%v err=%v", ok, err)
	}
}
