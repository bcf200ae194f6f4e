package cache

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/logger"
)

func TestKey(t *testing.T) {
	c := &DetectionCache{cfg: config.CacheConfig{KeyPrefix: "docveil:detect:"}}

	a := c.Key("Anna Keller wohnt in Bern.", "v1:42:CH:de")
	b := c.Key("Anna Keller wohnt in Bern.", "v1:42:CH:de")
	if a != b {
		t.Errorf("same input produced different keys: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "docveil:detect:") {
		t.Errorf("key %q missing prefix", a)
	}

	if c.Key("other text", "v1:42:CH:de") == a {
		t.Error("different text produced the same key")
	}
	if c.Key("Anna Keller wohnt in Bern.", "v1:43:CH:de") == a {
		t.Error("different config revision produced the same key")
	}

	// The revision separator keeps (rev, text) pairs unambiguous.
	if c.Key("ab", "c") == c.Key("b", "ca") {
		t.Error("revision and text boundaries collide")
	}
}

func TestStatsUnderConcurrentGets(t *testing.T) {
	// An unreachable server makes every Get a fast miss; the counters
	// must stay consistent when Detect calls and Stats reads overlap.
	opts, err := redis.ParseURL("redis://127.0.0.1:1/0")
	if err != nil {
		t.Fatal(err)
	}
	c := &DetectionCache{
		client: redis.NewClient(opts),
		cfg:    config.CacheConfig{KeyPrefix: "t:"},
		logger: logger.Nop(),
	}
	t.Cleanup(func() { c.Close() })

	const workers, gets = 4, 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < gets; j++ {
				if r := c.Get(context.Background(), "t:key"); r != nil {
					t.Error("Get() returned a result from an unreachable server")
				}
				c.Stats()
			}
		}()
	}
	wg.Wait()

	hits, misses := c.Stats()
	if hits != 0 {
		t.Errorf("hits = %d, want 0", hits)
	}
	if misses != workers*gets {
		t.Errorf("misses = %d, want %d", misses, workers*gets)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(config.CacheConfig{RedisURL: "not-a-url"}, logger.Nop())
	if err == nil {
		t.Fatal("New() accepted an invalid Redis URL")
	}
	if !strings.Contains(err.Error(), "Redis URL") {
		t.Errorf("error = %v", err)
	}
}
