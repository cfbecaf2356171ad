package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/datascope/internal/store"
	"github.com/MrSnakeDoc/datascope/internal/store/storetest"
)

func TestCacheContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T, opts ...store.Option) store.CacheStore {
		return New(opts...)
	})
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	c := New()
	ctx := context.Background()
	key, _ := store.Key("cybersecurity", "", nil)
	if err := c.Put(ctx, key, storetest.SampleResult()); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	first, _ := c.Get(ctx, key)
	first.Payload.Records[0].Fields["severity"] = "mutated"

	second, _ := c.Get(ctx, key)
	if second.Payload.Records[0].Fields["severity"] == "mutated" {
		t.Error("Get() returned shared state")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key, _ := store.Key("social_media", fmt.Sprintf("city-%d", n), nil)
			_ = c.Put(ctx, key, storetest.SampleResult())
			c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Count() != 10 {
		t.Errorf("Count() = %d, want 10", c.Count())
	}
}
