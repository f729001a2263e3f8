package engine

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey("transcript", "dQw4w9WgXcQ", "ko,en")
		k2 := CacheKey("transcript", "dQw4w9WgXcQ", "ko,en")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := CacheKey("transcript", "videoA")
		k2 := CacheKey("transcript", "videoB")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		k := CacheKey("test")
		if k[:3] != "gd:" {
			t.Errorf("expected gd: prefix, got %q", k[:3])
		}
	})
}

type cachedTranscript struct {
	VideoID string `json:"video_id"`
	Text    string `json:"text"`
}

func TestCacheGetSetJSON(t *testing.T) {
	// L1 only, no Redis.
	InitCache(nil, 1*time.Minute, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "round-trip")

	if _, ok := CacheGetJSON[cachedTranscript](ctx, key); ok {
		t.Error("expected cache miss on empty cache")
	}

	val := cachedTranscript{VideoID: "abc", Text: "hello"}
	CacheSetJSON(ctx, key, val)

	got, ok := CacheGetJSON[cachedTranscript](ctx, key)
	if !ok {
		t.Fatal("expected cache hit after set")
	}
	if got.Text != "hello" || got.VideoID != "abc" {
		t.Errorf("got %+v, want %+v", got, val)
	}
}

func TestCacheExpiry(t *testing.T) {
	InitCache(nil, 10*time.Millisecond, 100, time.Hour)

	ctx := context.Background()
	key := CacheKey("test", "expiry")
	CacheSetJSON(ctx, key, cachedTranscript{Text: "soon gone"})

	time.Sleep(30 * time.Millisecond)
	if _, ok := CacheGetJSON[cachedTranscript](ctx, key); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestCacheEviction(t *testing.T) {
	InitCache(nil, 1*time.Minute, 10, time.Hour)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		CacheSetJSON(ctx, CacheKey("evict", fmt.Sprint(i)), cachedTranscript{Text: fmt.Sprint(i)})
	}

	count := 0
	for i := 0; i < 25; i++ {
		if _, ok := CacheGetJSON[cachedTranscript](ctx, CacheKey("evict", fmt.Sprint(i))); ok {
			count++
		}
	}
	if count > 10 {
		t.Errorf("cache holds %d entries, limit is 10", count)
	}
}
