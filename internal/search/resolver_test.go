package search

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCachedResolverCachesHits(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	upstream := &staticResolver{names: map[string]string{
		geocodeKey(6.45, 3.39): "Lagos",
	}}
	r := NewCachedResolver(client, upstream)

	for i := 0; i < 3; i++ {
		name, err := r.Resolve(context.Background(), 6.45, 3.39)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if name != "Lagos" {
			t.Fatalf("unexpected name %q", name)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", upstream.calls)
	}
}

func TestCachedResolverDegradesOnUpstreamFailure(t *testing.T) {
	r := NewCachedResolver(nil, &staticResolver{err: errors.New("down")})

	name, err := r.Resolve(context.Background(), 6.45, 3.39)
	if err != nil {
		t.Fatalf("resolution failure must not propagate: %v", err)
	}
	if name != UnknownPlace {
		t.Fatalf("expected placeholder, got %q", name)
	}
}

func TestCachedResolverNilUpstream(t *testing.T) {
	r := NewCachedResolver(nil, nil)
	name, err := r.Resolve(context.Background(), 6.45, 3.39)
	if err != nil || name != UnknownPlace {
		t.Fatalf("expected placeholder without upstream, got %q %v", name, err)
	}
}
