package search

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnknownPlace stands in whenever address resolution fails.
const UnknownPlace = "unknown location"

const geocodeCacheTTL = 30 * 24 * time.Hour

// AddressResolver turns a coordinate into a human-readable place name.
// The actual geocoder lives outside this service.
type AddressResolver interface {
	Resolve(ctx context.Context, lat, lng float64) (string, error)
}

// CachedResolver memoizes a slow upstream resolver in redis. Trip end
// points repeat heavily (home, office), so the hit rate is high.
type CachedResolver struct {
	redis *redis.Client
	next  AddressResolver
}

func NewCachedResolver(redisClient *redis.Client, next AddressResolver) *CachedResolver {
	return &CachedResolver{redis: redisClient, next: next}
}

func (r *CachedResolver) Resolve(ctx context.Context, lat, lng float64) (string, error) {
	key := geocodeKey(lat, lng)

	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, key).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	if r.next == nil {
		return UnknownPlace, nil
	}
	name, err := r.next.Resolve(ctx, lat, lng)
	if err != nil || name == "" {
		return UnknownPlace, nil
	}

	if r.redis != nil {
		_ = r.redis.Set(ctx, key, name, geocodeCacheTTL).Err()
	}
	return name, nil
}

func geocodeKey(lat, lng float64) string {
	// ~1m precision; close-enough endpoints share a cache entry.
	return fmt.Sprintf("geocode:%.5f:%.5f", lat, lng)
}
