package middleware

// golang-lru evicts the least recently used responses once the cache is full.

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
)

// Cacheable is implemented by responses that know whether they may be
// served again. Responses that don't implement it are never cached.
type Cacheable interface {
	Cacheable() bool
}

// Cache is an in-memory response cache keyed by method and request.
type Cache struct {
	lru *lru.Cache
}

// NewCache sets up an LRU cache holding at most size responses.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Len reports the number of cached responses.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Interceptor serves repeated requests from the cache. Only successful
// responses whose Cacheable method returns true are stored, so charts that
// still cover today are always rebuilt.
func (c *Cache) Interceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		key, ok := generateCacheKey(info.FullMethod, req)
		if !ok {
			return handler(ctx, req)
		}

		if cachedResp, ok := c.lru.Get(key); ok {
			return cachedResp, nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}

		if cacheable, ok := resp.(Cacheable); ok && cacheable.Cacheable() {
			c.lru.Add(key, resp)
		}
		return resp, nil
	}
}

// generateCacheKey serializes the request; requests that cannot be
// serialized are not cached.
func generateCacheKey(method string, req interface{}) (string, bool) {
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s:%s", method, string(reqBytes)), true
}
