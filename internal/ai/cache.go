package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Provider = (*CachingProvider)(nil)

// ResponseCache stores provider responses by key.
type ResponseCache interface {
	GetCachedResponse(ctx context.Context, key string, maxAge time.Duration) (string, bool, error)
	PutCachedResponse(ctx context.Context, key, model, response string) error
}

// NormalizePrompt lower-cases s and collapses runs of whitespace so that
// prompts differing only in formatting share a cache entry.
func NormalizePrompt(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CacheKey returns the cache key for a request against model.
func CacheKey(model string, req CompletionRequest) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(req.System)))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(req.User)))
	return hex.EncodeToString(h.Sum(nil))
}

// CachingProvider wraps a Provider with a response cache and a budget
// guard. A cache hit within ttl is returned without spending; a miss
// reserves the estimated cost, calls the provider and stores the result.
// A ttl of zero disables caching.
type CachingProvider struct {
	next  Provider
	cache ResponseCache
	guard BudgetGuard
	costs CostModel
	ttl   time.Duration
}

// NewCachingProvider wraps next. A nil guard allows every call.
func NewCachingProvider(next Provider, cache ResponseCache, guard BudgetGuard, costs CostModel, ttl time.Duration) *CachingProvider {
	if guard == nil {
		guard = NoBudget{}
	}
	return &CachingProvider{next: next, cache: cache, guard: guard, costs: costs, ttl: ttl}
}

// Model returns the wrapped provider's model.
func (p *CachingProvider) Model() string { return p.next.Model() }

// Complete serves req from the cache when possible.
func (p *CachingProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	key := CacheKey(p.next.Model(), req)

	if p.ttl > 0 && p.cache != nil {
		text, ok, err := p.cache.GetCachedResponse(ctx, key, p.ttl)
		if err != nil {
			slog.Warn("reading AI response cache", "error", err)
		} else if ok {
			slog.Debug("AI response cache hit", "model", p.next.Model())
			return &Completion{Text: text, Model: p.next.Model(), Cached: true}, nil
		}
	}

	estimate := p.costs.EstimateCost(req.System+req.User, req.MaxTokens)
	if err := p.guard.CheckAndReserve(ctx, "text", estimate); err != nil {
		return nil, err
	}

	out, err := p.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.ttl > 0 && p.cache != nil {
		if err := p.cache.PutCachedResponse(ctx, key, out.Model, out.Text); err != nil {
			slog.Warn("writing AI response cache", "error", err)
		}
	}
	return out, nil
}
