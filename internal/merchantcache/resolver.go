// Package merchantcache resolves and authenticates merchant accounts through
// tiered sources: an in-process LRU, the failover-aware repository, a Redis
// outage tier, and finally a static file for total storage outages.
package merchantcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

// Options configures the cache tiers
type Options struct {
	LocalCapacity int
	LocalTTL      time.Duration
	RedisTTL      time.Duration
	KeyPrefix     string
}

// Resolver authenticates merchants against the freshest tier available
type Resolver struct {
	logger   *slog.Logger
	repo     merchant.Repository
	redis    *redis.Client
	static   *StaticDirectory
	local    *localCache
	redisTTL time.Duration
	prefix   string
}

// NewResolver builds the tiered merchant resolver
func NewResolver(logger *slog.Logger, repo merchant.Repository, rdb *redis.Client, static *StaticDirectory, opts Options) *Resolver {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "merchant:"
	}
	return &Resolver{
		logger:   logger,
		repo:     repo,
		redis:    rdb,
		static:   static,
		local:    newLocalCache(opts.LocalCapacity, opts.LocalTTL),
		redisTTL: opts.RedisTTL,
		prefix:   prefix,
	}
}

// Resolve authenticates the merchant identified by publicID with the
// presented API key. A wrong key and a disabled or unknown merchant are
// indistinguishable to the caller.
func (r *Resolver) Resolve(ctx context.Context, publicID, apiKey string) (*merchant.Account, error) {
	if acct, ok := r.local.Get(publicID); ok {
		return r.authorize(acct, apiKey)
	}

	acct, err := r.repo.GetByPublicID(ctx, publicID)
	if err == nil {
		r.local.Set(acct)
		r.warmRedis(acct)
		return r.authorize(acct, apiKey)
	}
	if errors.Is(err, merchant.ErrAccountNotFound{}) {
		return nil, err
	}

	// Both stores are out; fall through the degraded tiers.
	r.logger.Warn("Merchant lookup degraded to cache tiers", "merchant_public_id", publicID, "error", err)

	if acct := r.fromRedis(ctx, publicID); acct != nil {
		return r.authorize(acct, apiKey)
	}

	if acct := r.static.LookupByAPIKey(apiKey); acct != nil && acct.PublicID == publicID {
		r.logger.Warn("Merchant resolved from static directory", "merchant_public_id", publicID)
		return r.authorize(acct, apiKey)
	}

	return nil, err
}

// Invalidate drops the merchant from the local and Redis tiers. Called after
// any balance mutation so the next resolve reads the stores.
func (r *Resolver) Invalidate(ctx context.Context, publicID string) {
	r.local.Delete(publicID)
	if r.redis != nil {
		if err := r.redis.Del(ctx, r.prefix+publicID).Err(); err != nil {
			r.logger.Warn("Failed to invalidate merchant cache entry", "merchant_public_id", publicID, "error", err)
		}
	}
}

func (r *Resolver) authorize(acct *merchant.Account, apiKey string) (*merchant.Account, error) {
	if !acct.Enabled || !acct.MatchesAPIKey(apiKey) {
		return nil, merchant.ErrAccountNotFound{PublicID: acct.PublicID}
	}
	return acct, nil
}

func (r *Resolver) warmRedis(acct *merchant.Account) {
	if r.redis == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		payload, err := json.Marshal(acct)
		if err != nil {
			return
		}
		if err := r.redis.Set(ctx, r.prefix+acct.PublicID, payload, r.redisTTL).Err(); err != nil {
			r.logger.Warn("Failed to warm merchant cache", "merchant_public_id", acct.PublicID, "error", err)
		}
	}()
}

func (r *Resolver) fromRedis(ctx context.Context, publicID string) *merchant.Account {
	if r.redis == nil {
		return nil
	}

	payload, err := r.redis.Get(ctx, r.prefix+publicID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Failed to read merchant cache tier", "merchant_public_id", publicID, "error", err)
		}
		return nil
	}

	var acct merchant.Account
	if err := json.Unmarshal(payload, &acct); err != nil {
		r.logger.Warn("Failed to decode cached merchant", "merchant_public_id", publicID, "error", err)
		return nil
	}
	return &acct
}
