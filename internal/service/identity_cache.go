package service

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/config"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/model"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/redis"
)

// CachedIdentityReader fronts an IdentityReader with a short-lived redis
// cache. Cache trouble is logged and falls through to the registry; a miss
// of the agent itself is not cached.
type CachedIdentityReader struct {
	inner   IdentityReader
	cache   *redis.Client
	chainID int64
}

func NewCachedIdentityReader(inner IdentityReader, cache *redis.Client, chainID int64) *CachedIdentityReader {
	return &CachedIdentityReader{inner: inner, cache: cache, chainID: chainID}
}

func (r *CachedIdentityReader) Agent(ctx context.Context, agentID uint64) (*model.AgentIdentity, error) {
	key := redis.AgentIdentityKey(r.chainID, agentID)

	raw, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var cached model.AgentIdentity
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable identity cache entry")
	} else if !errors.Is(err, goredis.Nil) {
		log.Warn().Err(err).Str("key", key).Msg("identity cache read failed")
	}

	agent, err := r.inner.Agent(ctx, agentID)
	if err != nil || agent == nil {
		return agent, err
	}

	if encoded, err := json.Marshal(agent); err == nil {
		if err := r.cache.Set(ctx, key, encoded, config.IdentityCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("identity cache write failed")
		}
	}
	return agent, nil
}
