package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ibrahimkeyboad/proofly/internal/core/domain"
)

const tokenTTL = 24 * time.Hour

// TokenCache stores ERC-20 metadata in Redis, CBOR encoded.
type TokenCache struct {
	client  *redis.Client
	chainID uint64
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	slog.Info("✅ Redis connected")
	return client, nil
}

func NewTokenCache(client *redis.Client, chainID uint64) *TokenCache {
	return &TokenCache{client: client, chainID: chainID}
}

func (c *TokenCache) key(token common.Address) string {
	return fmt.Sprintf("proofly:token:%d:%s", c.chainID, strings.ToLower(token.Hex()))
}

func (c *TokenCache) Get(ctx context.Context, token common.Address) (domain.TokenMetadata, bool) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Token cache read failed", "error", err, "token", token.Hex())
		}
		return domain.TokenMetadata{}, false
	}

	var meta domain.TokenMetadata
	if err := cbor.Unmarshal(raw, &meta); err != nil {
		slog.Warn("Token cache entry corrupt", "error", err, "token", token.Hex())
		return domain.TokenMetadata{}, false
	}
	return meta, true
}

func (c *TokenCache) Set(ctx context.Context, token common.Address, meta domain.TokenMetadata) {
	raw, err := cbor.Marshal(meta)
	if err != nil {
		slog.Error("Token cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(token), raw, tokenTTL).Err(); err != nil {
		slog.Warn("Token cache write failed", "error", err, "token", token.Hex())
	}
}

// MemoryTokenCache is used when no Redis is configured. Entries live for the
// process lifetime.
type MemoryTokenCache struct {
	mu      sync.RWMutex
	entries map[common.Address]domain.TokenMetadata
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{entries: make(map[common.Address]domain.TokenMetadata)}
}

func (c *MemoryTokenCache) Get(_ context.Context, token common.Address) (domain.TokenMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.entries[token]
	return meta, ok
}

func (c *MemoryTokenCache) Set(_ context.Context, token common.Address, meta domain.TokenMetadata) {
	c.mu.Lock()
	c.entries[token] = meta
	c.mu.Unlock()
}
