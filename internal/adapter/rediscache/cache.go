// Package rediscache is a content-addressed vector cache on Redis. Entries
// are keyed by (tenant, normalized text, model); lookups are idempotent, so
// redelivered messages hit the cache instead of the provider.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
)

type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

type Cache struct {
	client rueidis.Client
	ttl    time.Duration
}

func New(cfg Config) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func (c *Cache) Get(ctx context.Context, tenantID, text, model string) ([]float32, bool, error) {
	cmd := c.client.B().Get().Key(Key(tenantID, text, model)).Build()
	raw, err := c.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return vec, true, nil
}

func (c *Cache) Put(ctx context.Context, tenantID, text, model string, vector []float32) error {
	body, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	b := c.client.B().Set().Key(Key(tenantID, text, model)).Value(rueidis.BinaryString(body))
	var cmd rueidis.Completed
	if c.ttl > 0 {
		cmd = b.Ex(c.ttl).Build()
	} else {
		cmd = b.Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (c *Cache) Close() {
	c.client.Close()
}

// Key builds the content-addressed cache key. The text is normalized (trimmed,
// inner whitespace collapsed) so formatting-only variants share an entry; case
// is preserved because embeddings are case-sensitive.
func Key(tenantID, text, model string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(tenantID + "|" + model + "|" + normalized))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}
