package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"basegraph.app/editorial/internal/model"
	"github.com/redis/go-redis/v9"
)

// SummaryCache stores validated summarizer responses by content hash.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type keyTurn struct {
	Index  int    `json:"i"`
	Role   string `json:"r"`
	Author string `json:"a"`
	Text   string `json:"t"`
}

type keyFact struct {
	Question   string `json:"q"`
	Answer     string `json:"a"`
	Confidence string `json:"c"`
}

// CacheKey hashes the turns and seed facts of a summarization. Timestamps and
// fact ids do not take part, so equal content always maps to the same key.
func CacheKey(turns []model.ConversationTurn, seed []model.KnowledgeFact) string {
	doc := struct {
		Turns []keyTurn `json:"turns"`
		Seed  []keyFact `json:"seed"`
	}{
		Turns: make([]keyTurn, 0, len(turns)),
		Seed:  make([]keyFact, 0, len(seed)),
	}
	for _, t := range turns {
		doc.Turns = append(doc.Turns, keyTurn{t.Index, string(t.Role), t.Author, t.Text})
	}
	for _, f := range sortedSeed(seed) {
		doc.Seed = append(doc.Seed, keyFact{f.Question, f.Answer, string(f.Confidence)})
	}
	b, _ := json.Marshal(doc) //nolint:errchkjson
	sum := sha256.Sum256(b)
	return "v1:" + hex.EncodeToString(sum[:])
}

const redisSummaryPrefix = "editorial:summary:"

// RedisSummaryCache keeps summaries in Redis with a TTL.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, redisSummaryPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading summary cache: %w", err)
	}
	return b, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, redisSummaryPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing summary cache: %w", err)
	}
	return nil
}

// InMemorySummaryCache is a process-local SummaryCache without expiry.
type InMemorySummaryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewInMemorySummaryCache() *InMemorySummaryCache {
	return &InMemorySummaryCache{entries: map[string][]byte{}}
}

func (c *InMemorySummaryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *InMemorySummaryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), value...)
	return nil
}
