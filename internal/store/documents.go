// Package store holds the external storage adapters: the Redis document
// store the pipeline reads from and the Postgres repository it writes to.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// ErrDocumentNotFound is returned when a collection has no document with
// the requested identifier.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a raw patient document fetched from the document store.
type Document struct {
	ID         string
	Collection string
	Fields     map[string]any
}

// DocumentStore fetches raw patient documents by collection and id.
type DocumentStore interface {
	Fetch(ctx context.Context, collection, id string) (*Document, error)
	Close() error
}

// DocumentsConfig contains document store configuration.
type DocumentsConfig struct {
	RedisURL       string
	KeyPrefix      string
	MaxConnections int
	MinIdleConns   int
	FetchTimeout   time.Duration
}

// RedisDocumentStore reads JSON documents keyed as prefix:collection:id.
type RedisDocumentStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
	logger    *logger.Logger
}

// NewRedisDocumentStore connects to Redis and verifies the connection.
func NewRedisDocumentStore(cfg DocumentsConfig, log *logger.Logger) (*RedisDocumentStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	log.Info("document store initialized",
		zap.String("redis_url", maskURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections))

	return &RedisDocumentStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		timeout:   timeout,
		logger:    log.WithComponent("document-store"),
	}, nil
}

// Fetch loads and decodes one document. A missing key maps to
// ErrDocumentNotFound.
func (s *RedisDocumentStore) Fetch(ctx context.Context, collection, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.client.Get(ctx, s.key(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %s/%s: %w", collection, id, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("decoding document %s/%s: %w", collection, id, err)
	}

	return &Document{ID: id, Collection: collection, Fields: fields}, nil
}

// Close releases the Redis connection pool.
func (s *RedisDocumentStore) Close() error {
	return s.client.Close()
}

func (s *RedisDocumentStore) key(collection, id string) string {
	if s.keyPrefix != "" {
		return s.keyPrefix + ":" + collection + ":" + id
	}
	return collection + ":" + id
}

// maskURL hides credentials in connection URLs before logging.
func maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}
