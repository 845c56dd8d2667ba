package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

var ErrNotFound = errors.New("redis: key not found")

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
	lockRetries    int
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"FASTCONTEXT_REDIS_LOCK_EXPIRATION" default:"3"`
	LockRetries             int     `envconfig:"FASTCONTEXT_REDIS_LOCK_RETRIES" default:"20"`
	Host                    string  `envconfig:"FASTCONTEXT_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"FASTCONTEXT_REDIS_PORT" default:"6379"`
	HASentinelPort          string  `envconfig:"FASTCONTEXT_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"FASTCONTEXT_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"FASTCONTEXT_REDIS_AUTH_PASSWORD"`
	AuthRequired            bool    `envconfig:"FASTCONTEXT_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"FASTCONTEXT_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"FASTCONTEXT_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

// NewClient connects to db using the environment configuration.
func NewClient(db DB) (*Client, error) {
	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateFailoverClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return Wrap(client, cfg), nil
}

// Wrap builds a Client over an existing connection.
func Wrap(client redis.UniversalClient, cfg *Config) *Client {
	wrapped := &Client{
		client:         client,
		lockExpiration: 3 * time.Second,
		lockRetries:    20,
	}
	if cfg != nil {
		wrapped.lockExpiration = time.Duration(cfg.LockExpirationSeconds) * time.Second
		wrapped.lockRetries = cfg.LockRetries
	}
	return wrapped
}

func CreateFailoverClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	options := redis.Options{
		Addr:       fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// Document is a stored JSON object. Fields a caller does not decode are kept
// as they were when the document is written back.
type Document map[string]json.RawMessage

// Overlay replaces the fields of doc with the JSON fields of v.
func (doc Document) Overlay(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err = json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("redis: %T is not a JSON object: %w", v, err)
	}
	for name, value := range fields {
		doc[name] = value
	}
	return nil
}

// GetDoc decodes the JSON stored at redisKey into v and returns the raw
// document.
func (client *Client) GetDoc(ctx context.Context, redisKey string, v interface{}) (Document, error) {
	b, err := client.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, redisKey)
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err = json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("redis: decoding %s: %w", redisKey, err)
	}
	if v != nil {
		if err = json.Unmarshal(b, v); err != nil {
			return nil, fmt.Errorf("redis: decoding %s: %w", redisKey, err)
		}
	}
	return doc, nil
}

// UpdateDoc reads redisKey into v under a lock, calls update and writes v back
// over the stored document.
func (client *Client) UpdateDoc(ctx context.Context, redisKey string, v interface{}, update func() error) (err error) {
	releaseLock, err := client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		releaseErr := releaseLock()
		if err == nil {
			err = releaseErr
		}
	}()
	doc, err := client.GetDoc(ctx, redisKey, v)
	if err != nil {
		return err
	}
	if update != nil {
		if err = update(); err != nil {
			return err
		}
	}
	if err = doc.Overlay(v); err != nil {
		return err
	}
	return client.SaveDoc(ctx, redisKey, doc, 0)
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	locker := redislock.New(client.client)
	strategy := redislock.LimitRetry(redislock.LinearBackoff(time.Second), client.lockRetries)
	lockKey := fmt.Sprintf("lock:%s", redisKey)
	lock, err := locker.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

// SaveDoc stores v as JSON, ttl 0 keeps it forever.
func (client *Client) SaveDoc(ctx context.Context, redisKey string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.client.Set(ctx, redisKey, b, ttl).Err()
}

func (client *Client) Ping(ctx context.Context) error {
	return client.client.Ping(ctx).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func ReadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
