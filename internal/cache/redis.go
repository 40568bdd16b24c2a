package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	xerrors "AgentKit-Chain/internal/errors"

	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述 Redis 缓存的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis 基于 go-redis 实现 Cache。
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis 连接 Redis 并返回缓存实例。
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return NewRedisFromClient(client, cfg.Prefix), nil
}

// NewRedisFromClient 复用已有的客户端。
func NewRedisFromClient(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get 读取缓存。
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取缓存 %s 失败", key))
	}
	return value, true, nil
}

// Set 写入缓存，ttl 为 0 表示永不过期。
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("写入缓存 %s 失败", key))
	}
	return nil
}

// Close 关闭连接。
func (r *Redis) Close() error {
	return r.client.Close()
}
