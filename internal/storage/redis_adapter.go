package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	recordKeyPrefix = "record:"
	recordIDsKey    = "records:ids"
)

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if config.PoolSize == 0 {
		config.PoolSize = 100
	}
	if config.MinIdleConns == 0 {
		config.MinIdleConns = 10
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 3 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

func (r *RedisStore) Put(ctx context.Context, record *StoredRecord) error {
	data, err := record.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+record.ID, data, 0)
	pipe.ZAdd(ctx, recordIDsKey, &redis.Z{
		Score:  float64(record.Timestamp),
		Member: record.ID,
	})

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*StoredRecord, error) {
	data, err := r.client.Get(ctx, recordKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return RecordFromBytes(data)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	exists, err := r.client.Exists(ctx, recordKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrRecordNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, recordKeyPrefix+id)
	pipe.ZRem(ctx, recordIDsKey, id)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) List(ctx context.Context) ([]*StoredRecord, error) {
	ids, err := r.client.ZRange(ctx, recordIDsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*StoredRecord, 0, len(ids))
	for _, id := range ids {
		record, err := r.Get(ctx, id)
		if err != nil {
			r.logger.Warn("Failed to load record during list", zap.String("id", id), zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

func (r *RedisStore) Count(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, recordIDsKey).Result()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
