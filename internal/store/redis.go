package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const collectionKeyFmt = "store:%s"

// Redis backs the Store with one hash per collection. Put maps to a single
// HSET, which gives the atomic per-record upsert the judging path relies on.
type Redis struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewRedis(host string, port int, password string, db int, logger zerolog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", fmt.Sprintf("%s:%d", host, port)).Msg("Connected to Redis")

	return &Redis{
		rdb:    rdb,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}

// Client exposes the underlying connection for collaborators that share it,
// such as the presence mirror.
func (s *Redis) Client() *redis.Client {
	return s.rdb
}

func (s *Redis) Get(ctx context.Context, collection, id string) (*Record, error) {
	data, err := s.rdb.HGet(ctx, fmt.Sprintf(collectionKeyFmt, collection), id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &Record{ID: id, Data: data}, nil
}

func (s *Redis) Put(ctx context.Context, collection string, rec Record) error {
	err := s.rdb.HSet(ctx, fmt.Sprintf(collectionKeyFmt, collection), rec.ID, rec.Data).Err()
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

func (s *Redis) Query(ctx context.Context, collection, field, value string) ([]Record, error) {
	all, err := s.rdb.HGetAll(ctx, fmt.Sprintf(collectionKeyFmt, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	var out []Record
	for id, data := range all {
		if fieldMatches([]byte(data), field, value) {
			out = append(out, Record{ID: id, Data: []byte(data)})
		}
	}
	return out, nil
}
