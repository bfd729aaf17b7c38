package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// StateRepo persists the small per-session key/value state of the wallet
// connection (activeWallet, isWalletConnected).
type StateRepo interface {
	// Get returns ok=false when the key was never written or was deleted.
	Get(ctx context.Context, sessionID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

// --- Redis ---

type RedisStateRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateRepo stores each session as one hash. ttl bounds how long an
// idle session's state survives; 0 keeps it forever.
func NewRedisStateRepo(client *redis.Client, ttl time.Duration) *RedisStateRepo {
	return &RedisStateRepo{client: client, ttl: ttl}
}

func stateKey(sessionID string) string {
	return "wallet_state:" + sessionID
}

func (r *RedisStateRepo) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	val, err := r.client.HGet(ctx, stateKey(sessionID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisStateRepo) Set(ctx context.Context, sessionID, key, value string) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, stateKey(sessionID), key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, stateKey(sessionID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (r *RedisStateRepo) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return r.client.Del(ctx, stateKey(sessionID)).Err()
	}
	return r.client.HDel(ctx, stateKey(sessionID), keys...).Err()
}

// --- Postgres ---

type PostgresStateRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresStateRepo(pool *pgxpool.Pool) *PostgresStateRepo {
	return &PostgresStateRepo{pool: pool}
}

func (r *PostgresStateRepo) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM wallet_state WHERE session_id = $1 AND key = $2
	`, sessionID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *PostgresStateRepo) Set(ctx context.Context, sessionID, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallet_state (session_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, sessionID, key, value)
	return err
}

func (r *PostgresStateRepo) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		_, err := r.pool.Exec(ctx, `DELETE FROM wallet_state WHERE session_id = $1`, sessionID)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM wallet_state WHERE session_id = $1 AND key = ANY($2)
	`, sessionID, keys)
	return err
}

// --- Memory ---

// MemoryStateRepo keeps state in process. Used in tests and single-node
// setups without redis.
type MemoryStateRepo struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryStateRepo() *MemoryStateRepo {
	return &MemoryStateRepo{data: make(map[string]map[string]string)}
}

func (r *MemoryStateRepo) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[sessionID][key]
	return v, ok, nil
}

func (r *MemoryStateRepo) Set(_ context.Context, sessionID, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[sessionID] == nil {
		r.data[sessionID] = make(map[string]string)
	}
	r.data[sessionID][key] = value
	return nil
}

func (r *MemoryStateRepo) Delete(_ context.Context, sessionID string, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(keys) == 0 {
		delete(r.data, sessionID)
		return nil
	}
	for _, k := range keys {
		delete(r.data[sessionID], k)
	}
	return nil
}
