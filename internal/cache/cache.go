// Package cache is the best-effort local copy of player data. It is never
// authoritative: sessions seed from it and overwrite it from the chain.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPlayerName   = "colorsnap_player_name"
	keyPlayerPoints = "colorsnap_player_points"
	keyActiveGameID = "colorsnap_active_game_id"
)

// Store is a string key/value store
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

func PlayerNameKey(addr common.Address) string   { return keyPlayerName + ":" + addr.Hex() }
func PlayerPointsKey(addr common.Address) string { return keyPlayerPoints + ":" + addr.Hex() }
func ActiveGameKey(addr common.Address) string   { return keyActiveGameID + ":" + addr.Hex() }

// Profile is what a session can seed itself with
type Profile struct {
	Name      string
	Points    uint64
	HasPoints bool
	GameID    uint64
}

// Load reads every cached field for addr; missing or malformed values are
// left zero.
func Load(ctx context.Context, s Store, addr common.Address) (Profile, error) {
	var p Profile
	var errs []error

	if v, ok, err := s.Get(ctx, PlayerNameKey(addr)); err != nil {
		errs = append(errs, err)
	} else if ok {
		p.Name = v
	}

	if v, ok, err := s.Get(ctx, PlayerPointsKey(addr)); err != nil {
		errs = append(errs, err)
	} else if ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			p.Points, p.HasPoints = n, true
		}
	}

	if v, ok, err := s.Get(ctx, ActiveGameKey(addr)); err != nil {
		errs = append(errs, err)
	} else if ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			p.GameID = n
		}
	}

	return p, errors.Join(errs...)
}

// Forget removes everything cached for addr
func Forget(ctx context.Context, s Store, addr common.Address) error {
	return s.Delete(ctx, PlayerNameKey(addr), PlayerPointsKey(addr), ActiveGameKey(addr))
}

// RedisStore keeps entries in redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings. ttl 0 means entries never expire.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Client exposes the underlying connection for other redis users
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// MemoryStore is used when redis is not configured
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.m, k)
	}
	s.mu.Unlock()
	return nil
}
