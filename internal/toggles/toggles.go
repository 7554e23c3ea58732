package toggles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Toggle is a feature switch with provider connection details in its metadata.
type Toggle struct {
	Enabled  bool `json:"enabled"`
	Metadata struct {
		Endpoint string `json:"endpoint"`
		APIKey   string `json:"api_key"`
	} `json:"metadata"`
}

// Store reads feature toggles from Redis. Toggles are owned by the fleet
// backend; this pipeline only polls them, once per schedule tick.
type Store struct {
	rdb *redis.Client
}

func New(addr string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// FindByName returns the toggle, or nil when it does not exist. An absent
// toggle and a disabled one both mean the cycle is a no-op.
func (s *Store) FindByName(ctx context.Context, name string) (*Toggle, error) {
	val, err := s.rdb.Get(ctx, "toggle:"+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggle lookup %s: %w", name, err)
	}
	var t Toggle
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("toggle decode %s: %w", name, err)
	}
	return &t, nil
}

func (s *Store) Close() error { return s.rdb.Close() }
