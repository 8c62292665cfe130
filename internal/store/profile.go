package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/z-counsel/backend/internal/model/profile"
)

// ErrProfileNotFound 画像不存在
var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore 来访者画像存储接口
type ProfileStore interface {
	// Load 读取画像，不存在时返回 ErrProfileNotFound
	Load(ctx context.Context, userID string) (profile.Profile, error)
	// Save 整体覆盖画像
	Save(ctx context.Context, p profile.Profile) error
	Delete(ctx context.Context, userID string) error
}

// MemoryProfileStore keeps profiles in process memory.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]profile.Profile)}
}

func (s *MemoryProfileStore) Load(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryProfileStore) Save(_ context.Context, p profile.Profile) error {
	s.mu.Lock()
	s.profiles[p.UserID] = p.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryProfileStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.profiles, userID)
	s.mu.Unlock()
	return nil
}

// RedisProfileStore 每个来访者一个 JSON 字符串，写入时续期。
type RedisProfileStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileStore(client *redis.Client, ttl time.Duration) *RedisProfileStore {
	return &RedisProfileStore{client: client, ttl: ttl}
}

// ProfileKey is the string key holding a user's profile.
func ProfileKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

func (s *RedisProfileStore) Load(ctx context.Context, userID string) (profile.Profile, error) {
	raw, err := s.client.Get(ctx, ProfileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return profile.Profile{}, ErrProfileNotFound
		}
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

func (s *RedisProfileStore) Save(ctx context.Context, p profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	// ttl 为 0 时不过期
	if err := s.client.Set(ctx, ProfileKey(p.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *RedisProfileStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, ProfileKey(userID)).Err()
}
