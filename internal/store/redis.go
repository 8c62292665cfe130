package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/z-counsel/backend/internal/config"
	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
)

// RedisTranscriptStore Redis 对话记录存储，每个会话一个 list。
type RedisTranscriptStore struct {
	client *redis.Client
	ttl    time.Duration
	limit  int
}

// NewRedisTranscriptStore wraps an existing client.
func NewRedisTranscriptStore(client *redis.Client, ttl time.Duration, limit int) *RedisTranscriptStore {
	return &RedisTranscriptStore{
		client: client,
		ttl:    ttl,
		limit:  limit,
	}
}

// OpenRedis connects using the store config and verifies the server responds.
func OpenRedis(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// TranscriptKey is the list key holding a session's messages.
func TranscriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}

func (s *RedisTranscriptStore) Append(ctx context.Context, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	grouped := make(map[string][]any)
	order := make([]string, 0, 1)
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if _, ok := grouped[msg.SessionID]; !ok {
			order = append(order, msg.SessionID)
		}
		grouped[msg.SessionID] = append(grouped[msg.SessionID], data)
	}

	pipe := s.client.TxPipeline()
	for _, sessionID := range order {
		key := TranscriptKey(sessionID)
		pipe.RPush(ctx, key, grouped[sessionID]...)
		if s.limit > 0 {
			pipe.LTrim(ctx, key, int64(-s.limit), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (s *RedisTranscriptStore) Load(ctx context.Context, sessionID string) ([]chat.Message, error) {
	raw, err := s.client.LRange(ctx, TranscriptKey(sessionID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []chat.Message{}, nil
		}
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	messages := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var msg chat.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisTranscriptStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, TranscriptKey(sessionID)).Err()
}
