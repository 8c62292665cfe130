// Package store persists raw conversation transcripts and per-user profiles
// outside the context window, so history survives window compression.
package store

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
)

// TranscriptStore 对话记录存储接口
type TranscriptStore interface {
	// Append 追加消息
	Append(ctx context.Context, messages ...chat.Message) error
	// Load 按时间顺序读取会话的全部消息
	Load(ctx context.Context, sessionID string) ([]chat.Message, error)
	// Delete 删除会话记录
	Delete(ctx context.Context, sessionID string) error
}

// MemoryTranscriptStore keeps transcripts in process memory.
type MemoryTranscriptStore struct {
	mu       sync.RWMutex
	limit    int
	messages map[string][]chat.Message
}

// NewMemoryTranscriptStore returns a store that keeps at most limit messages
// per session (limit <= 0 keeps everything).
func NewMemoryTranscriptStore(limit int) *MemoryTranscriptStore {
	return &MemoryTranscriptStore{
		limit:    limit,
		messages: make(map[string][]chat.Message),
	}
}

func (s *MemoryTranscriptStore) Append(_ context.Context, messages ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		list := append(s.messages[msg.SessionID], msg)
		if s.limit > 0 && len(list) > s.limit {
			list = append([]chat.Message(nil), list[len(list)-s.limit:]...)
		}
		s.messages[msg.SessionID] = list
	}
	return nil
}

func (s *MemoryTranscriptStore) Load(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[sessionID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

func (s *MemoryTranscriptStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.messages, sessionID)
	s.mu.Unlock()
	return nil
}
