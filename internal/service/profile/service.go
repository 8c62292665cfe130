// Package profile maintains the long-lived per-user profile that survives
// across sessions and is summarized into every prompt.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/model/chat"
	"github.com/zhouzirui/z-counsel/backend/internal/model/profile"
	"github.com/zhouzirui/z-counsel/backend/internal/store"
)

var ErrProfileNotFound = store.ErrProfileNotFound

// Service 读写来访者画像
type Service struct {
	// 串行化读改写，同一进程内不丢更新
	mu     sync.Mutex
	store  store.ProfileStore
	now    func() time.Time
	logger *zap.Logger
}

func NewService(profiles store.ProfileStore, log *zap.Logger) *Service {
	if profiles == nil {
		profiles = store.NewMemoryProfileStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  profiles,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Named("profile"),
	}
}

// Tracked reports whether userID accumulates a profile.
func Tracked(userID string) bool {
	return userID != "" && userID != chat.AnonymousUser
}

// Record 累计一次交互，匿名用户直接忽略。
func (s *Service) Record(ctx context.Context, userID string, rec profile.Record) (profile.Profile, error) {
	if !Tracked(userID) {
		return profile.Profile{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current, err := s.store.Load(ctx, userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		current = profile.New(userID, now)
	} else if err != nil {
		return profile.Profile{}, err
	}

	next := current.Apply(rec, now)
	if err := s.store.Save(ctx, next); err != nil {
		return profile.Profile{}, fmt.Errorf("record profile: %w", err)
	}

	s.logger.Debug("profile updated",
		zap.String("user_id", userID),
		zap.Int("total_chats", next.TotalChats),
		zap.Int("total_risk_alerts", next.TotalRiskAlerts),
	)
	return next, nil
}

func (s *Service) Get(ctx context.Context, userID string) (profile.Profile, error) {
	return s.store.Load(ctx, userID)
}

// Summary 返回拼入提示词的画像摘要；新用户与匿名用户返回空串。
// 读取失败只记录日志，不阻断对话。
func (s *Service) Summary(ctx context.Context, userID string) string {
	if !Tracked(userID) {
		return ""
	}
	p, err := s.store.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrProfileNotFound) {
			s.logger.Warn("load profile failed", zap.String("user_id", userID), zap.Error(err))
		}
		return ""
	}
	if p.IsNew() {
		return ""
	}
	return p.Summary()
}

// Trend 最近 limit 条情绪记录及趋势判断
func (s *Service) Trend(ctx context.Context, userID string, limit int) (profile.Trend, error) {
	p, err := s.store.Load(ctx, userID)
	if err != nil {
		return profile.Trend{}, err
	}
	return p.Trend(limit), nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
