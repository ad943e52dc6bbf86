package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/config"
	"github.com/CodingHusk3y/heartwake/internal/detector"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateManager 检测器校准状态管理（跨会话保留）
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetStateKey 构建状态键
func (s *StateManager) GetStateKey(deviceID, stateType string) string {
	return fmt.Sprintf("%s%s:%s", s.config.Cache.StateKeyPrefix, deviceID, stateType)
}

// SetState 设置状态（ttl 为 0 表示不过期）
func (s *StateManager) SetState(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

// GetState 获取状态；不存在时返回 ErrCacheMiss
func (s *StateManager) GetState(ctx context.Context, key string, dest interface{}) error {
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get state: %w", err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}

// DeleteState 删除状态
func (s *StateManager) DeleteState(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// SaveBaseline 保存检测器校准状态
func (s *StateManager) SaveBaseline(ctx context.Context, deviceID string, state detector.BaselineState) error {
	return s.SetState(ctx, s.GetStateKey(deviceID, "baseline"), state, 0)
}

// LoadBaseline 读取校准状态；没有记录时返回默认值和 false
func (s *StateManager) LoadBaseline(ctx context.Context, deviceID string) (detector.BaselineState, bool, error) {
	var state detector.BaselineState
	err := s.GetState(ctx, s.GetStateKey(deviceID, "baseline"), &state)
	if errors.Is(err, ErrCacheMiss) {
		return detector.DefaultBaselineState(), false, nil
	}
	if err != nil {
		return detector.DefaultBaselineState(), false, err
	}
	return state.Clamped(), true, nil
}
