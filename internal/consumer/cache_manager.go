package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/config"
	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// CacheManager 实时会话状态缓存（供展示端读取）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) liveKey(sessionID string) string {
	return fmt.Sprintf("%s%s%s", c.config.Cache.LiveKeyPrefix, sessionID, c.config.Cache.LiveSuffix)
}

func (c *CacheManager) outcomeKey(sessionID string) string {
	return fmt.Sprintf("%s%s%s", c.config.Cache.LiveKeyPrefix, sessionID, c.config.Cache.OutcomeSuffix)
}

func (c *CacheManager) activeKey() string {
	return c.config.Cache.LiveKeyPrefix + "active"
}

// SetLiveState 写入实时状态（带 TTL）
func (c *CacheManager) SetLiveState(ctx context.Context, state models.LiveState) error {
	ttl := time.Duration(c.config.Cache.LiveTTL) * time.Second
	if err := c.setJSON(ctx, c.liveKey(state.SessionID), state, ttl); err != nil {
		return fmt.Errorf("failed to set live state: %w", err)
	}
	return nil
}

// GetLiveState 读取实时状态
func (c *CacheManager) GetLiveState(ctx context.Context, sessionID string) (*models.LiveState, error) {
	var state models.LiveState
	if err := c.getJSON(ctx, c.liveKey(sessionID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetOutcome 缓存会话结果
func (c *CacheManager) SetOutcome(ctx context.Context, outcome models.SessionOutcome) error {
	ttl := time.Duration(c.config.Cache.OutcomeTTL) * time.Second
	if err := c.setJSON(ctx, c.outcomeKey(outcome.SessionID), outcome, ttl); err != nil {
		return fmt.Errorf("failed to set session outcome: %w", err)
	}

	c.logger.Debug("Cached session outcome",
		zap.String("session_id", outcome.SessionID),
		zap.Bool("early", outcome.Early),
	)
	return nil
}

// GetOutcome 读取会话结果
func (c *CacheManager) GetOutcome(ctx context.Context, sessionID string) (*models.SessionOutcome, error) {
	var outcome models.SessionOutcome
	if err := c.getJSON(ctx, c.outcomeKey(sessionID), &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// SetActiveSession 记录当前活动会话
func (c *CacheManager) SetActiveSession(ctx context.Context, sessionID string) error {
	if err := c.redisClient.Set(ctx, c.activeKey(), sessionID, 0).Err(); err != nil {
		return fmt.Errorf("failed to set active session: %w", err)
	}
	return nil
}

// GetActiveSession 当前活动会话 ID
func (c *CacheManager) GetActiveSession(ctx context.Context) (string, error) {
	val, err := c.redisClient.Get(ctx, c.activeKey()).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active session: %w", err)
	}
	return val, nil
}

// ClearActiveSession 清除活动会话（仅当仍为 sessionID 时）
func (c *CacheManager) ClearActiveSession(ctx context.Context, sessionID string) error {
	current, err := c.GetActiveSession(ctx)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	if current != sessionID {
		return nil
	}
	return c.redisClient.Del(ctx, c.activeKey()).Err()
}

func (c *CacheManager) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.redisClient.Set(ctx, key, data, ttl).Err()
}

func (c *CacheManager) getJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get cache %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
