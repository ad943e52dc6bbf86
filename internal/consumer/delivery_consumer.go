package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "github.com/CodingHusk3y/heartwake/internal/common/redis"
	"github.com/CodingHusk3y/heartwake/internal/config"
	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DeliveryHandler 处理通知送达回执
type DeliveryHandler interface {
	HandleDelivered(ctx context.Context, delivery models.TriggerDelivery) error
}

// DeliveryConsumer 从 Redis Streams 消费送达回执（消费者组）
type DeliveryConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	handler     DeliveryHandler
	block       time.Duration
	logger      *zap.Logger
}

// NewDeliveryConsumer 创建送达回执消费者
func NewDeliveryConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	handler DeliveryHandler,
	logger *zap.Logger,
) *DeliveryConsumer {
	return &DeliveryConsumer{
		config:      cfg,
		redisClient: redisClient,
		handler:     handler,
		block:       2 * time.Second,
		logger:      logger,
	}
}

// Start 启动消费循环，直到 ctx 取消
func (c *DeliveryConsumer) Start(ctx context.Context) error {
	stream := c.config.Notify.DeliveredStream
	group := c.config.Notify.ConsumerGroup
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Delivery consumer started",
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", c.config.Notify.ConsumerName),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Delivery consumer stopped")
			return nil
		default:
		}

		if _, err := c.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to read delivery stream", zap.Error(err))
			// 读取失败时稍等再重试
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce 读取并处理一批回执，返回已确认的条数
func (c *DeliveryConsumer) ProcessOnce(ctx context.Context) (int, error) {
	stream := c.config.Notify.DeliveredStream
	group := c.config.Notify.ConsumerGroup

	messages, err := rediscommon.ReadFromStream(ctx, c.redisClient, stream, group,
		c.config.Notify.ConsumerName, 10, c.block)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, msg := range messages {
		if !c.handle(ctx, msg) {
			continue
		}
		if err := rediscommon.AckMessages(ctx, c.redisClient, stream, group, msg.ID); err != nil {
			c.logger.Error("Failed to ack delivery",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		acked++
	}
	return acked, nil
}

// handle 返回是否可以确认该消息（无法解析的消息也确认，避免反复投递）
func (c *DeliveryConsumer) handle(ctx context.Context, msg rediscommon.StreamMessage) bool {
	var delivery models.TriggerDelivery
	if err := json.Unmarshal([]byte(msg.StringValue("data")), &delivery); err != nil {
		c.logger.Warn("Dropping malformed delivery message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return true
	}

	if err := c.handler.HandleDelivered(ctx, delivery); err != nil {
		c.logger.Error("Failed to handle delivery",
			zap.String("trigger_id", delivery.TriggerID),
			zap.String("alarm_id", delivery.AlarmID),
			zap.Error(err),
		)
		return false
	}
	return true
}
