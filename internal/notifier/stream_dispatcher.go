package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "github.com/CodingHusk3y/heartwake/internal/common/redis"
	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StreamDispatcher 通过 Redis Streams 下发触发请求，由推送网关消费
type StreamDispatcher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamDispatcher 创建 Streams 分发器
func NewStreamDispatcher(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamDispatcher {
	return &StreamDispatcher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// ScheduleOnce 下发单次触发
func (d *StreamDispatcher) ScheduleOnce(ctx context.Context, at time.Time, payload models.TriggerPayload) (string, error) {
	if at.IsZero() {
		return "", fmt.Errorf("trigger instant is required")
	}
	return d.publish(ctx, TriggerRequest{
		Action:  ActionScheduleOnce,
		At:      &at,
		Hour:    at.Hour(),
		Minute:  at.Minute(),
		Payload: &payload,
	})
}

// ScheduleRecurring 下发每周重复触发
func (d *StreamDispatcher) ScheduleRecurring(ctx context.Context, weekday, hour, minute int, payload models.TriggerPayload) (string, error) {
	if weekday < 1 || weekday > 7 {
		return "", fmt.Errorf("trigger weekday %d out of range 1..7", weekday)
	}
	return d.publish(ctx, TriggerRequest{
		Action:  ActionScheduleRecurring,
		Weekday: weekday,
		Hour:    hour,
		Minute:  minute,
		Payload: &payload,
	})
}

// Cancel 下发取消请求
func (d *StreamDispatcher) Cancel(ctx context.Context, triggerID string) error {
	_, err := d.publishWithID(ctx, triggerID, TriggerRequest{Action: ActionCancel})
	return err
}

func (d *StreamDispatcher) publish(ctx context.Context, req TriggerRequest) (string, error) {
	return d.publishWithID(ctx, uuid.New().String(), req)
}

func (d *StreamDispatcher) publishWithID(ctx context.Context, triggerID string, req TriggerRequest) (string, error) {
	req.TriggerID = triggerID
	values := map[string]interface{}{
		"action":     req.Action,
		"trigger_id": triggerID,
		"timestamp":  time.Now().Unix(),
	}
	if req.Payload != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return "", fmt.Errorf("failed to marshal trigger request: %w", err)
		}
		values["data"] = string(data)
		values["alarm_id"] = req.Payload.AlarmID
	}

	messageID, err := rediscommon.PublishToStream(ctx, d.redisClient, d.stream, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish trigger request: %w", err)
	}

	d.logger.Debug("Trigger request published",
		zap.String("stream", d.stream),
		zap.String("action", req.Action),
		zap.String("trigger_id", triggerID),
		zap.String("message_id", messageID),
	)
	return triggerID, nil
}
