package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// gatewayResponse 推送网关响应
type gatewayResponse struct {
	TriggerID string `json:"trigger_id"`
}

// gatewayError 推送网关错误响应
type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPDispatcher 通过 HTTP 推送网关下发触发请求
type HTTPDispatcher struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPDispatcher 创建 HTTP 分发器
func NewHTTPDispatcher(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPDispatcher{
		httpClient: client,
		logger:     logger,
	}
}

// ScheduleOnce 下发单次触发
func (d *HTTPDispatcher) ScheduleOnce(ctx context.Context, at time.Time, payload models.TriggerPayload) (string, error) {
	return d.schedule(ctx, TriggerRequest{
		Action:  ActionScheduleOnce,
		At:      &at,
		Hour:    at.Hour(),
		Minute:  at.Minute(),
		Payload: &payload,
	})
}

// ScheduleRecurring 下发每周重复触发
func (d *HTTPDispatcher) ScheduleRecurring(ctx context.Context, weekday, hour, minute int, payload models.TriggerPayload) (string, error) {
	return d.schedule(ctx, TriggerRequest{
		Action:  ActionScheduleRecurring,
		Weekday: weekday,
		Hour:    hour,
		Minute:  minute,
		Payload: &payload,
	})
}

func (d *HTTPDispatcher) schedule(ctx context.Context, req TriggerRequest) (string, error) {
	var result gatewayResponse
	var failure gatewayError
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("/v1/triggers")
	if err != nil {
		return "", fmt.Errorf("failed to call push gateway: %w", err)
	}
	if resp.IsError() {
		d.logger.Warn("Push gateway rejected trigger",
			zap.String("action", req.Action),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("code", failure.Code),
			zap.String("message", failure.Message),
		)
		return "", fmt.Errorf("push gateway rejected trigger: %s (status: %d)", failure.Message, resp.StatusCode())
	}
	if result.TriggerID == "" {
		return "", fmt.Errorf("push gateway returned no trigger id")
	}
	return result.TriggerID, nil
}

// Cancel 取消触发
func (d *HTTPDispatcher) Cancel(ctx context.Context, triggerID string) error {
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", triggerID).
		Delete("/v1/triggers/{id}")
	if err != nil {
		return fmt.Errorf("failed to call push gateway: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("push gateway failed to cancel trigger %s (status: %d)", triggerID, resp.StatusCode())
	}
	return nil
}
