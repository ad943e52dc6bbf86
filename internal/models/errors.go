package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSensorUnavailable 传感器无法获取（如权限被拒绝）
var ErrSensorUnavailable = errors.New("sensor unavailable")

// ConfigurationError 配置错误：在调度前返回给调用方，不下发任何触发，闹钟保持不变
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError 判断错误链中是否包含配置错误
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// TriggerResult 单条触发的下发结果
type TriggerResult struct {
	Trigger   Trigger `json:"trigger"`
	TriggerID string  `json:"trigger_id,omitempty"`
	Err       error   `json:"-"`
}

// OK 是否下发成功
func (r TriggerResult) OK() bool {
	return r.Err == nil
}

// SchedulingFailure 通知分发器拒绝了部分（或全部）触发请求
type SchedulingFailure struct {
	AlarmID string
	Results []TriggerResult
}

// Failed 失败的触发
func (e *SchedulingFailure) Failed() []TriggerResult {
	var failed []TriggerResult
	for _, r := range e.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Scheduled 成功下发的触发 ID
func (e *SchedulingFailure) Scheduled() []string {
	var ids []string
	for _, r := range e.Results {
		if r.OK() {
			ids = append(ids, r.TriggerID)
		}
	}
	return ids
}

func (e *SchedulingFailure) Error() string {
	failed := e.Failed()
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %v", r.Trigger.Kind, r.Err))
	}
	return fmt.Sprintf("scheduling failure for alarm %s: %d of %d triggers rejected (%s)",
		e.AlarmID, len(failed), len(e.Results), strings.Join(parts, "; "))
}
