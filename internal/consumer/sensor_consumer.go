package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqttcommon "github.com/CodingHusk3y/heartwake/internal/common/mqtt"
	"github.com/CodingHusk3y/heartwake/internal/detector"
	"github.com/CodingHusk3y/heartwake/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// sensorMessage 传感器上报格式
//
//	{"ts": 1709517600000, "db": -42.5}
//	{"ts": 1709517600000, "magnitude": 0.03}
//	{"ts": 1709517600000, "hr": 58}
type sensorMessage struct {
	Timestamp *int64   `json:"ts,omitempty"` // 毫秒
	DB        *float64 `json:"db,omitempty"`
	Amplitude *float64 `json:"amplitude,omitempty"`
	Magnitude *float64 `json:"magnitude,omitempty"`
	HR        *float64 `json:"hr,omitempty"`
}

// SensorConsumer 通过 MQTT 接入音量、体动和外部心率
type SensorConsumer struct {
	sub    Subscriber
	qos    byte
	now    func() time.Time
	logger *zap.Logger
}

// NewSensorConsumer 创建传感器消费者
func NewSensorConsumer(sub Subscriber, qos byte, logger *zap.Logger) *SensorConsumer {
	return &SensorConsumer{
		sub:    sub,
		qos:    qos,
		now:    time.Now,
		logger: logger,
	}
}

func (c *SensorConsumer) decode(payload []byte) (sensorMessage, time.Time, error) {
	var msg sensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, time.Time{}, fmt.Errorf("failed to decode sensor message: %w", err)
	}
	ts := c.now()
	if msg.Timestamp != nil {
		ts = time.UnixMilli(*msg.Timestamp)
	}
	return msg, ts, nil
}

// topicSource 单主题订阅
type topicSource struct {
	consumer *SensorConsumer
	topic    string

	mu     sync.Mutex
	active bool
}

func (s *topicSource) start(handle func(payload []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	logger := s.consumer.logger
	err := s.consumer.sub.Subscribe(s.topic, s.consumer.qos, func(topic string, payload []byte) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Sensor handler panic", zap.String("topic", topic), zap.Any("panic", r))
				err = fmt.Errorf("sensor handler panic: %v", r)
			}
		}()
		return handle(payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSensorUnavailable, err)
	}
	s.active = true
	logger.Info("Sensor subscribed", zap.String("topic", s.topic))
	return nil
}

// Stop 取消订阅
func (s *topicSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	if err := s.consumer.sub.Unsubscribe(s.topic); err != nil {
		s.consumer.logger.Warn("Failed to unsubscribe sensor topic",
			zap.String("topic", s.topic),
			zap.Error(err),
		)
	}
}

// AmplitudeSource MQTT 音量源（实现 detector.AmplitudeSource）
type AmplitudeSource struct {
	topicSource
}

// AmplitudeSource 创建音量源
func (c *SensorConsumer) AmplitudeSource(topic string) *AmplitudeSource {
	return &AmplitudeSource{topicSource{consumer: c, topic: topic}}
}

// Start 订阅音量主题
func (s *AmplitudeSource) Start(ctx context.Context, handler detector.SampleHandler) error {
	return s.start(func(payload []byte) error {
		msg, ts, err := s.consumer.decode(payload)
		if err != nil {
			return err
		}
		var amplitude float64
		switch {
		case msg.Amplitude != nil:
			amplitude = *msg.Amplitude
		case msg.DB != nil:
			amplitude = detector.AmplitudeFromDecibels(*msg.DB)
		default:
			amplitude = detector.AmplitudeFromDecibels(detector.SilenceDecibels)
		}
		handler(models.AmplitudeSample{Timestamp: ts, Amplitude: amplitude})
		return nil
	})
}

// MotionSource MQTT 体动源
type MotionSource struct {
	topicSource
}

// MotionSource 创建体动源
func (c *SensorConsumer) MotionSource(topic string) *MotionSource {
	return &MotionSource{topicSource{consumer: c, topic: topic}}
}

// Start 订阅体动主题
func (s *MotionSource) Start(ctx context.Context, handler func(models.MotionSample)) error {
	return s.start(func(payload []byte) error {
		msg, ts, err := s.consumer.decode(payload)
		if err != nil {
			return err
		}
		if msg.Magnitude == nil {
			return errors.New("motion message without magnitude")
		}
		if *msg.Magnitude < 0 {
			return fmt.Errorf("negative motion magnitude %v", *msg.Magnitude)
		}
		handler(models.MotionSample{Timestamp: ts, Magnitude: *msg.Magnitude})
		return nil
	})
}

// HeartRateSource MQTT 外部心率源
type HeartRateSource struct {
	topicSource
}

// HeartRateSource 创建外部心率源
func (c *SensorConsumer) HeartRateSource(topic string) *HeartRateSource {
	return &HeartRateSource{topicSource{consumer: c, topic: topic}}
}

// Start 订阅心率主题
func (s *HeartRateSource) Start(ctx context.Context, handler func(models.HeartRateSample)) error {
	return s.start(func(payload []byte) error {
		msg, ts, err := s.consumer.decode(payload)
		if err != nil {
			return err
		}
		if msg.HR == nil || *msg.HR <= 0 {
			return errors.New("heart rate message without a positive hr")
		}
		handler(models.HeartRateSample{Timestamp: ts, HR: *msg.HR, Source: "external"})
		return nil
	})
}
