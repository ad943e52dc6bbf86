package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "github.com/CodingHusk3y/heartwake/internal/common/mqtt"
	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	subscribeErr error
	handlers     map[string]mqttcommon.MessageHandler
	unsubscribed []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqttcommon.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.handlers, topic)
		f.unsubscribed = append(f.unsubscribed, topic)
	}
	return nil
}

func (f *fakeSubscriber) publish(topic, payload string) error {
	f.mu.Lock()
	handler, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return errors.New("no subscriber")
	}
	return handler(topic, []byte(payload))
}

func TestAmplitudeSource_DecodesDecibels(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewSensorConsumer(sub, 1, zap.NewNop())
	fixed := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	var samples []models.AmplitudeSample
	src := c.AmplitudeSource("heartwake/bed/amplitude")
	require.NoError(t, src.Start(context.Background(), func(s models.AmplitudeSample) {
		samples = append(samples, s)
	}))

	require.NoError(t, sub.publish("heartwake/bed/amplitude", `{"ts": 1709607600000, "db": -20}`))
	require.NoError(t, sub.publish("heartwake/bed/amplitude", `{"amplitude": 0.4}`))
	require.NoError(t, sub.publish("heartwake/bed/amplitude", `{}`))
	// 解析失败只返回错误，不影响后续消息
	assert.Error(t, sub.publish("heartwake/bed/amplitude", `not json`))

	require.Len(t, samples, 3)
	assert.InDelta(t, 0.1, samples[0].Amplitude, 1e-9)
	assert.Equal(t, time.UnixMilli(1709607600000), samples[0].Timestamp)
	assert.Equal(t, 0.4, samples[1].Amplitude)
	assert.Equal(t, fixed, samples[1].Timestamp)
	assert.InDelta(t, 0, samples[2].Amplitude, 1e-6)

	src.Stop()
	src.Stop()
	assert.Equal(t, []string{"heartwake/bed/amplitude"}, sub.unsubscribed)
}

func TestAmplitudeSource_SubscribeFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.subscribeErr = errors.New("not authorized")
	c := NewSensorConsumer(sub, 1, zap.NewNop())

	err := c.AmplitudeSource("heartwake/bed/amplitude").Start(context.Background(), func(models.AmplitudeSample) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSensorUnavailable))
}

func TestMotionSource(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewSensorConsumer(sub, 0, zap.NewNop())

	var samples []models.MotionSample
	src := c.MotionSource("heartwake/bed/motion")
	require.NoError(t, src.Start(context.Background(), func(s models.MotionSample) {
		samples = append(samples, s)
	}))

	require.NoError(t, sub.publish("heartwake/bed/motion", `{"magnitude": 0.03}`))
	assert.Error(t, sub.publish("heartwake/bed/motion", `{"magnitude": -1}`))
	assert.Error(t, sub.publish("heartwake/bed/motion", `{"hr": 60}`))

	require.Len(t, samples, 1)
	assert.Equal(t, 0.03, samples[0].Magnitude)
}

func TestHeartRateSource(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewSensorConsumer(sub, 0, zap.NewNop())

	var samples []models.HeartRateSample
	src := c.HeartRateSource("heartwake/bed/heart_rate")
	require.NoError(t, src.Start(context.Background(), func(s models.HeartRateSample) {
		samples = append(samples, s)
	}))

	require.NoError(t, sub.publish("heartwake/bed/heart_rate", `{"hr": 58}`))
	assert.Error(t, sub.publish("heartwake/bed/heart_rate", `{"hr": 0}`))

	require.Len(t, samples, 1)
	assert.Equal(t, 58.0, samples[0].HR)
	assert.Equal(t, "external", samples[0].Source)
}

func TestSensorHandlerPanicIsRecovered(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewSensorConsumer(sub, 0, zap.NewNop())

	src := c.MotionSource("heartwake/bed/motion")
	require.NoError(t, src.Start(context.Background(), func(models.MotionSample) {
		panic("boom")
	}))

	var err error
	assert.NotPanics(t, func() {
		err = sub.publish("heartwake/bed/motion", `{"magnitude": 0.1}`)
	})
	assert.Error(t, err)
}
