package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu       sync.Mutex
	outcomes []models.SessionOutcome
}

func (r *recorder) onFired(o models.SessionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) all() []models.SessionOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SessionOutcome(nil), r.outcomes...)
}

func session(window int) models.SessionConfig {
	return models.SessionConfig{SessionID: "s-1", AlarmID: "a-1", Target: target, WindowMinutes: window}
}

// 间隔设为一小时，只有启动时的立即检查会自动执行
func newTestMonitor(clock *fakeClock) *WakeMonitor {
	return NewWakeMonitor(WithClock(clock.Now), WithInterval(time.Hour))
}

func TestWakeMonitor_FiresEarlyOnEligibleStage(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)
	rec := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(30), rec.onFired))
	defer m.Stop()

	for i := 0; i < 5; i++ {
		m.OnStageUpdate(models.StageUnknown)
	}
	m.OnStageUpdate(models.StageREM)
	assert.Equal(t, StateMonitoring, m.State())

	m.Tick(target.Add(-40 * time.Minute)) // 窗口开始前
	assert.Empty(t, rec.all())

	m.Tick(target.Add(-10 * time.Minute))
	m.Tick(target.Add(-5 * time.Minute))
	m.Tick(target.Add(time.Minute))

	got := rec.all()
	require.Len(t, got, 1)
	assert.True(t, got[0].Early)
	assert.Equal(t, 10, got[0].MinutesEarly)
	assert.Equal(t, models.StageREM, got[0].Stage)
	assert.Equal(t, target.Add(-10*time.Minute), got[0].WakeAt)
	assert.Equal(t, "s-1", got[0].SessionID)
	assert.Equal(t, StateFiredEarly, m.State())
}

func TestWakeMonitor_MinutesEarlyRoundsUp(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)
	rec := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(30), rec.onFired))
	defer m.Stop()

	m.OnStageUpdate(models.StageLight)
	m.Tick(target.Add(-(9*time.Minute + 10*time.Second)))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].MinutesEarly)
}

func TestWakeMonitor_DeadlineWhenNoEligibleStage(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)
	rec := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(30), rec.onFired))
	defer m.Stop()

	m.OnStageUpdate(models.StageDeep)
	for ts := target.Add(-30 * time.Minute); !ts.After(target); ts = ts.Add(15 * time.Second) {
		m.Tick(ts)
	}
	assert.Empty(t, rec.all(), "must not fire before the target")

	m.OnStageUpdate(models.StageAwake)
	m.Tick(target.Add(15 * time.Second))
	m.Tick(target.Add(30 * time.Second))

	got := rec.all()
	require.Len(t, got, 1)
	assert.False(t, got[0].Early)
	assert.Equal(t, 0, got[0].MinutesEarly)
	assert.Equal(t, models.StageAwake, got[0].Stage)
	assert.False(t, got[0].WakeAt.Before(target))
	assert.Equal(t, StateFiredDeadline, m.State())
}

func TestWakeMonitor_ConcurrentTicksFireOnce(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)

	var calls int32
	require.NoError(t, m.Start(context.Background(), session(30), func(models.SessionOutcome) {
		atomic.AddInt32(&calls, 1)
	}))
	defer m.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.OnStageUpdate(models.StageREM)
			}
			m.Tick(target.Add(-5 * time.Minute))
			m.Tick(target.Add(time.Minute))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, m.State().Terminal())
}

func TestWakeMonitor_StopSuppressesCallback(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)
	rec := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(30), rec.onFired))

	m.Stop()
	m.Tick(target.Add(time.Minute))
	m.Stop()

	assert.Empty(t, rec.all())
	assert.Equal(t, StateStopped, m.State())

	// 未启动时也可以调用
	NewWakeMonitor().Stop()
}

func TestWakeMonitor_RestartInvalidatesPreviousLoop(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := NewWakeMonitor(WithClock(clock.Now), WithInterval(5*time.Millisecond))

	first := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(30), first.onFired))

	second := &recorder{}
	later := session(30)
	later.SessionID = "s-2"
	later.Target = target.Add(24 * time.Hour)
	require.NoError(t, m.Start(context.Background(), later, second.onFired))
	defer m.Stop()

	// 已超过第一个会话的截止时间
	clock.Set(target.Add(time.Minute))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, first.all())
	assert.Empty(t, second.all())
	assert.Equal(t, StateMonitoring, m.State())
}

func TestWakeMonitor_LoopFiresDeadline(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Minute)}
	m := NewWakeMonitor(WithClock(clock.Now), WithInterval(5*time.Millisecond))
	rec := &recorder{}
	require.NoError(t, m.Start(context.Background(), session(0), rec.onFired))
	defer m.Stop()

	clock.Set(target.Add(time.Second))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.all(), 1)
	assert.Equal(t, StateFiredDeadline, m.State())
}

func TestWakeMonitor_CallbackPanicIsRecovered(t *testing.T) {
	clock := &fakeClock{now: target.Add(-time.Hour)}
	m := newTestMonitor(clock)
	require.NoError(t, m.Start(context.Background(), session(30), func(models.SessionOutcome) {
		panic("recorder exploded")
	}))

	assert.NotPanics(t, func() { m.Tick(target.Add(time.Minute)) })
	assert.Equal(t, StateFiredDeadline, m.State())
}

func TestWakeMonitor_RejectsNegativeWindow(t *testing.T) {
	m := NewWakeMonitor()
	err := m.Start(context.Background(), session(-1), nil)
	assert.True(t, models.IsConfigurationError(err))
	assert.Equal(t, StateIdle, m.State())
}
