package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "heartwake", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, 15*time.Second, cfg.SmartWake.TickInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.SmartWake.PollInterval)
	assert.Equal(t, 3.0, cfg.SmartWake.Sensitivity)
	assert.Equal(t, 0.1, cfg.SmartWake.MinFloor)
	assert.Equal(t, 30, cfg.SmartWake.DefaultWindowMinutes)
	assert.Equal(t, 100, cfg.SmartWake.SessionHistoryLimit)

	assert.Equal(t, 0.5, cfg.Staging.MovingThreshold)
	assert.Equal(t, 60.0, cfg.Staging.DeepHRMax)

	assert.Equal(t, "heartwake/bedside-1/amplitude", cfg.Sensors.AmplitudeTopic)
	assert.Equal(t, "heartwake/bedside-1/heart_rate", cfg.Sensors.HeartRateTopic)

	assert.Equal(t, "stream", cfg.Notify.Mode)
	assert.Equal(t, "heartwake:triggers:stream", cfg.Notify.TriggerStream)
	assert.Equal(t, "heartwake:delivered:stream", cfg.Notify.DeliveredStream)

	assert.Equal(t, "heartwake:session:", cfg.Cache.LiveKeyPrefix)
	assert.Equal(t, ":live", cfg.Cache.LiveSuffix)
	assert.Equal(t, 60, cfg.Cache.LiveTTL)
	assert.Equal(t, "heartwake:state:", cfg.Cache.StateKeyPrefix)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("SMARTWAKE_TICK_SECONDS", "5")
	t.Setenv("SMARTWAKE_SENSITIVITY", "4.5")
	t.Setenv("SENSOR_DEVICE_ID", "pillow-7")
	t.Setenv("NOTIFY_MODE", "http")
	t.Setenv("SMARTWAKE_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.SmartWake.TickInterval)
	assert.Equal(t, 4.5, cfg.SmartWake.Sensitivity)
	assert.Equal(t, "heartwake/pillow-7/motion", cfg.Sensors.MotionTopic)
	assert.Equal(t, "http", cfg.Notify.Mode)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("SMARTWAKE_POLL_MS", "fast")
	t.Setenv("STAGING_REM_HR_MIN", "n/a")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.SmartWake.PollInterval)
	assert.Equal(t, 68.0, cfg.Staging.REMHRMin)
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	t.Setenv("TEST_KEY", "test-value")
	assert.Equal(t, "test-value", getEnv("TEST_KEY", "default-value"))
}
