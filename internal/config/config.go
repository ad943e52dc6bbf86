package config

import (
	"os"
	"strconv"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/common/config"
)

// Config 智能唤醒引擎配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string // HTTP API 监听地址，默认 ":8090"
	}

	// 智能唤醒配置
	SmartWake struct {
		TickInterval         time.Duration // 唤醒监测轮询间隔，默认 15秒
		PollInterval         time.Duration // 环境音量采样间隔，默认 50毫秒（20Hz）
		Sensitivity          float64       // 心跳检测灵敏度，默认 3（范围 1.5..8）
		MinFloor             float64       // 最小音量阈值，默认 0.1
		DefaultWindowMinutes int           // 默认唤醒窗口（分钟），默认 30
		SessionHistoryLimit  int           // 会话历史保留条数，默认 100
		Timezone             string        // 闹钟时区，默认 "Local"
	}

	// 睡眠分期阈值（需结合真实数据校准）
	Staging struct {
		MovingThreshold float64 // 体动高于此值判定为清醒
		StillThreshold  float64 // 深睡眠要求的体动上限
		DeepHRMin       float64
		DeepHRMax       float64
		REMHRMin        float64
		REMHRMax        float64
		REMMotionMax    float64
	}

	// 传感器 MQTT 主题
	Sensors struct {
		DeviceID       string
		AmplitudeTopic string // 环境音量（dB）
		MotionTopic    string // 体动幅度
		HeartRateTopic string // 外部心率源（音量源不可用时的回退）
	}

	// 通知分发配置
	Notify struct {
		Mode            string // "stream" 或 "http"
		TriggerStream   string // 触发请求 Stream
		DeliveredStream string // 送达回执 Stream
		ConsumerGroup   string
		ConsumerName    string
		GatewayURL      string        // http 模式下的推送网关地址
		GatewayTimeout  time.Duration // 默认 10秒
	}

	// Redis 缓存配置
	Cache struct {
		LiveKeyPrefix  string // 实时状态缓存键前缀，如 "heartwake:session:"
		LiveSuffix     string // 实时状态缓存键后缀，如 ":live"
		LiveTTL        int    // 实时状态 TTL（秒），默认 60秒
		OutcomeSuffix  string // 会话结果缓存键后缀，如 ":outcome"
		OutcomeTTL     int    // 会话结果 TTL（秒），默认 24小时
		StateKeyPrefix string // 检测器校准状态键前缀，如 "heartwake:state:"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "heartwake")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "heartwake-engine")
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.SmartWake.TickInterval = time.Duration(getEnvInt("SMARTWAKE_TICK_SECONDS", 15)) * time.Second
	cfg.SmartWake.PollInterval = time.Duration(getEnvInt("SMARTWAKE_POLL_MS", 50)) * time.Millisecond
	cfg.SmartWake.Sensitivity = getEnvFloat("SMARTWAKE_SENSITIVITY", 3)
	cfg.SmartWake.MinFloor = getEnvFloat("SMARTWAKE_MIN_FLOOR", 0.1)
	cfg.SmartWake.DefaultWindowMinutes = getEnvInt("SMARTWAKE_DEFAULT_WINDOW", 30)
	cfg.SmartWake.SessionHistoryLimit = getEnvInt("SMARTWAKE_HISTORY_LIMIT", 100)
	cfg.SmartWake.Timezone = getEnv("SMARTWAKE_TIMEZONE", "Local")

	cfg.Staging.MovingThreshold = getEnvFloat("STAGING_MOVING_THRESHOLD", 0.5)
	cfg.Staging.StillThreshold = getEnvFloat("STAGING_STILL_THRESHOLD", 0.05)
	cfg.Staging.DeepHRMin = getEnvFloat("STAGING_DEEP_HR_MIN", 40)
	cfg.Staging.DeepHRMax = getEnvFloat("STAGING_DEEP_HR_MAX", 60)
	cfg.Staging.REMHRMin = getEnvFloat("STAGING_REM_HR_MIN", 68)
	cfg.Staging.REMHRMax = getEnvFloat("STAGING_REM_HR_MAX", 100)
	cfg.Staging.REMMotionMax = getEnvFloat("STAGING_REM_MOTION_MAX", 0.15)

	cfg.Sensors.DeviceID = getEnv("SENSOR_DEVICE_ID", "bedside-1")
	cfg.Sensors.AmplitudeTopic = getEnv("SENSOR_AMPLITUDE_TOPIC", "heartwake/"+cfg.Sensors.DeviceID+"/amplitude")
	cfg.Sensors.MotionTopic = getEnv("SENSOR_MOTION_TOPIC", "heartwake/"+cfg.Sensors.DeviceID+"/motion")
	cfg.Sensors.HeartRateTopic = getEnv("SENSOR_HEART_RATE_TOPIC", "heartwake/"+cfg.Sensors.DeviceID+"/heart_rate")

	cfg.Notify.Mode = getEnv("NOTIFY_MODE", "stream")
	cfg.Notify.TriggerStream = getEnv("NOTIFY_TRIGGER_STREAM", "heartwake:triggers:stream")
	cfg.Notify.DeliveredStream = getEnv("NOTIFY_DELIVERED_STREAM", "heartwake:delivered:stream")
	cfg.Notify.ConsumerGroup = getEnv("NOTIFY_CONSUMER_GROUP", "heartwake-engine")
	cfg.Notify.ConsumerName = getEnv("NOTIFY_CONSUMER_NAME", "engine-1")
	cfg.Notify.GatewayURL = getEnv("NOTIFY_GATEWAY_URL", "http://localhost:8088")
	cfg.Notify.GatewayTimeout = time.Duration(getEnvInt("NOTIFY_GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second

	cfg.Cache.LiveKeyPrefix = getEnv("CACHE_LIVE_PREFIX", "heartwake:session:")
	cfg.Cache.LiveSuffix = ":live"
	cfg.Cache.LiveTTL = 60
	cfg.Cache.OutcomeSuffix = ":outcome"
	cfg.Cache.OutcomeTTL = 24 * 60 * 60
	cfg.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "heartwake:state:")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Location 解析闹钟时区（无法解析时回退到本地时区）
func (c *Config) Location() *time.Location {
	if c.SmartWake.Timezone == "" || c.SmartWake.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.SmartWake.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
