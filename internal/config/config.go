package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// TripPolicy 行程开启策略（处理 trip-start 时已有进行中行程的情况）
const (
	TripPolicyPermissive = "permissive" // 允许并存（设备兼容模式）
	TripPolicyReject     = "reject"     // 拒绝本次 trip-start
	TripPolicyAutoClose  = "autoclose"  // 先结束旧行程再开新行程
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Database
	DatabaseURL string

	// Mail
	MailHost          string
	MailPort          int
	MailUser          string
	MailPass          string
	NotificationsFrom string

	// 外部服务
	BookingAPIURL string
	PushAPIURL    string
	BaseClientURL string
	AmapAPIKey    string // 可选，未配置时跳过逆地理编码

	// 业务策略
	TripPolicy     string
	NotifyInterval time.Duration // 周期通知触发间隔
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:        getEnv("PORT", "4000"),
		Debug:             getEnvBool("DEBUG", false),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MailHost:          getEnv("MAIL_HOST", ""),
		MailPort:          getEnvInt("MAIL_PORT", 587),
		MailUser:          getEnv("MAIL_USER", ""),
		MailPass:          getEnv("MAIL_PASS", ""),
		NotificationsFrom: getEnv("NOTIFICATIONS_FROM", ""),
		BookingAPIURL:     getEnv("BOOKING_API_URL", ""),
		PushAPIURL:        getEnv("PUSH_API_URL", "https://example.com/push/send"),
		BaseClientURL:     getEnv("BASE_CLIENT_URL", ""),
		AmapAPIKey:        getEnv("AMAP_API_KEY", ""),
		TripPolicy:        getEnv("TRIP_POLICY", TripPolicyPermissive),
		NotifyInterval:    getEnvDuration("NOTIFY_INTERVAL", 168*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置形状，核心逻辑启动前必须全部通过
func (c *Config) Validate() error {
	required := map[string]string{
		"DATABASE_URL":       c.DatabaseURL,
		"MAIL_HOST":          c.MailHost,
		"MAIL_USER":          c.MailUser,
		"MAIL_PASS":          c.MailPass,
		"NOTIFICATIONS_FROM": c.NotificationsFrom,
		"BOOKING_API_URL":    c.BookingAPIURL,
		"BASE_CLIENT_URL":    c.BaseClientURL,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("missing required config %s", key)
		}
	}

	if _, err := mail.ParseAddress(c.NotificationsFrom); err != nil {
		return fmt.Errorf("invalid NOTIFICATIONS_FROM: %w", err)
	}

	for key, value := range map[string]string{
		"BOOKING_API_URL": c.BookingAPIURL,
		"PUSH_API_URL":    c.PushAPIURL,
		"BASE_CLIENT_URL": c.BaseClientURL,
	} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid URL in %s: %q", key, value)
		}
	}

	switch c.TripPolicy {
	case TripPolicyPermissive, TripPolicyReject, TripPolicyAutoClose:
	default:
		return fmt.Errorf("invalid TRIP_POLICY: %q", c.TripPolicy)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
