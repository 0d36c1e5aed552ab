package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Crypto   CryptoConfig   `mapstructure:"crypto"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Locales  LocalesConfig  `mapstructure:"locales"`
	Emoji    EmojiConfig    `mapstructure:"emoji"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	GroupID     int64  `mapstructure:"group_id"`
	DevID       int64  `mapstructure:"dev_id"`
	DefaultLang string `mapstructure:"default_lang"`
}

type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	DB        int           `mapstructure:"db"`
	Password  string        `mapstructure:"password"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

type CryptoConfig struct {
	// Key is a base64-encoded 32-byte key. Empty disables content
	// encryption (degraded mode, logged at startup).
	Key string `mapstructure:"key"`
}

type ReminderConfig struct {
	UserInterval     time.Duration `mapstructure:"user_interval"`
	OperatorInterval time.Duration `mapstructure:"operator_interval"`
	EscalationAge    time.Duration `mapstructure:"escalation_age"`
	Schedule         string        `mapstructure:"schedule"`
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LocalesConfig struct {
	Path string `mapstructure:"path"`
}

type EmojiConfig struct {
	New        string `mapstructure:"new"`
	InProgress string `mapstructure:"in_progress"`
	Resolved   string `mapstructure:"resolved"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.default_lang", "en")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.op_timeout", "5s")
	v.SetDefault("reminder.user_interval", "24h")
	v.SetDefault("reminder.operator_interval", "12h")
	v.SetDefault("reminder.escalation_age", "168h")
	v.SetDefault("reminder.schedule", "@every 1m")
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.addr", ":8080")
	v.SetDefault("locales.path", "locales")
	v.SetDefault("emoji.new", "🆕")
	v.SetDefault("emoji.in_progress", "🔵")
	v.SetDefault("emoji.resolved", "✅")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Environment overrides for deploy-time secrets
	if token := v.GetString("BOT_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if groupID := v.GetInt64("BOT_GROUP_ID"); groupID != 0 {
		config.Telegram.GroupID = groupID
	}
	if devID := v.GetInt64("BOT_DEV_ID"); devID != 0 {
		config.Telegram.DevID = devID
	}
	if key := v.GetString("CONTENT_KEY"); key != "" {
		config.Crypto.Key = key
	}
	if host := v.GetString("REDIS_HOST"); host != "" {
		config.Redis.Host = host
	}
	if password := v.GetString("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	return &config, nil
}
