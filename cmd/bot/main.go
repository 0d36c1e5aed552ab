package main

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xaenox/support-bot/internal/admin"
	"github.com/xaenox/support-bot/internal/bot"
	"github.com/xaenox/support-bot/internal/crypto"
	"github.com/xaenox/support-bot/internal/i18n"
	"github.com/xaenox/support-bot/internal/reminder"
	"github.com/xaenox/support-bot/internal/storage"
	"github.com/xaenox/support-bot/internal/ticket"
	"github.com/xaenox/support-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Content encryption
	cipher, err := crypto.New(cfg.Crypto.Key)
	if err != nil {
		logger.Fatal("Failed to initialize content cipher", zap.Error(err))
	}
	if cipher == nil {
		logger.Warn("No encryption key configured, ticket content will be stored in clear")
	}

	// Initialize storage
	store, err := storage.NewRedisStorage(storage.RedisConfig{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		DB:        cfg.Redis.DB,
		Password:  cfg.Redis.Password,
		OpTimeout: cfg.Redis.OpTimeout,
	}, cipher, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// Localization catalogs
	catalog, err := i18n.Load(cfg.Locales.Path, cfg.Telegram.DefaultLang)
	if err != nil {
		logger.Fatal("Failed to load locales", zap.Error(err), zap.String("path", cfg.Locales.Path))
	}

	// Lifecycle engine
	engine := ticket.NewEngine(store, logger)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, engine, store, catalog, bot.Options{
		GroupID:         cfg.Telegram.GroupID,
		DevID:           cfg.Telegram.DevID,
		DefaultLang:     cfg.Telegram.DefaultLang,
		EmojiNew:        cfg.Emoji.New,
		EmojiInProgress: cfg.Emoji.InProgress,
		EmojiResolved:   cfg.Emoji.Resolved,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}
	notifier := b.Notifier()

	// Reminder sweeps
	sweeper := reminder.NewSweeper(store, notifier, catalog, reminder.Config{
		UserInterval:     cfg.Reminder.UserInterval,
		OperatorInterval: cfg.Reminder.OperatorInterval,
		EscalationAge:    cfg.Reminder.EscalationAge,
	}, logger)

	c := cron.New()
	if err := sweeper.Schedule(c, cfg.Reminder.Schedule); err != nil {
		logger.Fatal("Failed to schedule reminder sweeps", zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	// Admin surface
	if cfg.Admin.Enabled {
		srv := admin.NewServer(engine, notifier, catalog, logger)
		go func() {
			if err := srv.Run(cfg.Admin.Addr); err != nil {
				logger.Error("Admin server stopped", zap.Error(err))
			}
		}()
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
