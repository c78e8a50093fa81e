package handlers

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/foundly/foundly/internal/chat"
	"github.com/foundly/foundly/internal/config"
	"github.com/foundly/foundly/internal/email"
	"github.com/foundly/foundly/internal/item"
	"github.com/foundly/foundly/internal/moderation"
	"github.com/foundly/foundly/internal/store/redisstore"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	SMTPSetting email.SMTPConfig
	Logger      *logrus.Logger

	ChatSvc *chat.Service
	ItemSvc *item.Service
	ModSvc  *moderation.Service

	// nil when RabbitMQ is not configured; items with photos are then
	// approved without a check.
	Publisher moderation.JobPublisher
}

func NewHandler(db *gorm.DB, cfg config.Config, r *redisstore.Store, logger *logrus.Logger, pub moderation.JobPublisher) *Handler {
	if logger == nil {
		logger = logrus.New()
	}

	chatSvc := chat.NewService(chat.NewRepo(db), chat.NewHub(), logger)
	itemSvc := item.NewService(item.NewRepo(db), logger)
	provider := moderation.NewVisionProvider(cfg.VisionBaseURL, cfg.VisionAPIKey)
	modSvc := moderation.NewService(db, itemSvc, provider, logger)

	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: r,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		Logger:    logger,
		ChatSvc:   chatSvc,
		ItemSvc:   itemSvc,
		ModSvc:    modSvc,
		Publisher: pub,
	}
}
