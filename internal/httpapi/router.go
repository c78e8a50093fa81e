package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/foundly/foundly/internal/common"
	"github.com/foundly/foundly/internal/config"
	"github.com/foundly/foundly/internal/httpapi/handlers"
	"github.com/foundly/foundly/internal/httpapi/middleware"
	"github.com/foundly/foundly/internal/moderation"
	"github.com/foundly/foundly/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, logger *logrus.Logger, pub moderation.JobPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, logger, pub)

	r.GET("/ping", h.Ping)

	// signup captcha
	r.POST("/captcha", h.SendCaptcha)

	// users
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	r.POST("/password/reset/request", h.RequestPasswordReset)
	r.POST("/password/reset", h.ResetPassword)

	// public browse; authed callers also see their own pending items
	r.GET("/items", middleware.AuthOptional(cfg.JWTSecret), h.BrowseItems)
	r.GET("/items/:id", h.GetItem)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/me/chats/stream", h.StreamUserChats)

	// items (JWT required)
	authGroup.POST("/items", h.ReportItem)
	authGroup.PATCH("/items/:id", h.UpdateItem)
	authGroup.DELETE("/items/:id", h.DeleteItem)

	// chat (JWT required)
	authGroup.POST("/chats", h.StartChat)
	authGroup.GET("/chats", h.ListChats)
	authGroup.POST("/chats/:chat_id/messages", h.SendChatMessage)
	authGroup.GET("/chats/:chat_id/messages", h.ListChatMessages)
	authGroup.GET("/chats/:chat_id/messages/stream", h.StreamChatMessages)
	authGroup.GET("/ws/chats/:chat_id", h.ChatWebSocket)

	return r
}
