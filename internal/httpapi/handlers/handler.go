package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/manonkim2/ai-character-chat/internal/ai"
	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/common"
	"github.com/manonkim2/ai-character-chat/internal/config"
	"github.com/manonkim2/ai-character-chat/internal/httpapi/middleware"
	"github.com/manonkim2/ai-character-chat/internal/store/rabbitmq"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	ChatSvc *chat.Service
	Rabbit  *rabbitmq.Publisher

	// Upstream is nil when no credential is configured; the relay then
	// serves the dev echo fallback.
	Upstream ai.Streamer
}

func NewHandler(db *gorm.DB, cfg config.Config, cache chat.Cache, rabbit *rabbitmq.Publisher) *Handler {
	repo := chat.NewRepo(db)
	svc := chat.NewService(repo, cache)

	var upstream ai.Streamer
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		upstream = ai.NewAnthropicProvider(
			cfg.AnthropicBaseURL,
			cfg.AnthropicAPIKey,
			cfg.AnthropicModel,
			cfg.AnthropicVersion,
			cfg.AnthropicMaxTokens,
		)
	}

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		ChatSvc:  svc,
		Rabbit:   rabbit,
		Upstream: upstream,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.Ok(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func unauthorized(c *gin.Context) {
	common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
}
