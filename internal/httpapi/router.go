package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/manonkim2/ai-character-chat/internal/chat"
	"github.com/manonkim2/ai-character-chat/internal/common"
	"github.com/manonkim2/ai-character-chat/internal/config"
	"github.com/manonkim2/ai-character-chat/internal/httpapi/handlers"
	"github.com/manonkim2/ai-character-chat/internal/httpapi/middleware"
	"github.com/manonkim2/ai-character-chat/internal/store/rabbitmq"
)

func NewRouter(db *gorm.DB, cfg config.Config, cache chat.Cache, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, cache, rabbit)

	r.GET("/ping", h.Ping)

	// streaming relay; the browser client talks to this directly
	r.POST("/api/chat", h.ChatStream)

	// everything below needs the opaque identity issued by the auth provider
	authGroup := r.Group("/")
	authGroup.Use(middleware.Identity())

	authGroup.POST("/characters", h.CreateCharacter)
	authGroup.GET("/characters", h.ListCharacters)
	authGroup.DELETE("/characters/:id", h.DeleteCharacter)

	authGroup.PUT("/characters/:id/messages", h.SaveConversation)
	authGroup.GET("/characters/:id/messages", h.ListConversation)
	authGroup.DELETE("/characters/:id/messages", h.DeleteConversation)

	authGroup.POST("/characters/:id/save-jobs", h.SaveConversationAsync)
	authGroup.GET("/save-jobs/:job_id", h.GetSaveJob)

	return r
}
