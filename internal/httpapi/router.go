package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"convstore/internal/common"
	"convstore/internal/config"
	"convstore/internal/httpapi/handlers"
	"convstore/internal/httpapi/middleware"
)

func NewRouter(db *gorm.DB, cfg config.Config) *gin.Engine {
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

	h := handlers.NewHandler(db, cfg)

	r.GET("/ping", h.Ping)

	api := r.Group("/")
	if cfg.AuthSecret != "" {
		api.Use(middleware.AuthRequired(cfg.AuthSecret))
	}

	api.GET("/conversations", h.ListConversations)
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations/:id", h.GetConversation)
	api.DELETE("/conversations/:id", h.DeleteConversation)
	api.PATCH("/conversations/:id/title", h.UpdateTitle)
	api.PUT("/conversations/:id/blocks/:position", h.PutBlock)
	api.PUT("/conversations/:id/blocks/:position/draft", h.PutDraftBlock)
	api.DELETE("/conversations/:id/blocks/:position/draft", h.DeleteDraftBlock)
	api.POST("/maintenance/orphans", h.CleanupOrphans)

	return r
}
