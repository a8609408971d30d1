package handlers

import (
	"gorm.io/gorm"

	"convstore/internal/common"
	"convstore/internal/config"
	"convstore/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Repo *store.Repo
	Cfg  config.Config
}

func NewHandler(db *gorm.DB, cfg config.Config) *Handler {
	return &Handler{Repo: store.NewRepo(db), Cfg: cfg}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
