package api

import (
	"net/http"

	"OddsSync/internal/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler answers liveness probes with db and provider state.
type HealthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewHealthHandler(db *gorm.DB, cfg *config.Config) *HealthHandler {
	return &HealthHandler{db: db, cfg: cfg}
}

// Healthz reports database reachability and whether the provider is
// configured.
// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = err.Error()
	}

	providerConfigured := h.cfg.Provider.BaseURL != "" && h.cfg.Provider.APIKey != ""

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"database":            dbStatus,
		"provider_configured": providerConfigured,
	})
}
