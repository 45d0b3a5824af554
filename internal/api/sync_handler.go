package api

import (
	"net/http"
	"time"

	"OddsSync/internal/config"
	"OddsSync/internal/model"
	"OddsSync/internal/provider/sgo"
	"OddsSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncHandler exposes the pipeline as an operational trigger.
type SyncHandler struct {
	syncService *service.SyncService
	logger      *logrus.Logger
}

func NewSyncHandler(db *gorm.DB, logger *logrus.Logger, cfg *config.Config) *SyncHandler {
	client := sgo.NewClient(&cfg.Provider, logger)
	return &SyncHandler{
		syncService: service.NewSyncService(db, client, cfg, logger),
		logger:      logger,
	}
}

// Service exposes the underlying sync service (shared with the scheduler).
func (h *SyncHandler) Service() *service.SyncService {
	return h.syncService
}

// SyncLeagueHandler triggers one pipeline run for a league.
// POST /sync/league/:league?from=2026-01-01&to=2026-01-08
// from/to default to the configured window (today .. today+days_ahead).
func (h *SyncHandler) SyncLeagueHandler(c *gin.Context) {
	league, err := model.ParseLeague(c.Param("league"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, to := h.syncService.Window()
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
			return
		}
		to = parsed
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not precede from"})
		return
	}

	summary, err := h.syncService.SyncLeague(c.Request.Context(), league, from, to)
	if err != nil {
		h.logger.WithError(err).Errorf("sync %s failed", league)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
