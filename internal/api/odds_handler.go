package api

import (
	"net/http"
	"strconv"

	"OddsSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OddsHandler serves read-only odds queries and reconciliation reports.
type OddsHandler struct {
	repo   *repository.OddsRepository
	logger *logrus.Logger
}

func NewOddsHandler(db *gorm.DB, logger *logrus.Logger) *OddsHandler {
	return &OddsHandler{
		repo:   repository.NewOddsRepository(db, logger),
		logger: logger,
	}
}

// ListOdds lists current odds.
// GET /api/odds?event_id=&league=&sportsbook=&bet_type=&page=1&page_size=20
func (h *OddsHandler) ListOdds(c *gin.Context) {
	filter := repository.OddsFilter{
		EventID:    c.Query("event_id"),
		League:     c.Query("league"),
		Sportsbook: c.Query("sportsbook"),
		BetType:    c.Query("bet_type"),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.repo.ListOdds(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"data":      list,
	})
}

// ListOpenOdds lists the frozen opening lines for one event.
// GET /api/odds/open?event_id=xxx
func (h *OddsHandler) ListOpenOdds(c *gin.Context) {
	eventID := c.Query("event_id")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	list, err := h.repo.ListOpenOdds(c.Request.Context(), eventID)
	if err != nil {
		h.logger.WithError(err).Error("ListOpenOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": list})
}

// ReconcileEvent reports cross-table divergence for one event.
// GET /api/reconcile/:event_id
func (h *OddsHandler) ReconcileEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	if eventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	report, err := h.repo.ReconcileEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.WithError(err).Error("ReconcileEvent failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListSyncRuns pages through past pipeline invocations.
// GET /api/sync-runs?league=NFL&page=1&page_size=20
func (h *OddsHandler) ListSyncRuns(c *gin.Context) {
	league := c.Query("league")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.repo.ListSyncRuns(c.Request.Context(), league, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListSyncRuns failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"data":      list,
	})
}
