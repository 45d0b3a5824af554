package scheduler

import (
	"context"
	"time"

	"OddsSync/internal/config"
	"OddsSync/internal/model"
	"OddsSync/internal/service"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically runs the ingestion pipeline for every enabled
// league. Leagues are synced sequentially within a tick; they touch disjoint
// event IDs, so interleaving would be safe, but sequential keeps provider
// load predictable.
type Scheduler struct {
	syncService *service.SyncService
	cfg         *config.SyncConfig
	logger      *logrus.Logger
}

func NewScheduler(syncService *service.SyncService, cfg *config.SyncConfig, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		syncService: syncService,
		cfg:         cfg,
		logger:      logger,
	}
}

// Start blocks until ctx is cancelled, running every enabled league once per
// interval. A failed league run is logged and does not stop the loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("scheduler disabled (sync.interval is 0)")
		return
	}

	leagues := make([]model.League, 0, len(s.cfg.EnabledLeagues))
	for _, name := range s.cfg.EnabledLeagues {
		league, err := model.ParseLeague(name)
		if err != nil {
			s.logger.WithError(err).Warn("skipping unknown league in sync.enabled_leagues")
			continue
		}
		leagues = append(leagues, league)
	}
	if len(leagues) == 0 {
		s.logger.Warn("scheduler has no valid leagues to sync")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"interval": s.cfg.Interval.String(),
		"leagues":  leagues,
	}).Info("scheduler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runAll(ctx, leagues)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context, leagues []model.League) {
	from, to := s.syncService.Window()
	for _, league := range leagues {
		if ctx.Err() != nil {
			return
		}
		summary, err := s.syncService.SyncLeague(ctx, league, from, to)
		if err != nil {
			s.logger.WithError(err).Errorf("scheduled sync for %s failed", league)
			continue
		}
		if len(summary.Warnings) > 0 {
			s.logger.WithFields(logrus.Fields{
				"league":   league,
				"run_uuid": summary.RunUUID,
				"warnings": summary.Warnings,
			}).Warn("scheduled sync finished with warnings")
		}
	}
}
