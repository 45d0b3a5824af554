package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OddsSync/internal/config"
	"OddsSync/internal/model"
	"OddsSync/internal/pipeline"
	"OddsSync/internal/provider/sgo"
	"OddsSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventsFetcher is the provider-facing contract the pipeline depends on.
type EventsFetcher interface {
	FetchEventsPage(ctx context.Context, q sgo.EventsQuery) (*sgo.EventsPage, error)
	MaxPages() int
}

// SyncService drives one ingestion pipeline invocation per league:
// fetch page -> normalize -> dedup/batch -> dual-table write, each page
// processed to completion before the next is requested. All counters live in
// the per-invocation summary, so concurrent league runs never share state.
type SyncService struct {
	fetcher    EventsFetcher
	normalizer *pipeline.Normalizer
	batcher    *pipeline.Batcher
	repo       *repository.OddsRepository
	cfg        *config.Config
	logger     *logrus.Logger
}

func NewSyncService(db *gorm.DB, fetcher EventsFetcher, cfg *config.Config, logger *logrus.Logger) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		normalizer: pipeline.NewNormalizer(logger),
		batcher:    pipeline.NewBatcher(cfg.Sync.BatchSize, logger),
		repo:       repository.NewOddsRepository(db, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// SyncLeague runs the full pipeline for one league and date window and
// returns the invocation summary. Fetch-stage failures surface as summary
// warnings, not errors; the returned error is reserved for conditions that
// prevent the run from doing anything at all.
func (s *SyncService) SyncLeague(ctx context.Context, league model.League, from, to time.Time) (*model.SyncSummary, error) {
	summary := &model.SyncSummary{
		RunUUID:     uuid.NewString(),
		League:      string(league),
		WindowStart: from,
		WindowEnd:   to,
		StartedAt:   time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"run_uuid": summary.RunUUID,
		"league":   league,
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
	}).Info("league sync started")

	cursor := ""
	maxPages := s.fetcher.MaxPages()
	for page := 0; page < maxPages; page++ {
		pageData, err := s.fetcher.FetchEventsPage(ctx, sgo.EventsQuery{
			LeagueID:     league.ProviderID(),
			StartsAfter:  from,
			StartsBefore: to,
			Cursor:       cursor,
		})
		if err != nil {
			summary.Truncated = true
			if errors.Is(err, sgo.ErrRateLimited) {
				summary.Warn(fmt.Sprintf("pagination stopped on page %d: provider rate limit (429); partial results kept", page+1))
			} else {
				summary.Warn(fmt.Sprintf("pagination stopped on page %d: %v", page+1, err))
			}
			break
		}

		summary.PagesFetched++
		summary.EventsSeen += len(pageData.Events)
		s.processPage(ctx, pageData.Events, summary)

		if pageData.NextCursor == "" {
			break
		}
		cursor = pageData.NextCursor
		if page == maxPages-1 {
			summary.Truncated = true
			summary.Warn(fmt.Sprintf("page cap (%d) reached with more pages available", maxPages))
		}
	}

	s.reconcileSample(ctx, league, summary)

	summary.FinishedAt = time.Now().UTC()
	if err := s.repo.SaveSyncRun(ctx, summary.ToRun()); err != nil {
		s.logger.WithError(err).WithField("run_uuid", summary.RunUUID).Error("persist sync run failed")
		summary.Warn("sync run audit row could not be persisted")
	}

	s.logger.WithFields(logrus.Fields{
		"run_uuid":           summary.RunUUID,
		"league":             league,
		"pages":              summary.PagesFetched,
		"records_normalized": summary.RecordsNormalized,
		"odds_written":       summary.OddsWritten,
		"open_odds_written":  summary.OpenOddsWritten,
		"dropped":            summary.RecordsDropped,
		"merged":             summary.RecordsMerged,
		"warnings":           len(summary.Warnings),
	}).Info("league sync finished")

	return summary, nil
}

// processPage normalizes, dedups and writes one page of events. Per-record
// write failures are counted and reported; they never abort the page.
func (s *SyncService) processPage(ctx context.Context, events []model.EventPayload, summary *model.SyncSummary) {
	var records []*model.Odds
	for i := range events {
		res := s.normalizer.NormalizeEvent(&events[i])
		records = append(records, res.Records...)
		summary.RecordsDropped += res.Invalid + res.Unsupported
		summary.DroppedKeys = append(summary.DroppedKeys, res.Dropped...)
	}
	summary.RecordsNormalized += len(records)
	if len(records) == 0 {
		return
	}

	batchRes := s.batcher.Build(records, time.Now())
	summary.RecordsMerged += batchRes.Merged
	summary.MergedKeys = append(summary.MergedKeys, batchRes.MergedKeys...)
	summary.Warnings = append(summary.Warnings, batchRes.Warnings...)

	for _, batch := range batchRes.Batches {
		// The two tables have different write policies and no shared
		// transaction; each gets its own independent attempt.
		current := s.repo.UpsertCurrent(ctx, batch)
		summary.OddsAttempted += current.Attempted
		summary.OddsWritten += current.Written
		summary.FailedKeys = append(summary.FailedKeys, current.FailedKeys...)

		opening := s.repo.InsertOpening(ctx, batch)
		summary.OpenOddsAttempted += opening.Attempted
		summary.OpenOddsWritten += opening.Written
		summary.OpenOddsExisting += opening.AlreadyPresent
		summary.FailedKeys = append(summary.FailedKeys, opening.FailedKeys...)

		if current.Failed > 0 || opening.Failed > 0 {
			summary.Warn(fmt.Sprintf("batch write: %d/%d odds and %d/%d open_odds records failed", current.Failed, current.Attempted, opening.Failed, opening.Attempted))
		}
	}
}

// reconcileSample compares identity-key sets across the two tables for a
// sample of this league's events. Divergence is reported in the summary;
// auto-correcting here could mask a real upstream defect.
func (s *SyncService) reconcileSample(ctx context.Context, league model.League, summary *model.SyncSummary) {
	ids, err := s.repo.SampleEventIDs(ctx, string(league), s.cfg.Sync.ReconcileSampleSize)
	if err != nil {
		s.logger.WithError(err).Warn("reconciliation sampling failed")
		summary.Warn("reconciliation sampling failed")
		return
	}
	for _, eventID := range ids {
		report, err := s.repo.ReconcileEvent(ctx, eventID)
		if err != nil {
			s.logger.WithError(err).WithField("event_id", eventID).Warn("reconciliation check failed")
			continue
		}
		if report.Diverged {
			summary.Warn(fmt.Sprintf("event %s diverged: odds=%d open_odds=%d missing_in_open=%d missing_in_current=%d",
				eventID, report.OddsCount, report.OpenOddsCount, len(report.MissingInOpen), len(report.MissingInCurrent)))
			s.logger.WithFields(logrus.Fields{
				"event_id":           eventID,
				"odds_count":         report.OddsCount,
				"open_odds_count":    report.OpenOddsCount,
				"missing_in_open":    len(report.MissingInOpen),
				"missing_in_current": len(report.MissingInCurrent),
			}).Warn("cross-table divergence detected")
		}
	}
}

// Window computes the fetch date window from config: today through
// today+days_ahead, inclusive.
func (s *SyncService) Window() (time.Time, time.Time) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	return now, now.AddDate(0, 0, s.cfg.Sync.DaysAhead)
}
