package repository

import (
	"context"
	"fmt"

	"OddsSync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// writeChunkSize bounds each multi-row statement so one bad record can only
// ever force a fallback for its own chunk, not the whole batch.
const writeChunkSize = 100

// identityColumns is the conflict target shared by both odds tables.
var identityColumns = []clause.Column{
	{Name: "event_id"},
	{Name: "odd_id"},
	{Name: "line_key"},
	{Name: "side"},
	{Name: "sportsbook"},
}

// WriteResult reports attempted-vs-succeeded for one table write.
type WriteResult struct {
	Attempted      int
	Written        int
	AlreadyPresent int // open_odds only: conflicting keys left untouched
	Failed         int
	FailedKeys     []string
}

func (w *WriteResult) merge(other WriteResult) {
	w.Attempted += other.Attempted
	w.Written += other.Written
	w.AlreadyPresent += other.AlreadyPresent
	w.Failed += other.Failed
	w.FailedKeys = append(w.FailedKeys, other.FailedKeys...)
}

// OddsRepository is the only write path to the odds and open_odds tables.
// Every statement carries an explicit conflict clause; a bare multi-row
// insert is never issued, since the client aborts the whole statement on the
// first constraint violation and silently sinks the rest of the rows.
type OddsRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewOddsRepository(db *gorm.DB, logger *logrus.Logger) *OddsRepository {
	return &OddsRepository{db: db, logger: logger}
}

// UpsertCurrent writes a batch to the odds table: insert-or-update on the
// identity key, overwriting the price/line/timestamp fields and preserving
// created_at from the first insert.
func (r *OddsRepository) UpsertCurrent(ctx context.Context, recs []*model.Odds) WriteResult {
	var res WriteResult
	for _, chunk := range chunkOdds(recs) {
		res.merge(r.upsertChunk(ctx, chunk))
	}
	return res
}

func (r *OddsRepository) upsertChunk(ctx context.Context, chunk []*model.Odds) WriteResult {
	res := WriteResult{Attempted: len(chunk)}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   identityColumns,
		DoUpdates: clause.AssignmentColumns([]string{"book_odds", "line", "market_name", "fetched_at", "updated_at"}),
	}).Create(&chunk).Error
	if err == nil {
		res.Written = len(chunk)
		return res
	}

	// Chunk failed as a unit; retry record by record so one malformed row
	// cannot zero out its siblings.
	r.logger.WithError(err).WithField("chunk_size", len(chunk)).Warn("odds chunk write failed, falling back to per-record writes")
	res = WriteResult{Attempted: len(chunk)}
	for _, rec := range chunk {
		one := []*model.Odds{rec}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   identityColumns,
			DoUpdates: clause.AssignmentColumns([]string{"book_odds", "line", "market_name", "fetched_at", "updated_at"}),
		}).Create(&one).Error
		if err != nil {
			res.Failed++
			res.FailedKeys = append(res.FailedKeys, rec.IdentityKey())
			r.logger.WithError(err).WithField("identity_key", rec.IdentityKey()).Error("odds record write failed")
			continue
		}
		res.Written++
	}
	return res
}

// InsertOpening writes a batch to the open_odds table: insert-or-ignore on
// the identity key. A conflict is a no-op success, preserving whichever row
// was observed first as the opening line.
func (r *OddsRepository) InsertOpening(ctx context.Context, recs []*model.Odds) WriteResult {
	var res WriteResult
	for _, chunk := range chunkOdds(recs) {
		res.merge(r.insertOpeningChunk(ctx, chunk))
	}
	return res
}

func (r *OddsRepository) insertOpeningChunk(ctx context.Context, chunk []*model.Odds) WriteResult {
	res := WriteResult{Attempted: len(chunk)}

	rows := make([]*model.OpenOdds, 0, len(chunk))
	for _, rec := range chunk {
		rows = append(rows, model.NewOpenOdds(rec))
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   identityColumns,
		DoNothing: true,
	}).Create(&rows)
	if tx.Error == nil {
		res.Written = int(tx.RowsAffected)
		res.AlreadyPresent = len(chunk) - res.Written
		return res
	}

	r.logger.WithError(tx.Error).WithField("chunk_size", len(chunk)).Warn("open_odds chunk write failed, falling back to per-record writes")
	res = WriteResult{Attempted: len(chunk)}
	for i := range chunk {
		// Rebuild the row: the failed multi-row attempt may have touched
		// bookkeeping fields on the original.
		one := []*model.OpenOdds{model.NewOpenOdds(chunk[i])}
		tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   identityColumns,
			DoNothing: true,
		}).Create(&one)
		if tx.Error != nil {
			res.Failed++
			res.FailedKeys = append(res.FailedKeys, chunk[i].IdentityKey())
			r.logger.WithError(tx.Error).WithField("identity_key", chunk[i].IdentityKey()).Error("open_odds record write failed")
			continue
		}
		if tx.RowsAffected > 0 {
			res.Written++
		} else {
			res.AlreadyPresent++
		}
	}
	return res
}

func chunkOdds(recs []*model.Odds) [][]*model.Odds {
	var chunks [][]*model.Odds
	for start := 0; start < len(recs); start += writeChunkSize {
		end := start + writeChunkSize
		if end > len(recs) {
			end = len(recs)
		}
		chunks = append(chunks, recs[start:end])
	}
	return chunks
}

// ReconcileReport describes cross-table state for one event. Divergence is
// reported, never auto-corrected; a missing key points at an upstream defect
// that correction would only mask.
type ReconcileReport struct {
	EventID          string   `json:"event_id"`
	OddsCount        int      `json:"odds_count"`
	OpenOddsCount    int      `json:"open_odds_count"`
	MissingInOpen    []string `json:"missing_in_open,omitempty"`
	MissingInCurrent []string `json:"missing_in_current,omitempty"`
	Diverged         bool     `json:"diverged"`
}

// ReconcileEvent compares identity-key sets between odds and open_odds for
// one event.
func (r *OddsRepository) ReconcileEvent(ctx context.Context, eventID string) (*ReconcileReport, error) {
	var current []model.Odds
	if err := r.db.WithContext(ctx).
		Select("event_id", "odd_id", "line_key", "side", "sportsbook").
		Where("event_id = ?", eventID).
		Find(&current).Error; err != nil {
		return nil, fmt.Errorf("load odds keys: %w", err)
	}

	var opening []model.OpenOdds
	if err := r.db.WithContext(ctx).
		Select("event_id", "odd_id", "line_key", "side", "sportsbook").
		Where("event_id = ?", eventID).
		Find(&opening).Error; err != nil {
		return nil, fmt.Errorf("load open_odds keys: %w", err)
	}

	currentKeys := make(map[string]struct{}, len(current))
	for i := range current {
		currentKeys[current[i].IdentityKey()] = struct{}{}
	}
	openKeys := make(map[string]struct{}, len(opening))
	for i := range opening {
		openKeys[opening[i].IdentityKey()] = struct{}{}
	}

	report := &ReconcileReport{
		EventID:       eventID,
		OddsCount:     len(currentKeys),
		OpenOddsCount: len(openKeys),
	}
	for key := range currentKeys {
		if _, ok := openKeys[key]; !ok {
			report.MissingInOpen = append(report.MissingInOpen, key)
		}
	}
	for key := range openKeys {
		if _, ok := currentKeys[key]; !ok {
			report.MissingInCurrent = append(report.MissingInCurrent, key)
		}
	}
	report.Diverged = len(report.MissingInOpen) > 0 || len(report.MissingInCurrent) > 0
	return report, nil
}

// SampleEventIDs returns up to limit distinct event IDs for a league, used
// for post-run reconciliation sampling.
func (r *OddsRepository) SampleEventIDs(ctx context.Context, league string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Odds{}).
		Where("league = ?", league).
		Distinct("event_id").
		Limit(limit).
		Pluck("event_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("sample event ids: %w", err)
	}
	return ids, nil
}

// OddsFilter narrows the odds listing.
type OddsFilter struct {
	EventID    string
	League     string
	Sportsbook string
	BetType    string
}

// ListOdds pages through current odds, newest first.
func (r *OddsRepository) ListOdds(ctx context.Context, filter OddsFilter, page, pageSize int) ([]*model.Odds, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Odds{})
	if filter.EventID != "" {
		db = db.Where("event_id = ?", filter.EventID)
	}
	if filter.League != "" {
		db = db.Where("league = ?", filter.League)
	}
	if filter.Sportsbook != "" {
		db = db.Where("sportsbook = ?", filter.Sportsbook)
	}
	if filter.BetType != "" {
		db = db.Where("bet_type = ?", filter.BetType)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Odds
	if err := db.Order("fetched_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListOpenOdds returns the frozen opening lines for one event.
func (r *OddsRepository) ListOpenOdds(ctx context.Context, eventID string) ([]*model.OpenOdds, error) {
	var list []*model.OpenOdds
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("odd_id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SaveSyncRun persists the audit record for one pipeline invocation.
func (r *OddsRepository) SaveSyncRun(ctx context.Context, run *model.SyncRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("save sync run: %w", err)
	}
	return nil
}

// ListSyncRuns pages through past runs, newest first.
func (r *OddsRepository) ListSyncRuns(ctx context.Context, league string, page, pageSize int) ([]*model.SyncRun, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.SyncRun{})
	if league != "" {
		db = db.Where("league = ?", league)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.SyncRun
	if err := db.Order("started_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
