package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SyncRun is the persisted audit record of one pipeline invocation.
// Counts are always attempted-vs-succeeded so data loss is observable
// in the table rather than silent.
type SyncRun struct {
	ID                uint64         `gorm:"primaryKey;column:id;autoIncrement"`
	RunUUID           string         `gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null"`
	League            string         `gorm:"column:league;type:varchar(16);index;not null"`
	WindowStart       time.Time      `gorm:"column:window_start;not null"`
	WindowEnd         time.Time      `gorm:"column:window_end;not null"`
	PagesFetched      int            `gorm:"column:pages_fetched;not null"`
	RecordsNormalized int            `gorm:"column:records_normalized;not null"`
	OddsWritten       int            `gorm:"column:odds_written;not null"`
	OpenOddsWritten   int            `gorm:"column:open_odds_written;not null"`
	RecordsDropped    int            `gorm:"column:records_dropped;not null"`
	RecordsMerged     int            `gorm:"column:records_merged;not null"`
	Status            string         `gorm:"column:status;type:varchar(16);not null"` // completed / truncated / failed
	Warnings          datatypes.JSON `gorm:"column:warnings;type:jsonb"`
	DroppedKeys       datatypes.JSON `gorm:"column:dropped_keys;type:jsonb"`
	StartedAt         time.Time      `gorm:"column:started_at;not null"`
	FinishedAt        time.Time      `gorm:"column:finished_at;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (s *SyncRun) TableName() string {
	return "sync_runs"
}

// SyncSummary is the per-invocation result accumulator. One instance is
// created per pipeline call and returned to the trigger; nothing in the
// pipeline keeps shared mutable counters, so concurrent league runs stay
// independent.
type SyncSummary struct {
	RunUUID           string    `json:"run_uuid"`
	League            string    `json:"league"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	PagesFetched      int       `json:"pages_fetched"`
	EventsSeen        int       `json:"events_seen"`
	RecordsNormalized int       `json:"records_normalized"`
	OddsAttempted     int       `json:"odds_attempted"`
	OddsWritten       int       `json:"odds_written"`
	OpenOddsAttempted int       `json:"open_odds_attempted"`
	OpenOddsWritten   int       `json:"open_odds_written"`
	OpenOddsExisting  int       `json:"open_odds_existing"`
	RecordsDropped    int       `json:"records_dropped"`
	RecordsMerged     int       `json:"records_merged"`
	DroppedKeys       []string  `json:"dropped_keys,omitempty"`
	FailedKeys        []string  `json:"failed_keys,omitempty"`
	MergedKeys        []string  `json:"merged_keys,omitempty"`
	Warnings          []string  `json:"warnings,omitempty"`
	Truncated         bool      `json:"truncated"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Warn appends a warning to the summary.
func (s *SyncSummary) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Status derives the persisted run status from the summary state.
func (s *SyncSummary) Status() string {
	if s.Truncated {
		return "truncated"
	}
	return "completed"
}

// ToRun converts the summary into its persisted form.
func (s *SyncSummary) ToRun() *SyncRun {
	warnings, _ := json.Marshal(s.Warnings)
	droppedKeys, _ := json.Marshal(s.DroppedKeys)
	return &SyncRun{
		RunUUID:           s.RunUUID,
		League:            s.League,
		WindowStart:       s.WindowStart,
		WindowEnd:         s.WindowEnd,
		PagesFetched:      s.PagesFetched,
		RecordsNormalized: s.RecordsNormalized,
		OddsWritten:       s.OddsWritten,
		OpenOddsWritten:   s.OpenOddsWritten,
		RecordsDropped:    s.RecordsDropped,
		RecordsMerged:     s.RecordsMerged,
		Status:            s.Status(),
		Warnings:          datatypes.JSON(warnings),
		DroppedKeys:       datatypes.JSON(droppedKeys),
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
	}
}
