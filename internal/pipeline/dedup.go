package pipeline

import (
	"fmt"
	"time"

	"OddsSync/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBatchSize keeps multi-row writes under the storage layer's
	// practical insert-size limits.
	DefaultBatchSize = 500

	// softEventCeiling matches the historically observed per-game row count
	// plateau. Crossing it is legitimate for alt-heavy events, but it gets a
	// warning so a reappearing cap is visible in the run summary instead of
	// silently reproduced.
	softEventCeiling = 1000
)

// Batcher turns a fetch cycle's normalized records into write-ready batches:
// no two records in a batch share an identity key, and every record carries a
// strictly increasing fetched_at.
type Batcher struct {
	batchSize int
	logger    *logrus.Logger
}

func NewBatcher(batchSize int, logger *logrus.Logger) *Batcher {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Batcher{batchSize: batchSize, logger: logger}
}

// BatchResult is the dedup/batch outcome for one fetch cycle.
type BatchResult struct {
	Batches    [][]*model.Odds
	Total      int      // records after dedup
	Merged     int      // collisions resolved by merge
	MergedKeys []string // identity keys that collided
	Warnings   []string
}

// Build dedups, timestamps and chunks the records. Identity collisions are
// merged last-observed-wins with an audit note; they never reach the write
// layer as two rows. fetched_at is spread from base by one microsecond per
// record index, so no two records in the cycle share a timestamp even when
// the wall clock is coarse.
func (b *Batcher) Build(records []*model.Odds, base time.Time) *BatchResult {
	res := &BatchResult{}
	if len(records) == 0 {
		return res
	}

	seen := make(map[string]int, len(records)) // identity key -> index in deduped
	deduped := make([]*model.Odds, 0, len(records))
	perEvent := make(map[string]int)

	for _, rec := range records {
		key := rec.IdentityKey()
		if idx, ok := seen[key]; ok {
			// Same line observed twice in one cycle: the later price wins,
			// the slot keeps its position.
			deduped[idx] = rec
			res.Merged++
			res.MergedKeys = append(res.MergedKeys, key)
			b.logger.WithField("identity_key", key).Debug("intra-batch collision merged, last price wins")
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, rec)
		perEvent[rec.EventID]++
	}

	base = base.UTC()
	for i, rec := range deduped {
		rec.FetchedAt = base.Add(time.Duration(i) * time.Microsecond)
	}

	for eventID, count := range perEvent {
		if count > softEventCeiling {
			msg := fmt.Sprintf("event %s has %d records, above the %d soft ceiling; verify none are lost downstream", eventID, count, softEventCeiling)
			res.Warnings = append(res.Warnings, msg)
			b.logger.WithFields(logrus.Fields{
				"event_id": eventID,
				"records":  count,
			}).Warn("per-event record count above soft ceiling")
		}
	}

	res.Total = len(deduped)
	for start := 0; start < len(deduped); start += b.batchSize {
		end := start + b.batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		res.Batches = append(res.Batches, deduped[start:end])
	}

	return res
}
