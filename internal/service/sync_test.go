package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"OddsSync/internal/config"
	"OddsSync/internal/model"
	"OddsSync/internal/provider/sgo"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Odds{}, &model.OpenOdds{}, &model.SyncRun{}))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			BatchSize:           500,
			DaysAhead:           7,
			ReconcileSampleSize: 5,
		},
	}
}

// pageStep scripts one FetchEventsPage response.
type pageStep struct {
	page *sgo.EventsPage
	err  error
}

type fakeFetcher struct {
	steps []pageStep
	calls int
}

func (f *fakeFetcher) FetchEventsPage(ctx context.Context, q sgo.EventsQuery) (*sgo.EventsPage, error) {
	if f.calls >= len(f.steps) {
		return &sgo.EventsPage{}, nil
	}
	step := f.steps[f.calls]
	f.calls++
	return step.page, step.err
}

func (f *fakeFetcher) MaxPages() int {
	return 10
}

// mainWithAlts builds the canonical over/under event: one main line plus
// altCount alternates from the same bookmaker, all at the same total.
func mainWithAlts(eventID string, total float64, altCount int) model.EventPayload {
	alts := make([]model.RawAltLine, altCount)
	for i := range alts {
		alts[i] = model.RawAltLine{Odds: float64(-110 + i + 1), OverUnder: total}
	}
	return model.EventPayload{
		EventID:  eventID,
		LeagueID: "NFL",
		Odds: map[string]model.RawOdd{
			"points-all-game-ou-over": {
				OddID:     "points-all-game-ou-over",
				BetTypeID: "ou",
				SideID:    "over",
				ByBookmaker: map[string]model.RawBookOdd{
					"draftkings": {Odds: -110.0, OverUnder: total, AltLines: alts},
				},
			},
		},
	}
}

func TestSyncLeagueEndToEnd(t *testing.T) {
	db := testDB(t)
	fetcher := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{mainWithAlts("evt-1", 47.5, 10)}}},
	}}
	svc := NewSyncService(db, fetcher, testConfig(), testLogger())

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.SyncLeague(context.Background(), model.LeagueNFL, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PagesFetched)
	assert.Equal(t, 11, summary.RecordsNormalized, "main line plus ten alternates")
	assert.Equal(t, 11, summary.OddsWritten)
	assert.Equal(t, 11, summary.OpenOddsWritten)
	assert.Zero(t, summary.RecordsMerged)
	assert.Zero(t, summary.RecordsDropped)
	assert.False(t, summary.Truncated)
	assert.Empty(t, summary.FailedKeys)

	// Eleven distinct identity keys in both tables.
	var oddsCount, openCount int64
	require.NoError(t, db.Model(&model.Odds{}).Count(&oddsCount).Error)
	require.NoError(t, db.Model(&model.OpenOdds{}).Count(&openCount).Error)
	assert.EqualValues(t, 11, oddsCount)
	assert.EqualValues(t, 11, openCount)

	// The run was audited.
	var runs int64
	require.NoError(t, db.Model(&model.SyncRun{}).Count(&runs).Error)
	assert.EqualValues(t, 1, runs)
}

func TestSyncLeagueRefetchMovesOddsNotOpeners(t *testing.T) {
	db := testDB(t)
	cfg := testConfig()
	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	first := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{mainWithAlts("evt-1", 47.5, 10)}}},
	}}
	_, err := NewSyncService(db, first, cfg, testLogger()).SyncLeague(context.Background(), model.LeagueNFL, from, to)
	require.NoError(t, err)

	var openBefore []model.OpenOdds
	require.NoError(t, db.Order("odd_id").Find(&openBefore).Error)
	require.Len(t, openBefore, 11)

	// Five minutes later every price has moved by one.
	moved := mainWithAlts("evt-1", 47.5, 10)
	entry := moved.Odds["points-all-game-ou-over"]
	bm := entry.ByBookmaker["draftkings"]
	bm.Odds = -109.0
	for i := range bm.AltLines {
		bm.AltLines[i].Odds = float64(-110 + i + 2)
	}
	entry.ByBookmaker["draftkings"] = bm
	moved.Odds["points-all-game-ou-over"] = entry

	second := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{moved}}},
	}}
	summary, err := NewSyncService(db, second, cfg, testLogger()).SyncLeague(context.Background(), model.LeagueNFL, from, to)
	require.NoError(t, err)

	assert.Equal(t, 11, summary.OddsWritten)
	assert.Zero(t, summary.OpenOddsWritten, "no new identity keys on a re-fetch")
	assert.Equal(t, 11, summary.OpenOddsExisting)

	// odds carries the moved prices; open_odds is byte-for-byte the first
	// observation.
	var main model.Odds
	require.NoError(t, db.Where("odd_id = ?", "points-all-game-ou-over").First(&main).Error)
	assert.Equal(t, -109, main.BookOdds)

	var openAfter []model.OpenOdds
	require.NoError(t, db.Order("odd_id").Find(&openAfter).Error)
	require.Len(t, openAfter, 11)
	for i := range openAfter {
		assert.Equal(t, openBefore[i].BookOdds, openAfter[i].BookOdds)
		assert.Equal(t, openBefore[i].FetchedAt.Unix(), openAfter[i].FetchedAt.Unix())
	}
}

func TestSyncLeagueRateLimitKeepsPartialResults(t *testing.T) {
	db := testDB(t)
	fetcher := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{mainWithAlts("evt-1", 47.5, 0)}, NextCursor: "c2"}},
		{page: &sgo.EventsPage{Events: []model.EventPayload{mainWithAlts("evt-2", 44.5, 0)}, NextCursor: "c3"}},
		{err: sgo.ErrRateLimited},
	}}
	svc := NewSyncService(db, fetcher, testConfig(), testLogger())

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.SyncLeague(context.Background(), model.LeagueNFL, from, from.AddDate(0, 0, 7))
	require.NoError(t, err, "rate limiting is reported, not thrown")

	assert.Equal(t, 2, summary.PagesFetched)
	assert.True(t, summary.Truncated)
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "rate limit")

	var count int64
	require.NoError(t, db.Model(&model.Odds{}).Count(&count).Error)
	assert.EqualValues(t, 2, count, "pages one and two landed")
}

func TestSyncLeagueIntraCycleDuplicatesMerged(t *testing.T) {
	// The same identity arriving twice in one page must reach storage once,
	// with the later price.
	db := testDB(t)
	ev := model.EventPayload{
		EventID:  "evt-1",
		LeagueID: "NFL",
		Odds: map[string]model.RawOdd{
			"points-home-game-ml-home": {
				OddID:     "points-home-game-ml-home",
				BetTypeID: "ml",
				SideID:    "home",
				ByBookmaker: map[string]model.RawBookOdd{
					"draftkings": {Odds: -110.0},
				},
			},
		},
	}
	// Second payload for the same event repeats the identical line at a new
	// price, as overlapping provider pages have been observed to do.
	dup := model.EventPayload{
		EventID:  "evt-1",
		LeagueID: "NFL",
		Odds: map[string]model.RawOdd{
			"points-home-game-ml-home": {
				OddID:     "points-home-game-ml-home",
				BetTypeID: "ml",
				SideID:    "home",
				ByBookmaker: map[string]model.RawBookOdd{
					"draftkings": {Odds: -115.0},
				},
			},
		},
	}
	fetcher := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{ev, dup}}},
	}}
	svc := NewSyncService(db, fetcher, testConfig(), testLogger())

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.SyncLeague(context.Background(), model.LeagueNFL, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RecordsMerged)
	require.Len(t, summary.MergedKeys, 1)
	assert.Zero(t, summary.RecordsDropped)

	var stored model.Odds
	require.NoError(t, db.Where("event_id = ?", "evt-1").First(&stored).Error)
	assert.Equal(t, -115, stored.BookOdds, "last observed price wins")

	var count int64
	require.NoError(t, db.Model(&model.Odds{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSyncLeagueDroppedKeysReported(t *testing.T) {
	// Records the pipeline cannot use must be named in the summary and in
	// the persisted run, not just counted.
	db := testDB(t)
	ev := model.EventPayload{
		EventID:  "evt-1",
		LeagueID: "NFL",
		Odds: map[string]model.RawOdd{
			"exotic-teaser-thing": {
				OddID:       "exotic-teaser-thing",
				BetTypeID:   "teaser",
				ByBookmaker: map[string]model.RawBookOdd{"fanduel": {Odds: -120.0}},
			},
			"points-home-game-ml-home": {
				OddID:       "points-home-game-ml-home",
				BetTypeID:   "ml",
				SideID:      "home",
				ByBookmaker: map[string]model.RawBookOdd{"fanduel": {Odds: -110.0}},
			},
		},
	}
	fetcher := &fakeFetcher{steps: []pageStep{
		{page: &sgo.EventsPage{Events: []model.EventPayload{ev}}},
	}}
	svc := NewSyncService(db, fetcher, testConfig(), testLogger())

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	summary, err := svc.SyncLeague(context.Background(), model.LeagueNFL, from, from.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RecordsDropped)
	assert.Equal(t, []string{"exotic-teaser-thing"}, summary.DroppedKeys)

	var run model.SyncRun
	require.NoError(t, db.First(&run).Error)
	assert.Contains(t, string(run.DroppedKeys), "exotic-teaser-thing")
}

func TestWindowUsesConfiguredDaysAhead(t *testing.T) {
	svc := NewSyncService(testDB(t), &fakeFetcher{}, testConfig(), testLogger())
	from, to := svc.Window()
	assert.Equal(t, 7*24*time.Hour, to.Sub(from))
}
