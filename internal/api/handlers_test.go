package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"OddsSync/internal/config"
	"OddsSync/internal/model"

	"github.com/gin-gonic/gin"
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
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Odds{}, &model.OpenOdds{}, &model.SyncRun{}))
	return db
}

func testConfig(providerURL string) *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			BaseURL:         providerURL,
			APIKey:          "test-key",
			Timeout:         5,
			RetryCount:      3,
			MaxPages:        10,
			PageLimit:       50,
			IncludeAltLines: true,
		},
		Sync: config.SyncConfig{
			BatchSize:           500,
			DaysAhead:           7,
			ReconcileSampleSize: 5,
		},
	}
}

// testRouter wires the same routes as main.
func testRouter(t *testing.T, db *gorm.DB, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	syncHandler := NewSyncHandler(db, testLogger(), cfg)
	r.POST("/sync/league/:league", syncHandler.SyncLeagueHandler)

	oddsHandler := NewOddsHandler(db, testLogger())
	r.GET("/api/odds", oddsHandler.ListOdds)
	r.GET("/api/odds/open", oddsHandler.ListOpenOdds)
	r.GET("/api/reconcile/:event_id", oddsHandler.ReconcileEvent)
	r.GET("/api/sync-runs", oddsHandler.ListSyncRuns)

	healthHandler := NewHealthHandler(db, cfg)
	r.GET("/healthz", healthHandler.Healthz)

	return r
}

func serveProviderEvent(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := model.EventsResponse{
			Success: true,
			Data: []model.EventPayload{{
				EventID:  "evt-1",
				LeagueID: "NFL",
				Odds: map[string]model.RawOdd{
					"points-home-game-ml-home": {
						OddID:       "points-home-game-ml-home",
						BetTypeID:   "ml",
						SideID:      "home",
						ByBookmaker: map[string]model.RawBookOdd{"draftkings": {Odds: -110.0}},
					},
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSyncLeagueEndpoint(t *testing.T) {
	provider := serveProviderEvent(t)
	db := testDB(t)
	r := testRouter(t, db, testConfig(provider.URL))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sync/league/NFL?from=2026-01-10&to=2026-01-17", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary model.SyncSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "NFL", summary.League)
	assert.Equal(t, 1, summary.OddsWritten)
	assert.Equal(t, 1, summary.OpenOddsWritten)
	assert.False(t, summary.Truncated)

	// The written row is visible through the query surface.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/odds?event_id=evt-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "points-home-game-ml-home")

	// And so is the audit trail.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sync-runs?league=NFL", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), summary.RunUUID)
}

func TestSyncLeagueEndpointRejectsUnknownLeague(t *testing.T) {
	r := testRouter(t, testDB(t), testConfig("http://127.0.0.1:0"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/league/XFL", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncLeagueEndpointRejectsBadDates(t *testing.T) {
	r := testRouter(t, testDB(t), testConfig("http://127.0.0.1:0"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/league/NFL?from=not-a-date", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/league/NFL?from=2026-01-17&to=2026-01-10", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOpenOddsRequiresEventID(t *testing.T) {
	r := testRouter(t, testDB(t), testConfig("http://127.0.0.1:0"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/odds/open", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	r := testRouter(t, testDB(t), testConfig("http://127.0.0.1:0"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
	assert.Contains(t, w.Body.String(), `"provider_configured":true`)
}
