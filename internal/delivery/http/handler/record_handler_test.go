package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"prodtest-collector/internal/delivery/http/handler"
	"prodtest-collector/internal/infrastructure/database/postgres"
	"prodtest-collector/internal/logger"
	"prodtest-collector/internal/usecase/record"
	"prodtest-collector/internal/usecase/viewer"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("development"); err != nil {
		panic(err)
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeClock) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := &postgres.DB{DB: gdb}
	require.NoError(t, db.Migrate())

	clk := &fakeClock{t: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)}
	svc := record.NewService(postgres.NewRecordRepository(db)).WithNow(clk.Now)
	tracker := viewer.NewTracker(time.Minute).WithNow(clk.Now)

	router := gin.New()
	api := router.Group("/api")
	handler.NewRecordHandler(svc).RegisterRoutes(api)
	handler.NewViewerHandler(tracker).RegisterRoutes(api)
	router.GET("/", handler.NewDashboardHandler().Dashboard)
	return router, clk
}

func doRequest(t *testing.T, router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postRecord(t *testing.T, router *gin.Engine, clk *fakeClock, sn string, passed bool) map[string]any {
	t.Helper()

	clk.Advance(time.Second)
	w := doRequest(t, router, http.MethodPost, "/api/production-test", gin.H{
		"deviceSerialNumber": sn,
		"overallPassed":      passed,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIngestRoundTrip(t *testing.T) {
	router, clk := newTestRouter(t)

	clk.Advance(time.Second)
	w := doRequest(t, router, http.MethodPost, "/api/production-test", gin.H{
		"deviceSerialNumber":    "SN100",
		"deviceName":            "BOG Valve",
		"deviceFirmwareVersion": "1.4.2",
		"durationSeconds":       93.5,
		"overallPassed":         true,
		"needRetest":            false,
		"stepsSummary": []gin.H{
			{"stepId": "pressure", "status": "passed"},
		},
		"stepResults": gin.H{"pressure": "42.5 mbar within limits"},
		"testDetails": gin.H{"pressureOpenMbar": 42.5},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, true, created["ok"])
	assert.Equal(t, "2026-08-26T10:00:01Z", created["createdAt"])
	require.NotEmpty(t, created["id"])

	w = doRequest(t, router, http.MethodGet, "/api/records", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Total int64            `json:"total"`
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, created["id"], item["id"])
	assert.Equal(t, created["createdAt"], item["createdAt"])
	assert.Equal(t, "SN100", item["deviceSerialNumber"])
	assert.Equal(t, "BOG Valve", item["deviceName"])
	assert.Equal(t, "1.4.2", item["deviceFirmwareVersion"])
	assert.Equal(t, 93.5, item["durationSeconds"])
	assert.Equal(t, true, item["overallPassed"])
	assert.Equal(t, false, item["needRetest"])
}

func TestIngestRejectsMissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/production-test", gin.H{
		"overallPassed": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = doRequest(t, router, http.MethodPost, "/api/production-test", gin.H{
		"deviceSerialNumber": "SN1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordsPagination(t *testing.T) {
	router, clk := newTestRouter(t)

	for _, sn := range []string{"SN1", "SN2", "SN3", "SN4", "SN5"} {
		postRecord(t, router, clk, sn, true)
	}

	seen := map[string]bool{}
	for offset := 0; offset < 5; offset += 2 {
		w := doRequest(t, router, http.MethodGet,
			"/api/records?limit=2&offset="+strconv.Itoa(offset), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var page struct {
			Total int64 `json:"total"`
			Items []struct {
				ID        string `json:"id"`
				CreatedAt string `json:"createdAt"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.EqualValues(t, 5, page.Total)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "record %s appeared twice", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, 5)
}

func TestSummaryEndpoint(t *testing.T) {
	router, clk := newTestRouter(t)

	postRecord(t, router, clk, "SN1", true)
	postRecord(t, router, clk, "SN1", false)
	postRecord(t, router, clk, "SN1", true)
	postRecord(t, router, clk, "SN2", false)

	w := doRequest(t, router, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var s struct {
		TotalRecords    int64   `json:"totalRecords"`
		Total           int64   `json:"total"`
		Passed          int64   `json:"passed"`
		Failed          int64   `json:"failed"`
		PassRatePercent float64 `json:"passRatePercent"`
		Today           struct {
			Total int64 `json:"total"`
		} `json:"today"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.EqualValues(t, 4, s.TotalRecords)
	assert.EqualValues(t, 2, s.Total)
	assert.EqualValues(t, 1, s.Passed)
	assert.EqualValues(t, 1, s.Failed)
	assert.Equal(t, 50.0, s.PassRatePercent)
	assert.EqualValues(t, 2, s.Today.Total)

	// Most recent record wins the single-row page.
	w = doRequest(t, router, http.MethodGet, "/api/records?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
		Items []struct {
			SN string `json:"deviceSerialNumber"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 4, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "SN2", page.Items[0].SN)
}

func TestSummaryRejectsMalformedDate(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/summary?date_from=notadate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSerialNumberList(t *testing.T) {
	router, clk := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/sn-list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	postRecord(t, router, clk, "SN2", true)
	postRecord(t, router, clk, "SN1", true)
	postRecord(t, router, clk, "SN2", false)

	w = doRequest(t, router, http.MethodGet, "/api/sn-list", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var serials []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &serials))
	assert.Equal(t, []string{"SN1", "SN2"}, serials)
}

func TestExportEndpoint(t *testing.T) {
	router, clk := newTestRouter(t)

	postRecord(t, router, clk, "SN1", true)

	w := doRequest(t, router, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,created_at,"))
	assert.Contains(t, lines[1], "SN1")

	// A window in the future matches nothing and yields the header alone.
	w = doRequest(t, router, http.MethodGet, "/api/export?date_from=2030-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines = strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 1)
}

func TestViewerHeartbeatEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/viewers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int      `json:"count"`
		IPs   []string `json:"ips"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.IPs, 1)
	assert.NotEmpty(t, resp.IPs[0])
}

func TestDashboardServesHTML(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Production Test Overview")
}
