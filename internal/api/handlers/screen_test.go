package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/internal/pipeline"
	"github.com/ashare-lab/screener/internal/runcache"
	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/logger"
)

const handlerSignals = `signals:
  - id: signal_001
    theme: 人工智能
    core_theme: 人工智能
    priority: high
    keywords: ["AI芯片"]
`

const handlerThemeMap = `signal_id,theme,map_type,map_values
signal_001,人工智能,concept,AI芯片
`

func newTestHandler(t *testing.T) (*ScreenHandler, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	signalsPath := filepath.Join(dir, "signals.yaml")
	mapPath := filepath.Join(dir, "theme_to_industry.csv")
	require.NoError(t, os.WriteFile(signalsPath, []byte(handlerSignals), 0o644))
	require.NoError(t, os.WriteFile(mapPath, []byte(handlerThemeMap), 0o644))

	cfg := &config.Config{
		Screener: config.ScreenerConfig{
			SignalsPath:  signalsPath,
			ThemeMapPath: mapPath,
			OutputDir:    filepath.Join(dir, "outputs"),
			TopN:         5,
			LookbackDays: 130,
			MinHistory:   61,
			Provider:     "mock",
		},
	}
	log := logger.NewNop()
	p := pipeline.New(cfg, log, runcache.NopStore{}, nil)
	return NewScreenHandler(p, cfg, log), cfg
}

func writeReportFile(t *testing.T, dir, date string, topN int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	rep := contracts.Report{AsOf: date, DataDate: date, TopN: topN, Results: []contracts.ReportRow{}}
	data, err := json.Marshal(&rep)
	require.NoError(t, err)
	name := filepath.Join(dir, "report_"+date+"_top"+strconv.Itoa(topN)+".json")
	require.NoError(t, os.WriteFile(name, data, 0o644))
}

func TestGetLatestReport(t *testing.T) {
	h, cfg := newTestHandler(t)

	// No output directory yet.
	rec := httptest.NewRecorder()
	h.GetLatestReport(rec, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-19", 5)
	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-20", 5)

	rec = httptest.NewRecorder()
	h.GetLatestReport(rec, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "2026-01-20", rep.AsOf)
}

func TestGetLatestReport_DateBeatsTopNOrder(t *testing.T) {
	h, cfg := newTestHandler(t)

	// top10 sorts before top5 lexicographically; latest must still be
	// picked by date, with the larger top-N winning a same-date tie.
	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-19", 50)
	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-20", 5)
	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-20", 10)

	rec := httptest.NewRecorder()
	h.GetLatestReport(rec, httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "2026-01-20", rep.AsOf)
	assert.Equal(t, 10, rep.TopN)
}

func TestGetReport(t *testing.T) {
	h, cfg := newTestHandler(t)
	writeReportFile(t, cfg.Screener.OutputDir, "2026-01-20", 5)

	get := func(date string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/reports/"+date, nil)
		req = mux.SetURLVars(req, map[string]string{"date": date})
		rec := httptest.NewRecorder()
		h.GetReport(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, get("not-a-date").Code)
	assert.Equal(t, http.StatusNotFound, get("2026-01-19").Code)

	rec := get("2026-01-20")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "2026-01-20", rep.AsOf)
}

func TestRunScreen(t *testing.T) {
	h, _ := newTestHandler(t)

	// Missing date.
	rec := httptest.NewRecorder()
	h.RunScreen(rec, httptest.NewRequest(http.MethodPost, "/api/screen", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad body.
	rec = httptest.NewRecorder()
	h.RunScreen(rec, httptest.NewRequest(http.MethodPost, "/api/screen", bytes.NewBufferString(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"date":"2026-01-20","top_n":3,"no_cache":true}`
	rec = httptest.NewRecorder()
	h.RunScreen(rec, httptest.NewRequest(http.MethodPost, "/api/screen", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep contracts.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "2026-01-20", rep.AsOf)
	assert.Equal(t, 3, rep.TopN)
	assert.Len(t, rep.Results, 3)
}
