package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ashare-lab/screener/internal/contracts"
	"github.com/ashare-lab/screener/internal/pipeline"
	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/logger"
)

var reportFileRe = regexp.MustCompile(`^report_(\d{4}-\d{2}-\d{2})_top(\d+)\.json$`)

// ScreenHandler serves stored reports and triggers on-demand runs.
type ScreenHandler struct {
	pipeline *pipeline.Pipeline
	cfg      *config.Config
	logger   *logger.Logger
}

// NewScreenHandler creates a screen handler.
func NewScreenHandler(p *pipeline.Pipeline, cfg *config.Config, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{pipeline: p, cfg: cfg, logger: log}
}

// GetLatestReport returns the report with the newest as-of date on disk.
// GET /api/reports/latest
func (h *ScreenHandler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.cfg.Screener.OutputDir)
	if err != nil {
		respondError(w, http.StatusNotFound, "No reports available")
		return
	}

	var latest string
	var latestDate string
	var latestTopN int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := reportFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		topN, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		// Newest date wins; string compare of top-N would rank top5
		// above top10 for the same date.
		if m[1] > latestDate || (m[1] == latestDate && topN > latestTopN) {
			latest = entry.Name()
			latestDate = m[1]
			latestTopN = topN
		}
	}
	if latest == "" {
		respondError(w, http.StatusNotFound, "No reports available")
		return
	}

	h.serveReportFile(w, filepath.Join(h.cfg.Screener.OutputDir, latest))
}

// GetReport returns the stored report for one as-of date.
// GET /api/reports/{date}
func (h *ScreenHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	entries, err := os.ReadDir(h.cfg.Screener.OutputDir)
	if err != nil {
		respondError(w, http.StatusNotFound, "Report not found")
		return
	}
	for _, entry := range entries {
		m := reportFileRe.FindStringSubmatch(entry.Name())
		if m != nil && m[1] == date {
			h.serveReportFile(w, filepath.Join(h.cfg.Screener.OutputDir, entry.Name()))
			return
		}
	}
	respondError(w, http.StatusNotFound, "Report not found")
}

// ScreenRequest is an on-demand run request.
type ScreenRequest struct {
	Date        string   `json:"date"`
	TopN        int      `json:"top_n"`
	Provider    string   `json:"provider"`
	ThemeWeight *float64 `json:"theme_weight"`
	NoCache     bool     `json:"no_cache"`
}

// RunScreen executes a screening run and returns the finished report.
// POST /api/screen
func (h *ScreenHandler) RunScreen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	opts := pipeline.Options{
		Date:     req.Date,
		TopN:     req.TopN,
		Provider: req.Provider,
		NoCache:  req.NoCache,
	}
	if req.ThemeWeight != nil {
		opts.ThemeWeight = *req.ThemeWeight
		opts.ThemeWeightSet = true
	}

	rep, err := h.pipeline.Run(r.Context(), opts)
	if err != nil {
		h.logger.WithError(err).Error("On-demand screening run failed")
		respondError(w, http.StatusInternalServerError, "Screening run failed")
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

func (h *ScreenHandler) serveReportFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read report")
		return
	}

	var rep contracts.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		respondError(w, http.StatusInternalServerError, "Stored report is corrupt")
		return
	}
	respondJSON(w, http.StatusOK, &rep)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
