package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainbooks/chainbooks/internal/adapter/http/dto"
	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/infrastructure/metrics"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

// ReportHandler runs the accounting pipeline over a wallet's activity
// feed and returns the full report.
type ReportHandler struct {
	pipeline *usecase.Pipeline
	feed     usecase.ActivityFeed
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(pipeline *usecase.Pipeline, feed usecase.ActivityFeed, m *metrics.Metrics, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		pipeline: pipeline,
		feed:     feed,
		metrics:  m,
		logger:   logger,
	}
}

// Run handles POST /api/v1/reports.
func (h *ReportHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.RunReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	h.metrics.RunsStarted.Inc()
	start := time.Now()

	records, err := h.feed.Fetch(r.Context(), req.Wallet)
	if err != nil {
		h.metrics.RunsFailed.WithLabelValues("feed").Inc()
		writeError(w, http.StatusBadGateway, "failed to fetch activity feed", err.Error())
		return
	}

	in := usecase.RunInput{
		Wallet:  req.Wallet,
		Records: records,
		Resume:  req.Resume,
	}
	if req.Method != "" {
		in.Method, _ = domain.ParseMethod(req.Method)
	}
	if req.Frequency != "" {
		in.Frequency, _ = domain.ParseFrequency(req.Frequency)
	}

	report, err := h.pipeline.Run(r.Context(), in)
	if err != nil {
		h.metrics.RunsFailed.WithLabelValues("pipeline").Inc()
		h.logger.Error().Err(err).Str("wallet", req.Wallet).Msg("pipeline run failed")
		writeError(w, mapDomainError(err), "pipeline run failed", err.Error())
		return
	}

	h.metrics.RunsCompleted.Inc()
	h.metrics.RunDuration.Observe(time.Since(start).Seconds())

	h.logger.Info().
		Str("wallet", req.Wallet).
		Str("run_id", report.RunID).
		Int("periods", len(report.Periods)).
		Int("tax_lines", len(report.TaxLines)).
		Bool("provisional", report.Provisional).
		Msg("pipeline run completed")

	writeJSON(w, http.StatusOK, dto.ReportFromDomain(report))
}
