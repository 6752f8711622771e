package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cpicli/internal/cpi"
	apierrors "cpicli/internal/errors"
	cpimw "cpicli/internal/middleware"
	"cpicli/internal/report"
	"cpicli/internal/results"
	"cpicli/internal/services"
	"cpicli/internal/table"
	api "cpicli/pkg/contracts/api/v1"
)

// History limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
)

// CPIServiceInterface is the part of the CPI service used over HTTP
type CPIServiceInterface interface {
	Compute(ctx context.Context, req services.ComputeRequest) (*services.Computation, error)
	Series(ctx context.Context, req services.SeriesRequest) ([]cpi.Point, error)
	Latest(ctx context.Context) (*results.Record, error)
	History(ctx context.Context, limit int) ([]results.Record, error)
}

// CPIHandlerConfig controls presentation of index values
type CPIHandlerConfig struct {
	Scale       float64
	ReportTitle string
}

// CPIHandler serves index computations, series, reports and history
type CPIHandler struct {
	service      CPIServiceInterface
	cfg          CPIHandlerConfig
	validator    *cpimw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCPIHandler creates a CPI handler. A zero scale presents values ×100.
func NewCPIHandler(service CPIServiceInterface, cfg CPIHandlerConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CPIHandler {
	if cfg.Scale == 0 {
		cfg.Scale = 100
	}
	return &CPIHandler{
		service:      service,
		cfg:          cfg,
		validator:    cpimw.NewValidator(),
		logger:       logger.With(slog.String("component", "cpi_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the CPI routes
func (h *CPIHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(
		render.SetContentType(render.ContentTypeJSON),
		cpimw.ContentTypeValidator(h.errorHandler, "application/json"),
	).Post("/compute", h.Compute)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/series", h.Series)
		r.Get("/latest", h.Latest)
		r.Get("/history", h.History)
	})

	// Binary download, content type set per engine
	r.Get("/series/report", h.SeriesReport)

	return r
}

// Compute handles POST /api/v1/cpi/compute
func (h *CPIHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var body api.ComputeRequest
	if err := h.validator.DecodeJSON(w, r, &body); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req, err := toComputeRequest(body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "computing index",
		slog.String("request_id", cpimw.GetReqID(r.Context())),
		slog.String("base_date", body.BaseDate),
		slog.String("report_date", body.ReportDate),
	)

	computation, err := h.service.Compute(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, h.computeResponse(computation))
}

// Series handles GET /api/v1/cpi/series?base_date=&mode=
func (h *CPIHandler) Series(w http.ResponseWriter, r *http.Request) {
	req, err := h.seriesRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	points, err := h.service.Series(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.SeriesResponse{
		Mode:   string(req.Mode),
		Scale:  h.cfg.Scale,
		Points: make([]api.SeriesPoint, len(points)),
	}
	if !req.BaseDate.IsZero() {
		resp.BaseDate = req.BaseDate.Format(table.DateLayout)
	} else if len(points) > 0 {
		resp.BaseDate = points[0].Date.Format(table.DateLayout)
	}
	for i, p := range points {
		resp.Points[i] = api.SeriesPoint{
			Date:        p.Date.Format(table.DateLayout),
			Index:       p.Index,
			ScaledIndex: p.Index * h.cfg.Scale,
			HasData:     p.HasData,
		}
	}
	render.JSON(w, r, resp)
}

// SeriesReport handles GET /api/v1/cpi/series/report?engine=png|xlsx|csv
func (h *CPIHandler) SeriesReport(w http.ResponseWriter, r *http.Request) {
	engine, err := cpimw.QueryEnum(r, "engine",
		[]string{report.EnginePNG, report.EngineXLSX, report.EngineCSV}, report.EnginePNG)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req, err := h.seriesRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	points, err := h.service.Series(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(points) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("series data"))
		return
	}

	dir, err := os.MkdirTemp("", "cpi-report-*")
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("create report directory: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	name := report.FileName(engine, points[len(points)-1].Date)
	path := filepath.Join(dir, name)
	err = report.Generate(points, report.Options{
		Path:   path,
		Engine: engine,
		Scale:  h.cfg.Scale,
		Title:  h.cfg.ReportTitle,
		Logger: h.logger,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType(engine))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Time{}, f)
}

// Latest handles GET /api/v1/cpi/latest
func (h *CPIHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Latest(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, h.record(*rec))
}

// History handles GET /api/v1/cpi/history?limit=
func (h *CPIHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := cpimw.QueryInt(r, "limit", 1, MaxHistoryLimit, DefaultHistoryLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	records, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp := api.HistoryResponse{Records: make([]api.Record, len(records)), Count: len(records)}
	for i, rec := range records {
		resp.Records[i] = h.record(rec)
	}
	render.JSON(w, r, resp)
}

func (h *CPIHandler) seriesRequest(r *http.Request) (services.SeriesRequest, error) {
	var req services.SeriesRequest

	if s := r.URL.Query().Get("base_date"); s != "" {
		d, err := table.ParseDate(s)
		if err != nil {
			return req, apierrors.ErrValidation("base_date", "base_date must be a date in YYYY-MM-DD format")
		}
		req.BaseDate = d
	}

	mode, err := cpimw.QueryEnum(r, "mode", []string{string(cpi.SeriesFixedBase), string(cpi.SeriesChain)}, "")
	if err != nil {
		return req, err
	}
	req.Mode = cpi.SeriesMode(mode)
	return req, nil
}

func toComputeRequest(body api.ComputeRequest) (services.ComputeRequest, error) {
	var req services.ComputeRequest

	base, err := table.ParseDate(body.BaseDate)
	if err != nil {
		return req, apierrors.ErrValidation("base_date", "base_date must be a date in YYYY-MM-DD format")
	}
	req.BaseDate = base

	if body.ReportDate != "" {
		reportDate, err := table.ParseDate(body.ReportDate)
		if err != nil {
			return req, apierrors.ErrValidation("report_date", "report_date must be a date in YYYY-MM-DD format")
		}
		req.ReportDate = reportDate
	}

	if body.Weighting != "" {
		weighting, err := cpi.ParseWeighting(body.Weighting)
		if err != nil {
			return req, apierrors.ErrValidation("weighting", err.Error())
		}
		req.Weighting = weighting
	}
	return req, nil
}

func (h *CPIHandler) computeResponse(c *services.Computation) api.ComputeResponse {
	res := c.Result
	categories := make([]api.CategoryIndex, len(res.Categories))
	for i, ci := range res.Categories {
		categories[i] = api.CategoryIndex(ci)
	}
	return api.ComputeResponse{
		ID:            c.Record.ID,
		BaseDate:      res.BaseDate.Format(table.DateLayout),
		ReportDate:    res.ReportDate.Format(table.DateLayout),
		Index:         res.Index,
		ScaledIndex:   res.Index * h.cfg.Scale,
		Scale:         h.cfg.Scale,
		HasData:       res.HasData,
		Weighting:     string(res.Weighting),
		LeafCount:     res.LeafCount,
		Coverage:      res.Coverage(),
		MatchedWeight: res.MatchedWeight,
		Comparisons:   res.Comparisons,
		Categories:    categories,
		Diagnostics:   api.Diagnostics(res.Diagnostics),
		ComputedAt:    c.Record.ComputedAt,
	}
}

func (h *CPIHandler) record(rec results.Record) api.Record {
	return api.Record{
		ID:          rec.ID,
		BaseDate:    rec.BaseDate,
		ReportDate:  rec.ReportDate,
		Index:       rec.Index,
		ScaledIndex: rec.Index * h.cfg.Scale,
		HasData:     rec.HasData,
		Weighting:   rec.Weighting,
		Coverage:    rec.Coverage,
		Categories:  rec.Categories,
		DroppedRows: rec.DroppedRows,
		ComputedAt:  rec.ComputedAt,
	}
}
