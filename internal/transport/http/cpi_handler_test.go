package http

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cpicli/internal/config"
	"cpicli/internal/cpi"
	apierrors "cpicli/internal/errors"
	"cpicli/internal/results"
	"cpicli/internal/services"
	"cpicli/internal/shared/testutil"
	api "cpicli/pkg/contracts/api/v1"
)

// MockCPIService is a mock implementation of CPIServiceInterface
type MockCPIService struct {
	mock.Mock
}

func (m *MockCPIService) Compute(ctx context.Context, req services.ComputeRequest) (*services.Computation, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Computation), args.Error(1)
}

func (m *MockCPIService) Series(ctx context.Context, req services.SeriesRequest) ([]cpi.Point, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cpi.Point), args.Error(1)
}

func (m *MockCPIService) Latest(ctx context.Context) (*results.Record, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*results.Record), args.Error(1)
}

func (m *MockCPIService) History(ctx context.Context, limit int) ([]results.Record, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]results.Record), args.Error(1)
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func newTestRouter(t *testing.T, svc CPIServiceInterface) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := apierrors.NewErrorHandler(logger, false)
	h := NewCPIHandler(svc, CPIHandlerConfig{Scale: 100}, logger, errorHandler)

	r := chi.NewRouter()
	r.Mount("/api/v1/cpi", h.Routes())
	return r
}

func sampleComputation() *services.Computation {
	result := &cpi.Result{
		BaseDate:      day("2023-01-01"),
		ReportDate:    day("2023-02-01"),
		Index:         0.83,
		HasData:       true,
		Weighting:     cpi.WeightingSum,
		LeafCount:     3,
		LeafWeight:    1,
		MatchedWeight: 0.8,
		Comparisons:   3,
		Categories: []cpi.CategoryIndex{
			{CategoryID: "food", PriceRatio: 1.1, Products: 2, Weight: 0.5, Contribution: 0.55},
		},
		Diagnostics: cpi.Diagnostics{PriceRows: 8, Unmapped: 1},
	}
	return &services.Computation{
		Result: result,
		Record: results.NewRecord(result, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestCPIHandler_Compute(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		contentType    string
		setupMock      func(*MockCPIService)
		expectedStatus int
		check          func(*testing.T, map[string]any)
	}{
		{
			name:        "success",
			body:        `{"base_date":"2023-01-01","report_date":"2023-02-01","weighting":"sum"}`,
			contentType: "application/json",
			setupMock: func(m *MockCPIService) {
				m.On("Compute", services.ComputeRequest{
					BaseDate:   day("2023-01-01"),
					ReportDate: day("2023-02-01"),
					Weighting:  cpi.WeightingSum,
				}).Return(sampleComputation(), nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.InDelta(t, 0.83, body["index"], 1e-9)
				assert.InDelta(t, 83.0, body["scaled_index"], 1e-9)
				assert.Equal(t, true, body["has_data"])
				assert.Equal(t, "2023-02-01", body["report_date"])
				diagnostics := body["diagnostics"].(map[string]any)
				assert.Equal(t, float64(1), diagnostics["unmapped"])
				assert.Len(t, body["categories"], 1)
			},
		},
		{
			name:           "missing base date",
			body:           `{"report_date":"2023-02-01"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
			},
		},
		{
			name:           "bad date format",
			body:           `{"base_date":"01/01/2023"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown weighting",
			body:           `{"base_date":"2023-01-01","weighting":"geometric"}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown field",
			body:           `{"base_date":"2023-01-01","scale":10}`,
			contentType:    "application/json",
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "INVALID_REQUEST", body["error_code"])
			},
		},
		{
			name:           "wrong content type",
			body:           `base_date=2023-01-01`,
			contentType:    "application/x-www-form-urlencoded",
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:        "input schema error",
			body:        `{"base_date":"2023-01-01"}`,
			contentType: "application/json",
			setupMock: func(m *MockCPIService) {
				m.On("Compute", mock.Anything).Return(nil, &cpi.ValidationError{
					Table:   cpi.PriceTable,
					Message: "missing columns",
					Missing: []string{"price"},
				})
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, cpi.PriceTable, body["table"])
				assert.Equal(t, []any{"price"}, body["missing"])
			},
		},
		{
			name:        "source unavailable",
			body:        `{"base_date":"2023-01-01"}`,
			contentType: "application/json",
			setupMock: func(m *MockCPIService) {
				m.On("Compute", mock.Anything).Return(nil, apierrors.NewSourceError("warehouse query failed", context.DeadlineExceeded))
			},
			expectedStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCPIService)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/cpi/compute", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			newTestRouter(t, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.check != nil {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				tt.check(t, body)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestCPIHandler_Series(t *testing.T) {
	points := []cpi.Point{
		{Date: day("2023-01-01"), Index: 0.8, HasData: true},
		{Date: day("2023-02-01"), Index: 0.83, HasData: true},
	}

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockCPIService)
		expectedStatus int
	}{
		{
			name:  "fixed base",
			query: "?base_date=2023-01-01",
			setupMock: func(m *MockCPIService) {
				m.On("Series", services.SeriesRequest{BaseDate: day("2023-01-01")}).Return(points, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "chain",
			query: "?base_date=2023-01-01&mode=chain",
			setupMock: func(m *MockCPIService) {
				m.On("Series", services.SeriesRequest{BaseDate: day("2023-01-01"), Mode: cpi.SeriesChain}).Return(points, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid mode",
			query:          "?base_date=2023-01-01&mode=rolling",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid date",
			query:          "?base_date=yesterday",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCPIService)
			if tt.setupMock != nil {
				tt.setupMock(svc)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/cpi/series"+tt.query, nil)
			w := httptest.NewRecorder()
			newTestRouter(t, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				var resp api.SeriesResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				require.Len(t, resp.Points, 2)
				assert.Equal(t, "2023-01-01", resp.BaseDate)
				assert.InDelta(t, 83.0, resp.Points[1].ScaledIndex, 1e-9)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestCPIHandler_SeriesReport(t *testing.T) {
	points := []cpi.Point{
		{Date: day("2023-01-01"), Index: 1, HasData: true},
		{Date: day("2023-01-02"), Index: 1.02, HasData: true},
		{Date: day("2023-01-03"), Index: 1.01, HasData: false},
	}

	t.Run("png", func(t *testing.T) {
		svc := new(MockCPIService)
		svc.On("Series", mock.Anything).Return(points, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cpi/series/report?base_date=2023-01-01", nil)
		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "cpi_20230103.png")
		_, err := png.Decode(w.Body)
		assert.NoError(t, err)
	})

	t.Run("csv", func(t *testing.T) {
		svc := new(MockCPIService)
		svc.On("Series", mock.Anything).Return(points, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cpi/series/report?engine=csv", nil)
		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "2023-01-02,102.0000")
	})

	t.Run("unknown engine", func(t *testing.T) {
		svc := new(MockCPIService)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cpi/series/report?engine=svg", nil)
		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty series", func(t *testing.T) {
		svc := new(MockCPIService)
		svc.On("Series", mock.Anything).Return([]cpi.Point{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cpi/series/report", nil)
		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCPIHandler_LatestAndHistory(t *testing.T) {
	rec := sampleComputation().Record

	t.Run("latest", func(t *testing.T) {
		svc := new(MockCPIService)
		svc.On("Latest").Return(&rec, nil)

		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cpi/latest", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp api.Record
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, rec.ID, resp.ID)
		assert.InDelta(t, 83.0, resp.ScaledIndex, 1e-9)
	})

	t.Run("latest without results", func(t *testing.T) {
		svc := new(MockCPIService)
		svc.On("Latest").Return(nil, apierrors.ErrNoResults)

		w := httptest.NewRecorder()
		newTestRouter(t, svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cpi/latest", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	tests := []struct {
		name           string
		query          string
		limit          int
		expectedStatus int
	}{
		{"default limit", "", DefaultHistoryLimit, http.StatusOK},
		{"explicit limit", "?limit=5", 5, http.StatusOK},
		{"limit too large", "?limit=501", 0, http.StatusBadRequest},
		{"limit not a number", "?limit=many", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCPIService)
			if tt.limit > 0 {
				svc.On("History", tt.limit).Return([]results.Record{rec}, nil)
			}

			w := httptest.NewRecorder()
			newTestRouter(t, svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cpi/history"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				var resp api.HistoryResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, 1, resp.Count)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	tests := []struct {
		name           string
		store          results.Store
		path           string
		expectedStatus int
		expected       string
	}{
		{"health", results.NewMemoryStore(0), "/healthz", http.StatusOK, "ok"},
		{"live", results.NewMemoryStore(0), "/healthz/live", http.StatusOK, "alive"},
		{"ready", results.NewMemoryStore(0), "/healthz/ready", http.StatusOK, "ready"},
		{"not ready", nil, "/healthz/ready", http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := services.NewHealthService("1.2.3", "", config.SourceFile, tt.store, logger)
			r := chi.NewRouter()
			r.Mount("/healthz", NewHealthHandler(svc, logger).Routes())

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body services.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expected, body.Status)
		})
	}
}
