package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"churnml/internal/artifact"
	"churnml/internal/predict"
	"churnml/pkg/pipeline"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Metadata lists the category options a form client should offer.
type Metadata struct {
	ContractOptions        []string `json:"contractOptions"`
	InternetServiceOptions []string `json:"internetServiceOptions"`
}

// MetricsSource is the read side of the artifact store used by the
// model endpoints.
type MetricsSource interface {
	LoadMetrics() (*artifact.Metrics, error)
}

type handlers struct {
	svc     *predict.Service
	metrics MetricsSource
	logger  *slog.Logger

	predictions *prometheus.CounterVec
	latency     prometheus.Histogram
}

// New builds the HTTP adapter. reg receives the request metrics and is
// served back on /metrics.
func New(svc *predict.Service, metrics MetricsSource, reg *prometheus.Registry, logger *slog.Logger) *echo.Echo {
	h := &handlers{
		svc:     svc,
		metrics: metrics,
		logger:  logger,
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "churn",
				Name:      "predictions_total",
				Help:      "Prediction requests by outcome.",
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "churn",
			Name:      "predict_duration_seconds",
			Help:      "Latency of successful predictions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(h.predictions, h.latency)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(h.logRequests)
	e.HTTPErrorHandler = h.handleError

	g := e.Group("/api")
	g.GET("/health", h.health)
	g.GET("/metadata", h.metadata)
	g.POST("/predict", h.predict)
	g.GET("/model/metrics", h.modelMetrics)
	g.GET("/model/feature-importance", h.featureImportance)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return e
}

func (h *handlers) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		h.logger.Info("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"elapsed", time.Since(begin),
		)
		return err
	}
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) metadata(c echo.Context) error {
	return c.JSON(http.StatusOK, Metadata{
		ContractOptions:        pipeline.ContractOptions,
		InternetServiceOptions: pipeline.InternetServiceOptions,
	})
}

func (h *handlers) predict(c echo.Context) error {
	var rec predict.FeatureRecord
	if err := json.NewDecoder(c.Request().Body).Decode(&rec); err != nil {
		h.predictions.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := h.svc.Validate(rec); err != nil {
		h.predictions.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if problems := checkRanges(rec); len(problems) > 0 {
		h.predictions.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, strings.Join(problems, "; "))
	}

	begin := time.Now()
	res, err := h.svc.PredictOne(c.Request().Context(), rec)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) {
			h.predictions.WithLabelValues("unavailable").Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error()).SetInternal(err)
		}
		h.predictions.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	h.latency.Observe(time.Since(begin).Seconds())
	h.predictions.WithLabelValues(strings.ToLower(res.Label)).Inc()
	return c.JSON(http.StatusOK, res)
}

func (h *handlers) modelMetrics(c echo.Context) error {
	m, err := h.metrics.LoadMetrics()
	if errors.Is(err, artifact.ErrArtifactNotFound) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Metrics not available. Run churn-train first.").SetInternal(err)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *handlers) featureImportance(c echo.Context) error {
	m, err := h.metrics.LoadMetrics()
	if err != nil || m.FeatureImportance == nil {
		if err != nil {
			h.logger.Warn("feature importance unavailable", "error", err)
		}
		return c.JSON(http.StatusOK, []artifact.FeatureImportance{})
	}
	return c.JSON(http.StatusOK, m.FeatureImportance)
}

// handleError renders every error as an ErrorResponse.
func (h *handlers) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request().URL.Path, "status", status, "error", err)
	}
	if err := c.JSON(status, ErrorResponse{Message: msg, Status: status}); err != nil {
		h.logger.Error("write error response", "error", err)
	}
}

// checkRanges applies the form limits on top of the required-field check.
func checkRanges(rec predict.FeatureRecord) []string {
	var problems []string
	intRange := func(name string, v, lo, hi int) {
		if v < lo {
			problems = append(problems, fmt.Sprintf("%s: %s must be >= %d", name, name, lo))
		} else if v > hi {
			problems = append(problems, fmt.Sprintf("%s: %s must be <= %d", name, name, hi))
		}
	}
	intRange("age", *rec.Age, 0, 120)
	intRange("tenure", *rec.Tenure, 0, 120)
	if v := *rec.MonthlyCharges; v < 0 {
		problems = append(problems, "monthlyCharges: monthlyCharges must be >= 0")
	} else if v > 1000 {
		problems = append(problems, "monthlyCharges: monthlyCharges must be <= 1000")
	}
	if !slices.Contains(pipeline.ContractOptions, *rec.Contract) {
		problems = append(problems, "contract: contract must be one of: "+strings.Join(pipeline.ContractOptions, ", "))
	}
	if !slices.Contains(pipeline.InternetServiceOptions, *rec.InternetService) {
		problems = append(problems, "internetService: internetService must be one of: "+strings.Join(pipeline.InternetServiceOptions, ", "))
	}
	intRange("paymentDelay", *rec.PaymentDelay, 0, 60)
	return problems
}
