package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/domain/jobs"
	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// Metrics owns a private registry so repeated construction in tests never
// collides with the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	leonardoLatency *prometheus.HistogramVec
	leonardoRetries *prometheus.CounterVec
	limiterWait     prometheus.Histogram
	llmLatency      *prometheus.HistogramVec

	jobDuration     *prometheus.HistogramVec
	activityOutcome *prometheus.CounterVec
	pollOutcome     *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// Current returns the process metrics, or nil before Init. All methods are nil-safe.
func Current() *Metrics { return instance }

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyboard_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "storyboard_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		leonardoLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyboard_leonardo_request_duration_seconds",
			Help:    "Leonardo API request duration by operation and status.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"op", "status"}),
		leonardoRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_leonardo_retries_total",
			Help: "Leonardo API retries by operation.",
		}, []string{"op"}),
		limiterWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyboard_leonardo_rate_limiter_wait_seconds",
			Help:    "Time spent waiting on the Leonardo rate limiter.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyboard_llm_request_duration_seconds",
			Help:    "LLM request duration by model and status.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"model", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyboard_job_duration_seconds",
			Help:    "Background job duration by type and final status.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
		}, []string{"job_type", "status"}),
		activityOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_dataset_activity_total",
			Help: "Dataset assembly activities by outcome.",
		}, []string{"outcome"}),
		pollOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storyboard_poll_outcome_total",
			Help: "Bounded poll results by subject and outcome.",
		}, []string{"subject", "outcome"}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storyboard_job_queue_depth",
			Help: "job_run rows by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// TrackAPI counts a request as in flight until the returned func records its status.
func (m *Metrics) TrackAPI(method, route string) func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.apiInflight.Inc()
	return func(status string) {
		m.apiInflight.Dec()
		m.ObserveAPI(method, route, status, time.Since(start))
	}
}

func (m *Metrics) ObserveLeonardoRequest(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.leonardoLatency.WithLabelValues(op, status).Observe(dur.Seconds())
}

func (m *Metrics) IncLeonardoRetry(op string) {
	if m != nil {
		m.leonardoRetries.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ObserveRateLimiterWait(dur time.Duration) {
	if m != nil {
		m.limiterWait.Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m != nil {
		m.llmLatency.WithLabelValues(model, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(jobType, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncActivity(outcome string) {
	if m != nil {
		m.activityOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncPollOutcome(subject, outcome string) {
	if m != nil {
		m.pollOutcome.WithLabelValues(subject, outcome).Inc()
	}
}

// StartJobQueueCollector samples job_run counts by status until ctx is done.
func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 15*time.Second)
	if interval <= 0 {
		interval = 15 * time.Second
	}
	statuses := []string{jobs.StatusQueued, jobs.StatusRunning, jobs.StatusSucceeded, jobs.StatusFailed, jobs.StatusCanceled}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, s := range statuses {
				m.queueDepth.WithLabelValues(s).Set(0)
			}
			var rows []struct {
				Status string
				Count  int64
			}
			if err := db.WithContext(ctx).
				Model(&jobs.JobRun{}).
				Select("status, count(*) as count").
				Group("status").
				Scan(&rows).Error; err != nil {
				if log != nil {
					log.Warn("metrics: job queue depth query failed", "error", err)
				}
				continue
			}
			for _, row := range rows {
				status := strings.TrimSpace(row.Status)
				if status == "" {
					status = "unknown"
				}
				m.queueDepth.WithLabelValues(status).Set(float64(row.Count))
			}
		}
	}()
}
