package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "sitewatch_"

	resultSuccess = "success"
	resultError   = "error"

	transportHTTP = "http"
	transportMQTT = "mqtt"

	stageReconstructed = "reconstructed"
	stageSampled       = "sampled"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	replayBuildTotal   *prometheus.CounterVec
	replayBuildLatency *prometheus.HistogramVec
	sequenceLength     *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	playbackSessions prometheus.Gauge
	playbackTicks    prometheus.Counter
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total snapshot ingest requests by transport and result",
			},
			[]string{"transport", "result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total snapshot ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Snapshot ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transport", "result"},
		)

		replayBuildTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "replay_build_total",
				Help: "Total replay sequence builds by result",
			},
			[]string{"result"},
		)
		replayBuildLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "replay_build_latency_seconds",
				Help:    "Replay sequence build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		sequenceLength = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "replay_sequence_length",
				Help:    "Replay sequence length by pipeline stage",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"stage"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "replay_export_total",
				Help: "Total replay report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "replay_export_latency_seconds",
				Help:    "Replay report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		playbackSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "playback_sessions_active",
				Help: "Currently open playback sessions",
			},
		)
		playbackTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "playback_ticks_total",
				Help: "Total playback auto-advance ticks delivered",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			replayBuildTotal,
			replayBuildLatency,
			sequenceLength,
			exportTotal,
			exportLatency,
			playbackSessions,
			playbackTicks,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records one ingest request duration and result.
func ObserveIngest(transport, result string, duration time.Duration) {
	if transport == "" {
		transport = transportHTTP
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(transport, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(transport, result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveReplayBuild records one sequence build latency and result.
func ObserveReplayBuild(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if replayBuildTotal != nil {
		replayBuildTotal.WithLabelValues(result).Inc()
	}
	if replayBuildLatency != nil {
		replayBuildLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSequenceLength records a sequence length for a pipeline stage.
func ObserveSequenceLength(stage string, length int) {
	if stage == "" || length < 0 {
		return
	}
	if sequenceLength != nil {
		sequenceLength.WithLabelValues(stage).Observe(float64(length))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPlaybackSessions tracks an opened playback session.
func IncPlaybackSessions() {
	if playbackSessions != nil {
		playbackSessions.Inc()
	}
}

// DecPlaybackSessions tracks a closed playback session.
func DecPlaybackSessions() {
	if playbackSessions != nil {
		playbackSessions.Dec()
	}
}

// IncPlaybackTick counts one delivered auto-advance tick.
func IncPlaybackTick() {
	if playbackTicks != nil {
		playbackTicks.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	TransportHTTP = transportHTTP
	TransportMQTT = transportMQTT

	StageReconstructed = stageReconstructed
	StageSampled       = stageSampled
)
