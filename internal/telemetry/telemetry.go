package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aadityasp/agreegraph/config"
)

// Outcome classifies a recorded operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Fields carries operation-specific measurements supplied by the caller,
// e.g. cache hit/miss counts and entity counts.
type Fields map[string]interface{}

// Event is one structured telemetry record, emitted per wrapped operation.
type Event struct {
	SessionID  string  `json:"session_id"`
	AgentName  string  `json:"agent_name"`
	Operation  string  `json:"operation"`
	DurationMS float64 `json:"duration_ms"`
	Outcome    Outcome `json:"outcome"`
	Error      string  `json:"error,omitempty"`
	Extra      Fields  `json:"extra,omitempty"`
}

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agreegraph_operations_total",
		Help: "Pipeline operations by name and outcome.",
	}, []string{"operation", "outcome"})
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agreegraph_operation_duration_seconds",
		Help:    "Wall-clock duration of pipeline operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Recorder wraps units of work with duration measurement and outcome
// recording. It never swallows the wrapped failure: the original error is
// returned unchanged, with the measurement added alongside.
type Recorder struct {
	cfg    config.TelemetryConfig
	format string // "console" or "json"
	out    io.Writer
	logger *log.Logger
}

// NewRecorder creates a telemetry recorder. Events go to out as human-readable
// lines or as one JSON object per line depending on format.
func NewRecorder(cfg config.TelemetryConfig, format string, out io.Writer) *Recorder {
	if out == nil {
		out = log.Writer()
	}
	r := &Recorder{
		cfg:    cfg,
		format: strings.ToLower(format),
		out:    out,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
	if cfg.Enabled && cfg.MetricsPort > 0 {
		go r.serveMetrics()
	}
	return r
}

// Record executes fn, measures wall-clock duration, and emits an event against
// the given session and agent. Recording happens even when fn fails; the
// failure context is attached and the error propagated to the caller.
// A nil recorder runs fn without recording.
func (r *Recorder) Record(ctx context.Context, sessionID, agentName, operation string, extra Fields, fn func(ctx context.Context) error) error {
	if r == nil {
		return fn(ctx)
	}
	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	event := Event{
		SessionID:  sessionID,
		AgentName:  agentName,
		Operation:  operation,
		DurationMS: float64(duration.Microseconds()) / 1000.0,
		Outcome:    OutcomeSuccess,
		Extra:      extra,
	}
	if err != nil {
		event.Outcome = OutcomeError
		event.Error = err.Error()
	}
	r.Emit(event)
	return err
}

// Emit writes a single event to the telemetry stream and metrics.
func (r *Recorder) Emit(event Event) {
	if r == nil || !r.cfg.Enabled {
		return
	}

	operationsTotal.WithLabelValues(event.Operation, string(event.Outcome)).Inc()
	operationDuration.WithLabelValues(event.Operation).Observe(event.DurationMS / 1000.0)

	if r.format == "json" {
		data, err := json.Marshal(event)
		if err != nil {
			r.logger.Printf("marshal event: %v", err)
			return
		}
		fmt.Fprintln(r.out, string(data))
		return
	}

	line := fmt.Sprintf("[TELEMETRY] session=%s agent=%s op=%s duration=%.2fms outcome=%s",
		event.SessionID, event.AgentName, event.Operation, event.DurationMS, event.Outcome)
	if event.Error != "" {
		line += " error=" + event.Error
	}
	if len(event.Extra) > 0 {
		keys := make([]string, 0, len(event.Extra))
		for k := range event.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, event.Extra[k])
		}
	}
	fmt.Fprintln(r.out, line)
}

// serveMetrics exposes the prometheus registry on the configured port.
func (r *Recorder) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		r.logger.Printf("metrics server error: %v", err)
	}
}
