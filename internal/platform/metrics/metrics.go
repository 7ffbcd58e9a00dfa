package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "changedetection_mcp"

const (
	nameRequestsTotal   = namespace + "_requests_total"
	nameRequestsSuccess = namespace + "_requests_success"
	nameRequestsFailed  = namespace + "_requests_failed"
	nameRateLimited     = namespace + "_requests_rate_limited"
	nameDuration        = namespace + "_request_duration_seconds"
)

// Outcome is the terminal state of a dispatched request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeRateLimited
)

// Metrics holds the dispatcher's Prometheus metrics. All series are
// labelled by tool.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestsSuccess     *prometheus.CounterVec
	RequestsFailed      *prometheus.CounterVec
	RequestsRateLimited *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
	started  time.Time
}

// Registry is satisfied by *prometheus.Registry.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// New creates and registers the dispatcher metrics with reg.
func New(reg Registry) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"tool"}
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameRequestsTotal,
			Help: "Total number of tool calls received",
		}, labels),
		RequestsSuccess: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameRequestsSuccess,
			Help: "Tool calls that completed successfully",
		}, labels),
		RequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameRequestsFailed,
			Help: "Tool calls that failed validation or upstream",
		}, labels),
		RequestsRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameRateLimited,
			Help: "Tool calls rejected by the rate limiter",
		}, labels),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    nameDuration,
			Help:    "Duration of tool calls that reached a result",
			Buckets: prometheus.DefBuckets,
		}, labels),
		gatherer: reg,
		started:  time.Now(),
	}
}

// ObserveRequest records a terminal request. Rate-limited calls count toward
// the total only; they are not failures and carry no duration.
func (m *Metrics) ObserveRequest(tool string, outcome Outcome, d time.Duration) {
	m.RequestsTotal.WithLabelValues(tool).Inc()
	switch outcome {
	case OutcomeRateLimited:
		m.RequestsRateLimited.WithLabelValues(tool).Inc()
		return
	case OutcomeSuccess:
		m.RequestsSuccess.WithLabelValues(tool).Inc()
	default:
		m.RequestsFailed.WithLabelValues(tool).Inc()
	}
	m.RequestDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Snapshot is the JSON view returned by the get_metrics tool.
type Snapshot struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	Requests      RequestCounts        `json:"requests"`
	Performance   Performance          `json:"performance"`
	ByTool        map[string]ToolStats `json:"by_tool"`
}

type RequestCounts struct {
	Total       uint64  `json:"total"`
	Success     uint64  `json:"success"`
	Failed      uint64  `json:"failed"`
	RateLimited uint64  `json:"rate_limited"`
	SuccessRate float64 `json:"success_rate"`
}

type Performance struct {
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	TotalDurationMS float64 `json:"total_duration_ms"`
}

type ToolStats struct {
	Count      uint64  `json:"count"`
	Errors     uint64  `json:"errors"`
	DurationMS float64 `json:"duration_ms"`
}

// Tools returns the tool names present in s, sorted.
func (s Snapshot) Tools() []string {
	names := make([]string, 0, len(s.ByTool))
	for name := range s.ByTool {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot reads the current values back from the registry.
func (m *Metrics) Snapshot() (Snapshot, error) {
	families, err := m.gatherer.Gather()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		UptimeSeconds: round2(time.Since(m.started).Seconds()),
		ByTool:        map[string]ToolStats{},
	}
	var totalSeconds float64
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			tool := toolLabel(metric)
			stats := snap.ByTool[tool]
			switch family.GetName() {
			case nameRequestsTotal:
				snap.Requests.Total += counterValue(metric)
				continue
			case nameRequestsSuccess:
				snap.Requests.Success += counterValue(metric)
				continue
			case nameRateLimited:
				snap.Requests.RateLimited += counterValue(metric)
				continue
			case nameRequestsFailed:
				n := counterValue(metric)
				snap.Requests.Failed += n
				stats.Errors += n
			case nameDuration:
				h := metric.GetHistogram()
				stats.Count += h.GetSampleCount()
				stats.DurationMS = round2(h.GetSampleSum() * 1000)
				totalSeconds += h.GetSampleSum()
			default:
				continue
			}
			snap.ByTool[tool] = stats
		}
	}

	if snap.Requests.Total > 0 {
		snap.Requests.SuccessRate = round2(float64(snap.Requests.Success) / float64(snap.Requests.Total) * 100)
	}
	snap.Performance.TotalDurationMS = round2(totalSeconds * 1000)
	if snap.Requests.Success > 0 {
		snap.Performance.AvgDurationMS = round2(totalSeconds * 1000 / float64(snap.Requests.Success))
	}
	return snap, nil
}

func toolLabel(m *dto.Metric) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "tool" {
			return lp.GetValue()
		}
	}
	return ""
}

func counterValue(m *dto.Metric) uint64 {
	return uint64(m.GetCounter().GetValue())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
