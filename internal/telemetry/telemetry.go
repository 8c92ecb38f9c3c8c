package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radeon-ai/reasoner/config"
)

var (
	promOnce sync.Once

	queriesTotal   *prometheus.CounterVec
	cacheHitsTotal prometheus.Counter
	queryDuration  prometheus.Histogram
	confidenceHist prometheus.Histogram
)

func initPromMetrics() {
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reasoner_queries_total",
		Help: "Queries processed, labelled by detected intent.",
	}, []string{"intent"})
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reasoner_cache_hits_total",
		Help: "Responses served from the response cache.",
	})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reasoner_query_duration_seconds",
		Help:    "End-to-end query processing time.",
		Buckets: prometheus.DefBuckets,
	})
	confidenceHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reasoner_response_confidence",
		Help:    "Confidence scores of synthesized responses.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})
}

// QueryEvent captures one processed query for recording.
type QueryEvent struct {
	Intent     string
	Complexity string
	Duration   time.Duration
	Confidence float64
	Sources    int
	CacheHit   bool
	NoEvidence bool
}

// Stats is a point-in-time snapshot of aggregate counters.
type Stats struct {
	TotalQueries    int64            `json:"total_queries"`
	CacheHits       int64            `json:"cache_hits"`
	NoEvidenceCount int64            `json:"no_evidence_count"`
	ByIntent        map[string]int64 `json:"by_intent"`
	ByComplexity    map[string]int64 `json:"by_complexity"`
	AverageLatency  time.Duration    `json:"average_latency"`
}

// Telemetry tracks query metrics, exporting them both through its own
// snapshot and through the process-wide Prometheus registry.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu    sync.RWMutex
	stats Stats
}

// NewTelemetry creates a telemetry instance and registers the Prometheus
// collectors on first use.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	promOnce.Do(initPromMetrics)
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		stats: Stats{
			ByIntent:     make(map[string]int64),
			ByComplexity: make(map[string]int64),
		},
	}
	if cfg.Enabled && cfg.PeriodicLogs {
		go t.periodicLogs()
	}
	return t
}

// RecordQuery records a completed query event.
func (t *Telemetry) RecordQuery(event QueryEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	t.stats.TotalQueries++
	t.stats.ByIntent[event.Intent]++
	t.stats.ByComplexity[event.Complexity]++
	if event.CacheHit {
		t.stats.CacheHits++
	}
	if event.NoEvidence {
		t.stats.NoEvidenceCount++
	}
	if t.stats.TotalQueries == 1 {
		t.stats.AverageLatency = event.Duration
	} else {
		total := t.stats.AverageLatency * time.Duration(t.stats.TotalQueries-1)
		t.stats.AverageLatency = (total + event.Duration) / time.Duration(t.stats.TotalQueries)
	}
	t.mu.Unlock()

	queriesTotal.WithLabelValues(event.Intent).Inc()
	queryDuration.Observe(event.Duration.Seconds())
	confidenceHist.Observe(event.Confidence)
	if event.CacheHit {
		cacheHitsTotal.Inc()
	}

	t.logger.Printf("Query: intent=%s complexity=%s duration=%v confidence=%.2f sources=%d cache=%t",
		event.Intent, event.Complexity, event.Duration, event.Confidence, event.Sources, event.CacheHit)
}

// Snapshot returns a copy of the aggregate counters.
func (t *Telemetry) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.stats
	out.ByIntent = make(map[string]int64, len(t.stats.ByIntent))
	for k, v := range t.stats.ByIntent {
		out.ByIntent[k] = v
	}
	out.ByComplexity = make(map[string]int64, len(t.stats.ByComplexity))
	for k, v := range t.stats.ByComplexity {
		out.ByComplexity[k] = v
	}
	return out
}

func (t *Telemetry) periodicLogs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		s := t.Snapshot()
		t.logger.Printf("Stats: queries=%d cache_hits=%d no_evidence=%d avg_latency=%v",
			s.TotalQueries, s.CacheHits, s.NoEvidenceCount, s.AverageLatency)
	}
}
