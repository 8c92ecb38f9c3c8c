package telemetry

import (
	"testing"
	"time"

	"github.com/radeon-ai/reasoner/config"
)

func TestRecordQueryAggregates(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordQuery(QueryEvent{Intent: "factual", Complexity: "simple", Duration: 10 * time.Millisecond, Confidence: 0.9, Sources: 1})
	tele.RecordQuery(QueryEvent{Intent: "factual", Complexity: "simple", Duration: 20 * time.Millisecond, Confidence: 0.8, Sources: 1, CacheHit: true})
	tele.RecordQuery(QueryEvent{Intent: "comparative", Complexity: "complex", Duration: 30 * time.Millisecond, Confidence: 0.7, Sources: 2, NoEvidence: true})

	s := tele.Snapshot()
	if s.TotalQueries != 3 {
		t.Fatalf("total = %d", s.TotalQueries)
	}
	if s.CacheHits != 1 || s.NoEvidenceCount != 1 {
		t.Fatalf("cache=%d noEvidence=%d", s.CacheHits, s.NoEvidenceCount)
	}
	if s.ByIntent["factual"] != 2 || s.ByIntent["comparative"] != 1 {
		t.Fatalf("by intent = %v", s.ByIntent)
	}
	if s.AverageLatency != 20*time.Millisecond {
		t.Fatalf("avg latency = %v", s.AverageLatency)
	}
}

func TestRecordQueryDisabled(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: false})
	tele.RecordQuery(QueryEvent{Intent: "factual"})
	if s := tele.Snapshot(); s.TotalQueries != 0 {
		t.Fatalf("disabled telemetry recorded %d queries", s.TotalQueries)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordQuery(QueryEvent{Intent: "factual"})
	s := tele.Snapshot()
	s.ByIntent["factual"] = 99
	if tele.Snapshot().ByIntent["factual"] != 1 {
		t.Fatalf("snapshot shares internal map")
	}
}
