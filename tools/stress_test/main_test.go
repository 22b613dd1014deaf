package main

import (
	"errors"
	"testing"
	"time"
)

func TestResultWithoutSuccesses(t *testing.T) {
	stats := newLatencyStats()
	stats.observe(0, errors.New("boom"))
	stats.observe(0, errors.New("boom"))

	res := stats.result(time.Second)
	if res.TotalRequests != 2 || res.FailedReqs != 2 || res.SuccessfulReqs != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if res.MinLatency != 0 || res.MaxLatency != 0 || res.AvgLatency != 0 {
		t.Errorf("expected zero latencies, got min=%v max=%v avg=%v", res.MinLatency, res.MaxLatency, res.AvgLatency)
	}
	if res.RequestsPerSec != 2 {
		t.Errorf("expected 2 req/s, got %v", res.RequestsPerSec)
	}
}

func TestResultLatencies(t *testing.T) {
	stats := newLatencyStats()
	stats.observe(30*time.Millisecond, nil)
	stats.observe(10*time.Millisecond, nil)
	stats.observe(20*time.Millisecond, nil)
	stats.observe(0, errors.New("boom"))

	res := stats.result(0)
	if res.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %v", res.MinLatency)
	}
	if res.MaxLatency != 30*time.Millisecond {
		t.Errorf("expected max 30ms, got %v", res.MaxLatency)
	}
	if res.AvgLatency != 20*time.Millisecond {
		t.Errorf("expected avg 20ms, got %v", res.AvgLatency)
	}
	if res.RequestsPerSec != 0 {
		t.Errorf("expected 0 req/s for zero duration, got %v", res.RequestsPerSec)
	}
}
