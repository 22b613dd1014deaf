package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/VanDung-dev/arraybridge/dataset"
	"github.com/VanDung-dev/arraybridge/resolve"
)

// StressTestConfig holds configuration for the stress test.
type StressTestConfig struct {
	Pattern     string
	Treepath    string
	Concurrency int
	Duration    time.Duration
	CacheSize   int
	ReportFile  string
}

// StressTestResult holds the results of a stress test.
type StressTestResult struct {
	TotalRequests  int64
	SuccessfulReqs int64
	FailedReqs     int64
	TotalDuration  time.Duration
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RequestsPerSec float64
}

func main() {
	config := parseFlags()

	fmt.Println("=== arraybridge Resolution Stress Test ===")
	fmt.Printf("Pattern: %s (%s)\n", config.Pattern, config.Treepath)
	fmt.Printf("Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("Duration: %v\n", config.Duration)
	fmt.Println()

	ds, err := dataset.Open(config.Pattern, config.Treepath,
		dataset.WithCacheSize(config.CacheSize),
		dataset.WithListingWorkers(config.Concurrency))
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	fmt.Printf("Partitions: %d, entries: %d, roles: %d\n\n", ds.NumPartitions(), ds.NumEntries(), len(ds.Roles()))

	result := runStressTest(config, ds)

	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result)
	}
}

func parseFlags() StressTestConfig {
	config := StressTestConfig{}

	flag.StringVar(&config.Pattern, "pattern", "*.arrow", "Glob of partition files")
	flag.StringVar(&config.Treepath, "tree", "", "Tree path inside each partition")
	flag.IntVar(&config.Concurrency, "c", 4, "Number of concurrent workers")
	flag.DurationVar(&config.Duration, "d", 10*time.Second, "Duration of test")
	flag.IntVar(&config.CacheSize, "cache", 0, "Branches cached per handle (0 = default)")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

// latencyStats accumulates request outcomes from many workers.
type latencyStats struct {
	total, success, failed atomic.Int64
	sum                    atomic.Int64
	min, max               atomic.Int64
}

func newLatencyStats() *latencyStats {
	s := &latencyStats{}
	s.min.Store(1<<63 - 1)
	return s
}

func (s *latencyStats) observe(latency time.Duration, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	s.success.Add(1)
	lat := int64(latency)
	s.sum.Add(lat)
	for {
		old := s.min.Load()
		if lat >= old || s.min.CompareAndSwap(old, lat) {
			break
		}
	}
	for {
		old := s.max.Load()
		if lat <= old || s.max.CompareAndSwap(old, lat) {
			break
		}
	}
}

func runStressTest(config StressTestConfig, ds *dataset.Dataset) StressTestResult {
	stats := newLatencyStats()

	roles := ds.Roles()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	startTime := time.Now()
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := workerID; ; n += config.Concurrency {
				select {
				case <-stop:
					return
				default:
				}
				latency, err := resolvePartition(ds, n%ds.NumPartitions(), roles)
				stats.observe(latency, err)
				if err != nil {
					// Small sleep on error to avoid hammering
					time.Sleep(10 * time.Millisecond)
				}
			}
		}(i)
	}

	time.Sleep(config.Duration)
	close(stop)
	wg.Wait()

	return stats.result(time.Since(startTime))
}

// result summarizes the observed requests. Latencies are zero when no
// request succeeded.
func (s *latencyStats) result(duration time.Duration) StressTestResult {
	res := StressTestResult{
		TotalRequests:  s.total.Load(),
		SuccessfulReqs: s.success.Load(),
		FailedReqs:     s.failed.Load(),
		TotalDuration:  duration,
	}
	if res.SuccessfulReqs > 0 {
		res.AvgLatency = time.Duration(s.sum.Load() / res.SuccessfulReqs)
		res.MinLatency = time.Duration(s.min.Load())
		res.MaxLatency = time.Duration(s.max.Load())
	}
	if duration > 0 {
		res.RequestsPerSec = float64(res.TotalRequests) / duration.Seconds()
	}
	return res
}

// resolvePartition opens one partition, resolves every role twice to
// exercise the branch cache and closes it.
func resolvePartition(ds *dataset.Dataset, partition int, roles []resolve.Role) (time.Duration, error) {
	start := time.Now()
	h, err := ds.Partition(partition)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	for i := 0; i < 2; i++ {
		if _, err := h.GetAll(roles); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}

func printResults(result StressTestResult) {
	fmt.Println("=== Results ===")
	fmt.Printf("Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Total Requests:  %d\n", result.TotalRequests)
	if result.TotalRequests > 0 {
		fmt.Printf("Successful:      %d (%.2f%%)\n", result.SuccessfulReqs, float64(result.SuccessfulReqs)/float64(result.TotalRequests)*100)
		fmt.Printf("Failed:          %d (%.2f%%)\n", result.FailedReqs, float64(result.FailedReqs)/float64(result.TotalRequests)*100)
	}
	fmt.Printf("Requests/sec:    %.2f\n", result.RequestsPerSec)
	fmt.Printf("Avg Latency:     %v\n", result.AvgLatency.Round(time.Microsecond))
	fmt.Printf("Min Latency:     %v\n", result.MinLatency.Round(time.Microsecond))
	fmt.Printf("Max Latency:     %v\n", result.MaxLatency.Round(time.Microsecond))
}

func saveReport(config StressTestConfig, result StressTestResult) {
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"pattern":     config.Pattern,
			"treepath":    config.Treepath,
			"concurrency": config.Concurrency,
			"duration":    config.Duration.String(),
		},
		"results": map[string]interface{}{
			"total_requests":   result.TotalRequests,
			"successful":       result.SuccessfulReqs,
			"failed":           result.FailedReqs,
			"requests_per_sec": result.RequestsPerSec,
			"avg_latency_ms":   float64(result.AvgLatency.Microseconds()) / 1000,
			"min_latency_ms":   float64(result.MinLatency.Microseconds()) / 1000,
			"max_latency_ms":   float64(result.MaxLatency.Microseconds()) / 1000,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, data, 0644); err != nil {
		log.Printf("Failed to write report: %v", err)
	} else {
		fmt.Printf("Report saved to: %s\n", config.ReportFile)
	}
}
