// Benchmarks merged real+virtual reads against plain engine reads.
//
// Usage: go run ./testing/benchmarks/overlay_merge -nodes 20000 -virtual 2000
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/orneryd/overlaydb/pkg/config"
	"github.com/orneryd/overlaydb/pkg/nornicdb"
	"github.com/orneryd/overlaydb/pkg/overlay"
	"github.com/orneryd/overlaydb/pkg/storage"
)

type scenario string

const (
	scEngineAllNodes  scenario = "engine_all_nodes"
	scOverlayAllNodes scenario = "overlay_all_nodes"
	scOverlayFiltered scenario = "overlay_filtered_nodes"
	scOverlayDegree   scenario = "overlay_degree"
	scOverlayCount    scenario = "overlay_count_by_type"
)

var allScenarios = []scenario{scEngineAllNodes, scOverlayAllNodes, scOverlayFiltered, scOverlayDegree, scOverlayCount}

type runConfig struct {
	concurrency int
	seconds     time.Duration
	warmup      time.Duration
}

// workerFn runs one operation. Each worker owns its transaction.
type workerFn func() error

func main() {
	var (
		nodes      = flag.Int("nodes", 20_000, "Real nodes to load")
		virtual    = flag.Int("virtual", 2_000, "Virtual nodes created per transaction")
		concurrent = flag.Int("concurrency", runtime.GOMAXPROCS(0), "Concurrent transactions")
		seconds    = flag.Int("seconds", 5, "Benchmark duration per scenario")
		warmup     = flag.Int("warmup-seconds", 1, "Warmup duration per scenario")
		scenarios  = flag.String("scenarios", joinScenarios(allScenarios), "Comma-separated scenarios to run")
		outCSV     = flag.String("csv", "testing/benchmarks/overlay_merge/results.csv", "CSV output path (empty disables)")
	)
	flag.Parse()

	if *nodes <= 0 || *virtual < 0 || *concurrent <= 0 || *seconds <= 0 || *warmup < 0 {
		fatalf("invalid args")
	}

	dataDir, err := os.MkdirTemp("", "overlaydb-merge.*")
	if err != nil {
		fatalf("mktemp: %v", err)
	}
	defer os.RemoveAll(dataDir)

	cfg := config.LoadDefaults()
	cfg.Database.DataDir = dataDir
	cfg.Logging.Level = "error"
	db, err := nornicdb.Open(cfg)
	if err != nil {
		fatalf("open: %v", err)
	}
	defer db.Close()

	hub, err := loadGraph(db, *nodes)
	if err != nil {
		fatalf("load: %v", err)
	}
	logf("loaded %d real nodes into %s", *nodes, dataDir)

	rc := runConfig{
		concurrency: *concurrent,
		seconds:     time.Duration(*seconds) * time.Second,
		warmup:      time.Duration(*warmup) * time.Second,
	}

	var rows []csvRow
	for _, sc := range parseScenarios(*scenarios) {
		s := runBenchmark(string(sc), rc, func() (workerFn, func(), error) {
			return newWorker(db, sc, hub, *virtual)
		})
		printSummary(string(sc), s)
		rows = append(rows, rowFromSummary(string(sc), *nodes, *virtual, *concurrent, s))
	}

	if *outCSV != "" {
		if err := appendCSV(*outCSV, rows); err != nil {
			fatalf("csv: %v", err)
		}
		logf("results appended to %s", *outCSV)
	}
}

// loadGraph creates a star: every node is linked to node hub.
func loadGraph(db *nornicdb.DB, n int) (storage.NodeID, error) {
	tx, err := db.Begin()
	if err != nil {
		return storage.NoID, err
	}
	defer tx.Close()

	ov := tx.Overlay()
	person, err := ov.LabelGetOrCreate("Person")
	if err != nil {
		return storage.NoID, err
	}
	knows, err := ov.RelationshipTypeGetOrCreate("KNOWS")
	if err != nil {
		return storage.NoID, err
	}
	hub, err := ov.CreateNode()
	if err != nil {
		return storage.NoID, err
	}
	for i := 1; i < n; i++ {
		id, err := ov.CreateNode()
		if err != nil {
			return storage.NoID, err
		}
		if _, err := ov.AddLabel(id, person); err != nil {
			return storage.NoID, err
		}
		if i%10 == 0 {
			if _, err := ov.CreateRelationship(knows, id, hub); err != nil {
				return storage.NoID, err
			}
		}
	}
	return hub, nil
}

func newWorker(db *nornicdb.DB, sc scenario, hub storage.NodeID, virtual int) (workerFn, func(), error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = tx.Close() }
	ov := tx.Overlay()

	knows, err := ov.RelationshipTypeID("KNOWS")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	var filterIDs []storage.NodeID
	for i := 0; i < virtual; i++ {
		id := ov.CreateVirtualNode()
		if _, err := ov.CreateVirtualRelationship(knows, id, hub); err != nil {
			cleanup()
			return nil, nil, err
		}
		if i%2 == 0 {
			filterIDs = append(filterIDs, id)
		}
	}

	drain := func(it storage.Iterator[storage.NodeID], err error) error {
		if err != nil {
			return err
		}
		overlay.Count(it)
		return nil
	}

	switch sc {
	case scEngineAllNodes:
		return func() error { return drain(db.Engine().AllNodes()) }, cleanup, nil
	case scOverlayAllNodes:
		return func() error { return drain(ov.AllNodes()) }, cleanup, nil
	case scOverlayFiltered:
		filterIDs = append(filterIDs, hub)
		ov.ActivateNodeFilter(filterIDs...)
		return func() error { return drain(ov.AllNodes()) }, cleanup, nil
	case scOverlayDegree:
		return func() error {
			_, err := ov.Degree(hub, storage.Incoming, knows)
			return err
		}, cleanup, nil
	case scOverlayCount:
		return func() error {
			_, err := ov.CountRelationshipsByType(storage.NoID, knows, storage.NoID)
			return err
		}, cleanup, nil
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown scenario %q", sc)
	}
}

func parseScenarios(s string) []scenario {
	var out []scenario
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, scenario(part))
	}
	return out
}

func joinScenarios(list []scenario) string {
	parts := make([]string, len(list))
	for i, sc := range list {
		parts[i] = string(sc)
	}
	return strings.Join(parts, ",")
}

// =============================================================================
// Runner
// =============================================================================

type summary struct {
	label        string
	totalOps     int
	totalSeconds float64
	latencies    []time.Duration
}

func runBenchmark(label string, cfg runConfig, newWorker func() (workerFn, func(), error)) summary {
	doRun := func(d time.Duration) (int, []time.Duration) {
		if d <= 0 {
			return 0, nil
		}
		deadline := time.Now().Add(d)

		var (
			mu     sync.Mutex
			count  int
			latAll []time.Duration
		)

		var wg sync.WaitGroup
		for i := 0; i < cfg.concurrency; i++ {
			fn, cleanup, err := newWorker()
			if err != nil {
				logf("[%s] worker init error: %v", label, err)
				continue
			}
			wg.Add(1)
			go func(fn workerFn, cleanup func()) {
				defer wg.Done()
				defer cleanup()
				local := make([]time.Duration, 0, 1024)
				for time.Now().Before(deadline) {
					start := time.Now()
					if err := fn(); err != nil {
						logf("[%s] op error: %v", label, err)
						break
					}
					local = append(local, time.Since(start))
				}
				mu.Lock()
				count += len(local)
				latAll = append(latAll, local...)
				mu.Unlock()
			}(fn, cleanup)
		}
		wg.Wait()
		return count, latAll
	}

	// Warmup (discard)
	_, _ = doRun(cfg.warmup)

	start := time.Now()
	n, lat := doRun(cfg.seconds)
	elapsed := time.Since(start).Seconds()

	return summary{
		label:        label,
		totalOps:     n,
		totalSeconds: elapsed,
		latencies:    lat,
	}
}

func printSummary(name string, s summary) {
	ops := float64(s.totalOps) / s.totalSeconds
	p50, p95, p99, min, max, mean := latencyStats(s.latencies)

	logf("%s: ops=%d secs=%.3f ops/sec=%.2f", name, s.totalOps, s.totalSeconds, ops)
	logf("%s: latency ms: min=%.3f p50=%.3f p95=%.3f p99=%.3f max=%.3f mean=%.3f",
		name,
		min.Seconds()*1000,
		p50.Seconds()*1000,
		p95.Seconds()*1000,
		p99.Seconds()*1000,
		max.Seconds()*1000,
		mean.Seconds()*1000,
	)
}

func latencyStats(durs []time.Duration) (p50, p95, p99, min, max, mean time.Duration) {
	if len(durs) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	cp := make([]time.Duration, len(durs))
	copy(cp, durs)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })

	min = cp[0]
	max = cp[len(cp)-1]
	var sum time.Duration
	for _, d := range cp {
		sum += d
	}
	mean = time.Duration(int64(sum) / int64(len(cp)))

	p50 = cp[int(float64(len(cp)-1)*0.50)]
	p95 = cp[int(float64(len(cp)-1)*0.95)]
	p99 = cp[int(float64(len(cp)-1)*0.99)]
	return
}

// =============================================================================
// CSV output
// =============================================================================

type csvRow struct {
	Timestamp   string
	Scenario    string
	Nodes       int
	Virtual     int
	Concurrency int
	Ops         int
	Seconds     float64
	OpsPerSec   float64
	P50ms       float64
	P95ms       float64
	P99ms       float64
	Meanms      float64
}

func rowFromSummary(scenario string, nodes, virtual, conc int, s summary) csvRow {
	p50, p95, p99, _, _, mean := latencyStats(s.latencies)
	return csvRow{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Scenario:    scenario,
		Nodes:       nodes,
		Virtual:     virtual,
		Concurrency: conc,
		Ops:         s.totalOps,
		Seconds:     s.totalSeconds,
		OpsPerSec:   float64(s.totalOps) / s.totalSeconds,
		P50ms:       p50.Seconds() * 1000,
		P95ms:       p95.Seconds() * 1000,
		P99ms:       p99.Seconds() * 1000,
		Meanms:      mean.Seconds() * 1000,
	}
}

func appendCSV(path string, rows []csvRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	needHeader := false
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		needHeader = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	defer func() {
		w.Flush()
		if flushErr := w.Error(); flushErr != nil && err == nil {
			err = flushErr
		}
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if needHeader {
		if err := w.Write([]string{
			"timestamp", "scenario", "nodes", "virtual", "concurrency",
			"ops", "seconds", "ops_per_sec", "p50_ms", "p95_ms", "p99_ms", "mean_ms",
		}); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.Timestamp,
			r.Scenario,
			strconv.Itoa(r.Nodes),
			strconv.Itoa(r.Virtual),
			strconv.Itoa(r.Concurrency),
			strconv.Itoa(r.Ops),
			fmt.Sprintf("%.6f", r.Seconds),
			fmt.Sprintf("%.6f", r.OpsPerSec),
			fmt.Sprintf("%.6f", r.P50ms),
			fmt.Sprintf("%.6f", r.P95ms),
			fmt.Sprintf("%.6f", r.P99ms),
			fmt.Sprintf("%.6f", r.Meanms),
		}); err != nil {
			return err
		}
	}
	return nil
}

func logf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

func fatalf(format string, args ...any) {
	logf(format, args...)
	os.Exit(1)
}
