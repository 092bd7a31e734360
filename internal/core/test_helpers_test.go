package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ecodcluster/internal/infra/persistence/memory"
	"ecodcluster/pkg/domain"
)

type logCall struct {
	level string
	msg   string
	kv    map[string]any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (c *captureLogger) add(level, msg string, kv []any) {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	c.mu.Lock()
	c.calls = append(c.calls, logCall{level: level, msg: msg, kv: fields})
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, kv ...any) { c.add("debug", msg, kv) }
func (c *captureLogger) Info(msg string, kv ...any)  { c.add("info", msg, kv) }
func (c *captureLogger) Warn(msg string, kv ...any)  { c.add("warn", msg, kv) }
func (c *captureLogger) Error(msg string, kv ...any) { c.add("error", msg, kv) }

func (c *captureLogger) find(level, operation string) (logCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.level == level && call.kv["operation"] == operation {
			return call, true
		}
	}
	return logCall{}, false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls  []metricsCall
	totals []domain.CategoryTotals
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) RecordTotals(t domain.CategoryTotals) {
	c.totals = append(c.totals, t)
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

// countingSource counts reads so tests can assert that validation happens
// before the source is touched.
type countingSource struct {
	*memory.Store
	mu    sync.Mutex
	reads int
}

func newCountingSource() *countingSource {
	return &countingSource{Store: memory.NewStoreFromSnapshot(memory.ScenarioSnapshot())}
}

func (c *countingSource) ListClusters(ctx context.Context, f domain.ClusterFilter) ([]domain.ClusterRecord, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Store.ListClusters(ctx, f)
}

func (c *countingSource) ListClusterSets(ctx context.Context) ([]domain.ClusterSet, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Store.ListClusterSets(ctx)
}

func (c *countingSource) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func fixedClock() Clock {
	t := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	return ClockFunc(func() time.Time { return t })
}

func clusterIDs(clusters []domain.PriorityCluster) []int64 {
	ids := make([]int64, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.ID)
	}
	return ids
}
