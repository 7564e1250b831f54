package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/pipeline"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
)

// fakeLocker is a minimal stand-in for the hotfolder package's
// pathLocker: per-key mutual exclusion, with no cross-package
// dependency needed to exercise Pool's locking behaviour in isolation.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *fakeLocker) Lock(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
}

func (l *fakeLocker) Unlock(key string) {
	l.mu.Lock()
	m := l.locks[key]
	l.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}

// trackingRunner records how many concurrent Run calls were in flight at
// once, so a test can assert single-flight exclusion held across the
// full pipeline execution, not just around enqueue.
type trackingRunner struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func (r *trackingRunner) Run(ctx context.Context, job *queue.DocumentJob, cfg *config.HotfolderConfig) *pipeline.Document {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	return &pipeline.Document{State: pipeline.StateDone}
}

type fixedConfigLookup struct {
	cfg *config.HotfolderConfig
}

func (f fixedConfigLookup) Get(id string) (*config.HotfolderConfig, bool) {
	return f.cfg, true
}

func newTestPool(runner *trackingRunner, locker FingerprintLocker) (*Pool, *queue.MemoryQueue) {
	q := queue.NewMemoryQueue()
	pool := NewPool(2, q, runner, fixedConfigLookup{cfg: &config.HotfolderConfig{ID: "hf1"}}, locker)
	return pool, q
}

func TestProcessJobSerialisesSameFingerprint(t *testing.T) {
	runner := &trackingRunner{delay: 40 * time.Millisecond}
	pool, q := newTestPool(runner, newFakeLocker())

	job1 := &queue.DocumentJob{ID: "j1", HotfolderID: "hf1", PDFPath: "/in/hf1/invoice.pdf", Status: queue.StatusPending, CreatedAt: fixedTime()}
	job2 := &queue.DocumentJob{ID: "j2", HotfolderID: "hf1", PDFPath: "/in/hf1/invoice.pdf", Status: queue.StatusPending, CreatedAt: fixedTime()}
	if err := q.Enqueue(context.Background(), job1); err != nil {
		t.Fatalf("enqueue job1: %v", err)
	}
	if err := q.Enqueue(context.Background(), job2); err != nil {
		t.Fatalf("enqueue job2: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pool.processJob(context.Background(), 0, job1) }()
	go func() { defer wg.Done(); pool.processJob(context.Background(), 1, job2) }()
	wg.Wait()

	if runner.maxInFlight > 1 {
		t.Fatalf("expected at most 1 concurrent pipeline run for the same fingerprint, observed %d", runner.maxInFlight)
	}
}

func TestProcessJobAllowsDistinctFingerprintsConcurrently(t *testing.T) {
	runner := &trackingRunner{delay: 60 * time.Millisecond}
	pool, q := newTestPool(runner, newFakeLocker())

	job1 := &queue.DocumentJob{ID: "j1", HotfolderID: "hf1", PDFPath: "/in/hf1/a.pdf", Status: queue.StatusPending, CreatedAt: fixedTime()}
	job2 := &queue.DocumentJob{ID: "j2", HotfolderID: "hf1", PDFPath: "/in/hf1/b.pdf", Status: queue.StatusPending, CreatedAt: fixedTime()}
	if err := q.Enqueue(context.Background(), job1); err != nil {
		t.Fatalf("enqueue job1: %v", err)
	}
	if err := q.Enqueue(context.Background(), job2); err != nil {
		t.Fatalf("enqueue job2: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pool.processJob(context.Background(), 0, job1) }()
	go func() { defer wg.Done(); pool.processJob(context.Background(), 1, job2) }()
	wg.Wait()

	if runner.maxInFlight < 2 {
		t.Fatalf("expected distinct fingerprints to run concurrently, observed max %d", runner.maxInFlight)
	}
}

func TestFingerprintKeyMatchesHotfolderKeyFormat(t *testing.T) {
	got := fingerprintKey("hf1", "/in/hf1/Invoice-001.PDF")
	want := "hf1|Invoice-001"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// fixedTime avoids depending on time.Now() so the test stays
// deterministic; MemoryQueue only uses CreatedAt for FIFO ordering
// among equal-priority jobs, which isn't exercised here.
func fixedTime() time.Time {
	return time.Unix(0, 0)
}
