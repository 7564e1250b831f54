package hotfolder

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesBurstIntoOneFire(t *testing.T) {
	var fires int32
	d := newDebouncer(30*time.Millisecond, func(path string) {
		atomic.AddInt32(&fires, 1)
	})

	for i := 0; i < 5; i++ {
		d.trigger("/in/invoice.pdf")
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&fires); got != 1 {
		t.Fatalf("expected exactly 1 fire after a coalesced burst, got %d", got)
	}
}

func TestDebouncerStopCancelsPendingFire(t *testing.T) {
	var fired bool
	d := newDebouncer(20*time.Millisecond, func(path string) { fired = true })
	d.trigger("/in/invoice.pdf")
	d.stop()
	time.Sleep(50 * time.Millisecond)
	if fired {
		t.Fatal("expected stop to cancel the pending timer")
	}
}

func TestPathLockerAdmitsEveryWaiterOnSameKey(t *testing.T) {
	pl := newPathLocker()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pl.Lock("shared")
			defer pl.Unlock("shared")
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(order) != 3 {
		t.Fatalf("expected all 3 goroutines to have run, got %d", len(order))
	}
}

func TestPathLockerNeverOverlapsSameKey(t *testing.T) {
	pl := newPathLocker()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pl.Lock("shared")
			defer pl.Unlock("shared")

			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Fatalf("expected at most 1 concurrent holder for the same key, observed %d", got)
	}
}

func TestPathLockerRefcountSurvivesConcurrentLockAndUnlock(t *testing.T) {
	pl := newPathLocker()
	var wg sync.WaitGroup

	// Repeatedly lock/unlock the same key from many goroutines; the
	// refcounted map entry must never be deleted while a waiter still
	// holds (or is about to receive) its mutex, else a later Unlock
	// would silently no-op and a subsequent Lock would bypass exclusion
	// entirely via a freshly allocated, unrelated mutex.
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pl.Lock("hf1|invoice")
			time.Sleep(time.Millisecond)
			pl.Unlock("hf1|invoice")
		}()
	}
	wg.Wait()

	pl.mu.Lock()
	defer pl.mu.Unlock()
	if len(pl.locks) != 0 {
		t.Fatalf("expected every key to be cleaned up once all holders unlocked, got %d remaining", len(pl.locks))
	}
}

func TestWaitStableReturnsTrueOnceFileStopsGrowing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growing.pdf")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if !waitStable(context.Background(), path, 40*time.Millisecond) {
		t.Fatal("expected a never-modified file to be reported stable")
	}
}

func TestWaitStableReturnsFalseWhenFileDisappears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vanishing.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		os.Remove(path)
	}()

	if waitStable(context.Background(), path, 200*time.Millisecond) {
		t.Fatal("expected waitStable to report false for a removed file")
	}
}

func TestIsPDFCaseInsensitive(t *testing.T) {
	for _, name := range []string{"a.pdf", "A.PDF", "invoice.Pdf"} {
		if !isPDF(name) {
			t.Fatalf("expected %q to be classified as a PDF", name)
		}
	}
	if isPDF("a.xml") {
		t.Fatal("expected a.xml not to be classified as a PDF")
	}
}
