// Package hotfolder owns the watched-directory side of the engine: one
// filesystem watcher per enabled hotfolder, candidate debouncing, PDF/XML
// pairing, and the bounded queue + worker pool that turns a stable pair
// into a pipeline execution.
package hotfolder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/pipeline"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
	"github.com/alterspective-engine/hotfolder-engine/internal/worker"
)

// Supervisor owns the in-memory set of active watchers and the work
// queue/worker pool behind them. One Supervisor runs for the process
// lifetime; hotfolders are added or dropped by calling Reconcile after a
// config store mutation.
type Supervisor struct {
	Configs        *config.Store
	Queue          queue.Queue
	Engine         *pipeline.Engine
	WorkerCount    int
	DebounceWindow time.Duration
	PairingTimeout time.Duration

	locker *pathLocker

	mu       sync.Mutex
	watchers map[string]*watcherHandle
	pool     *worker.Pool
	wg       sync.WaitGroup
}

type watcherHandle struct {
	cfgID  string
	fs     *fsnotify.Watcher
	db     *debouncer
	cancel context.CancelFunc
}

// NewSupervisor wires a Supervisor around its shared dependencies.
// DebounceWindow and PairingTimeout default to spec's documented values
// (2s, 30s) when left zero.
func NewSupervisor(configs *config.Store, q queue.Queue, engine *pipeline.Engine, workerCount int, debounceWindow, pairingTimeout time.Duration) *Supervisor {
	if debounceWindow <= 0 {
		debounceWindow = 2 * time.Second
	}
	if pairingTimeout <= 0 {
		pairingTimeout = 30 * time.Second
	}
	return &Supervisor{
		Configs:        configs,
		Queue:          q,
		Engine:         engine,
		WorkerCount:    workerCount,
		DebounceWindow: debounceWindow,
		PairingTimeout: pairingTimeout,
		locker:         newPathLocker(),
		watchers:       make(map[string]*watcherHandle),
	}
}

// Start launches the worker pool and a watcher per currently-enabled
// hotfolder, then returns; watchers and workers keep running on their
// own goroutines until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.pool = worker.NewPool(s.WorkerCount, s.Queue, s.Engine, s.Configs, s.locker)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pool.Start(ctx)
	}()

	s.Reconcile(ctx)
	return nil
}

// Stop performs a cooperative shutdown: watchers stop accepting new
// candidates, in-flight pipelines finish, then the worker pool drains.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	for id, h := range s.watchers {
		h.cancel()
		h.db.stop()
		h.fs.Close()
		delete(s.watchers, id)
	}
	s.mu.Unlock()

	s.pool.Stop()
	s.wg.Wait()
}

// Reconcile brings the running watcher set in line with the store's
// current enabled configs: new enabled input paths gain a watcher,
// configs that were disabled or deleted lose theirs. In-flight work for
// a removed hotfolder continues to completion; only new candidates stop.
func (s *Supervisor) Reconcile(ctx context.Context) {
	enabled := make(map[string]*config.HotfolderConfig)
	for _, cfg := range s.Configs.List() {
		if cfg.Enabled {
			enabled[cfg.ID] = cfg
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.watchers {
		if _, ok := enabled[id]; !ok {
			h.cancel()
			h.db.stop()
			h.fs.Close()
			delete(s.watchers, id)
		}
	}

	for id, cfg := range enabled {
		if _, ok := s.watchers[id]; ok {
			continue
		}
		h, err := s.startWatcher(ctx, cfg)
		if err != nil {
			log.WithFields(log.Fields{"hotfolder": id, "path": cfg.InputPath, "error": err}).
				Error("hotfolder: failed to start watcher")
			continue
		}
		s.watchers[id] = h
	}
}

func (s *Supervisor) startWatcher(ctx context.Context, cfg *config.HotfolderConfig) (*watcherHandle, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.InputPath, 0o755); err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(cfg.InputPath); err != nil {
		fsw.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	db := newDebouncer(s.DebounceWindow, func(path string) {
		s.handleCandidate(watchCtx, cfg, path)
	})

	h := &watcherHandle{cfgID: cfg.ID, fs: fsw, db: db, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.eventLoop(watchCtx, fsw, db)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.initialScan(watchCtx, cfg, db)
	}()

	return h, nil
}

func (s *Supervisor) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, db *debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if isPDF(ev.Name) {
					db.trigger(ev.Name)
				}
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.WithField("error", err).Error("hotfolder: watcher error")
		}
	}
}

// initialScan schedules every pre-existing PDF as if newly arrived, once
// it has passed stability confirmation, matching spec's start-up
// reconciliation rule.
func (s *Supervisor) initialScan(ctx context.Context, cfg *config.HotfolderConfig, db *debouncer) {
	entries, err := os.ReadDir(cfg.InputPath)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		db.trigger(filepath.Join(cfg.InputPath, e.Name()))
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// handleCandidate runs once a PDF candidate has gone quiet for the
// debounce window: it confirms size stability, resolves pairing, and
// enqueues (or buckets, for a strict unpaired input) the result.
func (s *Supervisor) handleCandidate(ctx context.Context, cfg *config.HotfolderConfig, pdfPath string) {
	basename := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	key := cfg.ID + "|" + basename

	s.locker.Lock(key)
	defer s.locker.Unlock(key)

	if !waitStable(ctx, pdfPath, s.DebounceWindow) {
		return
	}

	xmlPath := ""
	if cfg.ProcessPairs {
		candidate := filepath.Join(filepath.Dir(pdfPath), basename+".xml")
		deadline := time.Now().Add(s.PairingTimeout)
		for {
			if waitStable(ctx, candidate, s.DebounceWindow) {
				xmlPath = candidate
				break
			}
			if time.Now().After(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}

		if xmlPath == "" && cfg.StrictPairing {
			s.bucketUnpaired(cfg, pdfPath)
			return
		}
	}

	job := &queue.DocumentJob{
		ID:          uuid.NewString(),
		HotfolderID: cfg.ID,
		PDFPath:     pdfPath,
		XMLPath:     xmlPath,
		Status:      queue.StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		log.WithFields(log.Fields{"hotfolder": cfg.ID, "pdf": pdfPath, "error": err}).
			Error("hotfolder: failed to enqueue document")
	}
}

// StatusMessage reports the GUI collaborator's mandated status string:
// how many of the configured hotfolders are currently enabled (and thus
// watched) against the total configured, regardless of watcher
// start-up failures.
func (s *Supervisor) StatusMessage() string {
	total := 0
	active := 0
	for _, cfg := range s.Configs.List() {
		total++
		if cfg.Enabled {
			active++
		}
	}
	return fmt.Sprintf("%d von %d Hotfoldern aktiv", active, total)
}

func (s *Supervisor) bucketUnpaired(cfg *config.HotfolderConfig, pdfPath string) {
	varCtx, err := expr.NewVariableContext(pdfPath, cfg.InputPath, time.Now())
	if err != nil {
		log.WithFields(log.Fields{"pdf": pdfPath, "error": err}).
			Error("hotfolder: failed to build variable context for unpaired input")
		return
	}
	if err := s.Engine.BucketPaths(cfg, varCtx, pdfPath); err != nil {
		log.WithFields(log.Fields{"pdf": pdfPath, "error": err}).
			Error("hotfolder: failed to bucket unpaired input")
		return
	}
	log.WithFields(log.Fields{
		"kind": pipeline.UnpairedInput,
		"pdf":  pdfPath,
	}).Warn("hotfolder: bucketed unpaired input")
}
