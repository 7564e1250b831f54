package worker

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/pipeline"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
)

var (
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotfolder_documents_processed_total",
			Help: "Total number of documents processed by the pipeline",
		},
		[]string{"status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hotfolder_document_duration_seconds",
			Help:    "Duration of a document's pipeline execution in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotfolder_active_workers",
			Help: "Number of active pipeline workers",
		},
	)

	queueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotfolder_queue_size",
			Help: "Number of documents waiting in the work queue",
		},
	)
)

// ConfigLookup is the subset of *config.Store the pool needs: resolving
// a job's hotfolder ID to the recipe the pipeline runs against.
type ConfigLookup interface {
	Get(id string) (*config.HotfolderConfig, bool)
}

// PipelineRunner is the subset of *pipeline.Engine the pool needs;
// accepting the interface rather than the concrete type lets tests swap
// in a controllable fake runner instead of executing a real pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, job *queue.DocumentJob, cfg *config.HotfolderConfig) *pipeline.Document
}

// FingerprintLocker gives per-key mutual exclusion keyed on a job's
// (hotfolder_id, basename) fingerprint. The same instance backs the
// hotfolder package's candidate-detection lock, so acquiring it here
// around a pipeline run composes with that package's lock/unlock around
// enqueue to guarantee at most one execution per fingerprint is ever
// in flight, end to end.
type FingerprintLocker interface {
	Lock(key string)
	Unlock(key string)
}

// Pool runs queued DocumentJobs through a PipelineRunner, one at a time
// per worker, any number of workers in parallel across distinct jobs —
// except for jobs sharing a fingerprint, which locker serialises.
type Pool struct {
	workerCount int
	queue       queue.Queue
	engine      PipelineRunner
	configs     ConfigLookup
	locker      FingerprintLocker
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewPool creates a worker pool of workerCount goroutines draining q,
// running each claimed job through engine against its hotfolder's
// config. locker must be the same instance the hotfolder supervisor
// uses to guard candidate detection, so fingerprint exclusion spans
// both phases.
func NewPool(workerCount int, q queue.Queue, engine PipelineRunner, configs ConfigLookup, locker FingerprintLocker) *Pool {
	return &Pool{
		workerCount: workerCount,
		queue:       q,
		engine:      engine,
		configs:     configs,
		locker:      locker,
		stopChan:    make(chan struct{}),
	}
}

// fingerprintKey mirrors the hotfolder package's (hotfolder_id,
// basename) key format exactly, so the same lock instance serialises
// both candidate detection and pipeline execution for one fingerprint.
func fingerprintKey(hotfolderID, pdfPath string) string {
	basename := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return hotfolderID + "|" + basename
}

// Start launches the worker goroutines and the queue-size monitor, and
// blocks until every worker has stopped.
func (p *Pool) Start(ctx context.Context) {
	log.Infof("worker: starting pool with %d workers", p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	go p.monitorQueue(ctx)

	p.wg.Wait()
	log.Info("worker: pool stopped")
}

// Stop signals all workers to exit after their current job and waits
// for them to drain.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log.Infof("worker %d: started", id)

	activeWorkers.Inc()
	defer activeWorkers.Dec()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if err == queue.ErrNoJobs {
				time.Sleep(1 * time.Second)
				continue
			}
			log.WithFields(log.Fields{"worker": id, "error": err}).Error("worker: failed to dequeue job")
			time.Sleep(5 * time.Second)
			continue
		}

		p.processJob(ctx, id, job)
	}
}

func (p *Pool) processJob(ctx context.Context, workerID int, job *queue.DocumentJob) {
	start := time.Now()
	job.Status = queue.StatusProcessing
	job.StartedAt = &start
	if err := p.queue.UpdateJob(job); err != nil {
		log.WithField("error", err).Error("worker: failed to mark job processing")
	}

	cfg, ok := p.configs.Get(job.HotfolderID)
	if !ok {
		p.failJob(job, "hotfolder config no longer exists", start)
		return
	}

	key := fingerprintKey(job.HotfolderID, job.PDFPath)
	p.locker.Lock(key)
	doc := p.engine.Run(ctx, job, cfg)
	p.locker.Unlock(key)

	now := time.Now()
	job.CompletedAt = &now
	job.Duration = now.Sub(start)

	status := "success"
	if doc.State != pipeline.StateDone {
		status = "failed"
		job.Status = queue.StatusFailed
		if doc.Err != nil {
			job.Error = doc.Err.Error()
		}
	} else {
		job.Status = queue.StatusCompleted
	}

	if err := p.queue.UpdateJob(job); err != nil {
		log.WithField("error", err).Error("worker: failed to update completed job")
	}

	jobsProcessed.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(job.Duration.Seconds())

	log.WithFields(log.Fields{
		"worker":   workerID,
		"job":      job.ID,
		"status":   status,
		"duration": job.Duration,
	}).Info("worker: document finished")
}

func (p *Pool) failJob(job *queue.DocumentJob, reason string, start time.Time) {
	now := time.Now()
	job.Status = queue.StatusFailed
	job.Error = reason
	job.CompletedAt = &now
	job.Duration = now.Sub(start)

	if err := p.queue.UpdateJob(job); err != nil {
		log.WithField("error", err).Error("worker: failed to update failed job")
	}
	jobsProcessed.WithLabelValues("failed").Inc()
	log.WithFields(log.Fields{"job": job.ID, "reason": reason}).Error("worker: job failed before running")
}

func (p *Pool) monitorQueue(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if size, err := p.queue.Size(); err == nil {
				queueSize.Set(float64(size))
			}
		}
	}
}
