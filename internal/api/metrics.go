package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
)

// QueueStatus is a point-in-time snapshot of document jobs by status.
type QueueStatus struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// SystemMetrics is a lightweight process-health snapshot for the
// dashboard; the authoritative, scraped series live on /metrics.
type SystemMetrics struct {
	MemoryUsage   uint64 `json:"memory_usage"`
	NumGoroutines int    `json:"num_goroutines"`
}

// MetricsResponse is the dashboard summary payload.
type MetricsResponse struct {
	QueueStatus      QueueStatus   `json:"queue_status"`
	SystemMetrics    SystemMetrics `json:"system"`
	HotfolderStatus  string        `json:"hotfolder_status"`
	AsOf             time.Time     `json:"as_of"`
}

// HotfolderStatusProvider is the subset of *hotfolder.Supervisor the
// dashboard needs: the GUI collaborator's "N von M Hotfoldern aktiv"
// status line.
type HotfolderStatusProvider interface {
	StatusMessage() string
}

// MetricsHandler returns a queue-derived summary for the dashboard.
// The counters Prometheus scrapes (hotfolder_documents_processed_total,
// hotfolder_document_duration_seconds, ...) are recorded directly by
// internal/worker as jobs complete; this handler only reads current
// queue contents, it does not duplicate that bookkeeping.
func MetricsHandler(q queue.Queue, hfStatus HotfolderStatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		qs := QueueStatus{}

		jobs, err := q.ListJobs(c.Request.Context(), "", 1000)
		if err == nil {
			for _, job := range jobs {
				switch job.Status {
				case queue.StatusPending:
					qs.Pending++
				case queue.StatusProcessing:
					qs.Processing++
				case queue.StatusCompleted:
					qs.Completed++
				case queue.StatusFailed:
					qs.Failed++
				}
			}
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, MetricsResponse{
			QueueStatus: qs,
			SystemMetrics: SystemMetrics{
				MemoryUsage:   m.Alloc,
				NumGoroutines: runtime.NumGoroutine(),
			},
			HotfolderStatus: hfStatus.StatusMessage(),
			AsOf:            time.Now(),
		})
	}
}

// PrometheusHandler exposes the registered hotfolder_* series for scraping.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
