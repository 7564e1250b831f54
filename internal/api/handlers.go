package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
)

// HotfolderResponse is the wire shape returned for one hotfolder config.
type HotfolderResponse struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Enabled             bool                `json:"enabled"`
	InputPath           string              `json:"input_path"`
	ErrorPathExpression string              `json:"error_path_expression"`
	Actions             []config.ActionKind `json:"actions"`
	ProcessPairs        bool                `json:"process_pairs"`
	StrictPairing       bool                `json:"strict_pairing"`
}

func toHotfolderResponse(c *config.HotfolderConfig) HotfolderResponse {
	return HotfolderResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Description:         c.Description,
		Enabled:             c.Enabled,
		InputPath:           c.InputPath,
		ErrorPathExpression: c.ErrorPathExpression,
		Actions:             c.Actions,
		ProcessPairs:        c.ProcessPairs,
		StrictPairing:       c.StrictPairing,
	}
}

// ListHotfolders lists every configured hotfolder.
func ListHotfolders(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		configs := store.List()
		responses := make([]HotfolderResponse, 0, len(configs))
		for _, cfg := range configs {
			responses = append(responses, toHotfolderResponse(cfg))
		}
		c.JSON(http.StatusOK, gin.H{"hotfolders": responses, "count": len(responses)})
	}
}

// GetHotfolder fetches a single hotfolder config by ID.
func GetHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, ok := store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "hotfolder not found"})
			return
		}
		c.JSON(http.StatusOK, toHotfolderResponse(cfg))
	}
}

// CreateHotfolder creates a new hotfolder config, rejecting the request
// if it is submitted enabled without a license or with a claimed path.
func CreateHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg config.HotfolderConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created, err := store.Create(&cfg)
		if err != nil {
			writeConfigError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toHotfolderResponse(created))
	}
}

// UpdateHotfolder replaces an existing hotfolder config's fields.
func UpdateHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg config.HotfolderConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg.ID = c.Param("id")

		if err := store.Update(&cfg); err != nil {
			writeConfigError(c, err)
			return
		}
		c.JSON(http.StatusOK, toHotfolderResponse(&cfg))
	}
}

// DeleteHotfolder removes a hotfolder config.
func DeleteHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "hotfolder deleted"})
	}
}

// ExportHotfolder returns one hotfolder config for transplant elsewhere.
func ExportHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := store.Export(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// ImportHotfolder loads an exported config body, assigning it a fresh ID
// and leaving it disabled regardless of the body's own enabled flag.
func ImportHotfolder(store *config.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg config.HotfolderConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		imported, err := store.Import(&cfg)
		if err != nil {
			writeConfigError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toHotfolderResponse(imported))
	}
}

func writeConfigError(c *gin.Context, err error) {
	switch err.(type) {
	case *config.ErrInputPathTaken:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if err == config.ErrUnlicensed {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// DocumentJobResponse is the wire shape for one queued/processed document.
type DocumentJobResponse struct {
	ID          string     `json:"id"`
	HotfolderID string     `json:"hotfolder_id"`
	PDFPath     string     `json:"pdf_path"`
	XMLPath     string     `json:"xml_path,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func toJobResponse(job *queue.DocumentJob) DocumentJobResponse {
	resp := DocumentJobResponse{
		ID:          job.ID,
		HotfolderID: job.HotfolderID,
		PDFPath:     job.PDFPath,
		XMLPath:     job.XMLPath,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.Error,
	}
	if job.Duration > 0 {
		resp.Duration = job.Duration.String()
	}
	return resp
}

// GetDocumentStatus retrieves one queued document's current status.
func GetDocumentStatus(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := q.GetJob(c, c.Param("id"))
		if err != nil {
			if err == queue.ErrJobNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "document job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toJobResponse(job))
	}
}

// ListDocumentJobs lists queued/processed documents, optionally filtered
// by status.
func ListDocumentJobs(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		jobs, err := q.ListJobs(c, status, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		responses := make([]DocumentJobResponse, 0, len(jobs))
		for _, job := range jobs {
			responses = append(responses, toJobResponse(job))
		}
		c.JSON(http.StatusOK, gin.H{"jobs": responses, "count": len(responses)})
	}
}

// CancelDocumentJob cancels a pending document job.
func CancelDocumentJob(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := q.CancelJob(c, c.Param("id")); err != nil {
			if err == queue.ErrJobNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "document job not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
	}
}
