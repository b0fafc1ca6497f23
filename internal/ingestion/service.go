package ingestion

import (
	"time"

	"github.com/aevon-lab/segmentd/internal/core/storage"
	"github.com/gin-gonic/gin"
)

type Service struct {
	store            storage.EventLog
	maxBodySizeBytes int
	now              func() time.Time
}

func NewService(log storage.EventLog, maxBodySizeMB int) *Service {
	if log == nil {
		panic("ingestion: event log must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            log,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		now:              time.Now,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	// Canonical ingestion endpoint.
	r.POST("/v1/events", s.IngestHandler)

	// Backward-compatible alias. Can be removed after clients migrate.
	r.POST("/v1/ingest", s.IngestHandler)
}
