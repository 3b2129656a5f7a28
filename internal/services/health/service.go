package health

import (
	"time"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/shared/server/respond"
)

// Status is the health payload.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Service encapsulates health-related checks.
type Service struct {
	Now func() time.Time
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{Now: time.Now}
}

// Status reports liveness.
func (s *Service) Status() Status {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Status{Status: "ok", Timestamp: now().UTC()}
}

// RegisterRoutes attaches the health route to the router group.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		respond.OK(c, s.Status())
	})
}
