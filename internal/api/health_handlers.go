package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/picsapp/picsapp-server/internal/domain"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"queue":    s.checkQueue(ctx),
		"viewers":  s.checkViewers(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDatabase verifies the record store answers.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.services.Store == nil {
		return ComponentHealth{Status: "degraded", Message: "database not configured"}
	}

	start := time.Now()
	err := s.services.Store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database ping failed",
		}
	}
	return ComponentHealth{Status: "healthy", Latency: latency.String()}
}

// checkQueue reports the backlog. A readable queue is healthy however long it is.
func (s *Server) checkQueue(ctx context.Context) ComponentHealth {
	if s.services.Queue == nil {
		return ComponentHealth{Status: "degraded", Message: "queue not configured"}
	}

	stats, err := s.services.Queue.Stats(ctx)
	if err != nil {
		return ComponentHealth{Status: "unhealthy", Message: "queue stats unavailable"}
	}

	return ComponentHealth{
		Status: "healthy",
		Message: strconv.Itoa(stats[domain.TaskStatusPending]) + " pending, " +
			strconv.Itoa(stats[domain.TaskStatusProcessing]) + " processing",
	}
}

func (s *Server) checkViewers() ComponentHealth {
	if s.services.Viewers == nil {
		return ComponentHealth{Status: "degraded", Message: "hub not configured"}
	}
	return ComponentHealth{Status: "healthy", Message: formatViewerStatus(s.services.Viewers.Count())}
}

func formatViewerStatus(count int) string {
	switch count {
	case 0:
		return "no connected viewers"
	case 1:
		return "1 connected viewer"
	default:
		return strconv.Itoa(count) + " connected viewers"
	}
}
