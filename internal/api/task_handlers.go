package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks",
		Summary:     "List conversion tasks",
		Description: "Returns conversion tasks oldest first, optionally filtered by status",
		Tags:        []string{"Tasks"},
	}, s.handleListTasks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTaskStats",
		Method:      http.MethodGet,
		Path:        "/api/tasks/stats",
		Summary:     "Task counts",
		Description: "Returns the number of conversion tasks in each status",
		Tags:        []string{"Tasks"},
	}, s.handleTaskStats)
}

// === DTOs ===

// TaskResponse contains conversion task data in API responses.
type TaskResponse struct {
	ID           int64     `json:"id" doc:"Task ID"`
	SourceName   string    `json:"source_name" doc:"Original upload name"`
	TargetItemID string    `json:"target_item_id,omitempty" doc:"Picture being re-converted, if any"`
	Status       string    `json:"status" doc:"pending, processing, completed or failed"`
	ErrorMessage string    `json:"error_message,omitempty" doc:"Failure reason"`
	CreatedAt    time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt    time.Time `json:"updated_at" doc:"Last status change"`
}

// ListTasksInput contains parameters for listing tasks.
type ListTasksInput struct {
	Status string `query:"status" validate:"omitempty,task_status" doc:"Only tasks in this status"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000" doc:"Maximum number of tasks (1-1000)"`
}

// ListTasksResponse contains a list of tasks.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks" doc:"Tasks"`
}

// ListTasksOutput wraps the task list for Huma.
type ListTasksOutput struct {
	Body ListTasksResponse
}

// TaskStatsResponse contains task counts by status.
type TaskStatsResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// TaskStatsOutput wraps the stats response for Huma.
type TaskStatsOutput struct {
	Body TaskStatsResponse
}

func toTaskResponse(task *domain.ConversionTask) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		SourceName:   task.SourceName,
		TargetItemID: task.TargetItemID.OrElse(""),
		Status:       string(task.Status),
		ErrorMessage: task.ErrorMessage.OrElse(""),
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}

// === Handlers ===

func (s *Server) handleListTasks(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, apiError(err)
	}

	filter := store.TaskFilter{Limit: input.Limit}
	if input.Status != "" {
		filter.Statuses = []domain.TaskStatus{domain.TaskStatus(input.Status)}
	}

	tasks, err := s.services.Queue.List(ctx, filter)
	if err != nil {
		return nil, apiError(err)
	}

	resp := ListTasksResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(task))
	}
	return &ListTasksOutput{Body: resp}, nil
}

func (s *Server) handleTaskStats(ctx context.Context, _ *struct{}) (*TaskStatsOutput, error) {
	stats, err := s.services.Queue.Stats(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	resp := TaskStatsResponse{
		Pending:    stats[domain.TaskStatusPending],
		Processing: stats[domain.TaskStatusProcessing],
		Completed:  stats[domain.TaskStatusCompleted],
		Failed:     stats[domain.TaskStatusFailed],
	}
	resp.Total = resp.Pending + resp.Processing + resp.Completed + resp.Failed
	return &TaskStatsOutput{Body: resp}, nil
}
