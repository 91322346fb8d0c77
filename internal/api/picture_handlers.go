package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/picsapp/picsapp-server/internal/domain"
)

func (s *Server) registerPictureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPictures",
		Method:      http.MethodGet,
		Path:        "/api/pictures",
		Summary:     "List recent pictures",
		Description: "Returns the most recently created pictures, newest first",
		Tags:        []string{"Pictures"},
	}, s.handleListPictures)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPicture",
		Method:      http.MethodGet,
		Path:        "/api/pictures/{id}",
		Summary:     "Get picture",
		Description: "Returns a picture by ID",
		Tags:        []string{"Pictures"},
	}, s.handleGetPicture)

	huma.Register(s.api, huma.Operation{
		OperationID: "likePicture",
		Method:      http.MethodPost,
		Path:        "/api/pictures/{id}/like",
		Summary:     "Like picture",
		Description: "Adds one like and pushes the new ranking to every viewer",
		Tags:        []string{"Pictures"},
	}, s.handleLikePicture)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPresentation",
		Method:      http.MethodGet,
		Path:        "/api/presentation",
		Summary:     "Get ranking",
		Description: "Returns every picture ordered by likes, then by creation time",
		Tags:        []string{"Pictures"},
	}, s.handlePresentation)
}

// === DTOs ===

// PictureResponse contains picture data in API responses.
type PictureResponse struct {
	ID          string    `json:"id" doc:"Picture ID (stored file name)"`
	DisplayName string    `json:"display_name" doc:"Original upload name"`
	Locator     string    `json:"locator" doc:"URL of the converted file"`
	BlurHash    string    `json:"blur_hash,omitempty" doc:"BlurHash placeholder"`
	LikeCount   int64     `json:"like_count" doc:"Number of likes"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
}

// ListPicturesResponse contains a list of pictures.
type ListPicturesResponse struct {
	Pictures []PictureResponse `json:"pictures" doc:"Pictures"`
}

// ListPicturesInput contains parameters for listing recent pictures.
type ListPicturesInput struct {
	Limit int `query:"limit" default:"30" validate:"gte=1,lte=100" doc:"Maximum number of pictures (1-100)"`
}

// ListPicturesOutput wraps a picture list for Huma.
type ListPicturesOutput struct {
	Body ListPicturesResponse
}

// PictureIDInput identifies a picture by path.
type PictureIDInput struct {
	ID string `path:"id" doc:"Picture ID"`
}

// PictureOutput wraps the picture response for Huma.
type PictureOutput struct {
	Body PictureResponse
}

func toPictureResponse(item *domain.Item) PictureResponse {
	return PictureResponse{
		ID:          item.ID,
		DisplayName: item.DisplayName,
		Locator:     item.Locator,
		BlurHash:    item.BlurHash,
		LikeCount:   item.LikeCount,
		CreatedAt:   item.CreatedAt,
	}
}

func toPictureList(items []*domain.Item) ListPicturesResponse {
	pictures := make([]PictureResponse, 0, len(items))
	for _, item := range items {
		pictures = append(pictures, toPictureResponse(item))
	}
	return ListPicturesResponse{Pictures: pictures}
}

// === Handlers ===

func (s *Server) handleListPictures(ctx context.Context, input *ListPicturesInput) (*ListPicturesOutput, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, apiError(err)
	}

	items, err := s.services.Gallery.Recent(ctx, input.Limit)
	if err != nil {
		return nil, apiError(err)
	}

	return &ListPicturesOutput{Body: toPictureList(items)}, nil
}

func (s *Server) handleGetPicture(ctx context.Context, input *PictureIDInput) (*PictureOutput, error) {
	item, err := s.services.Gallery.GetItem(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &PictureOutput{Body: toPictureResponse(item)}, nil
}

func (s *Server) handleLikePicture(ctx context.Context, input *PictureIDInput) (*PictureOutput, error) {
	item, err := s.services.Gallery.Like(ctx, input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &PictureOutput{Body: toPictureResponse(item)}, nil
}

func (s *Server) handlePresentation(ctx context.Context, _ *struct{}) (*ListPicturesOutput, error) {
	items, err := s.services.Gallery.Ranked(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	return &ListPicturesOutput{Body: toPictureList(items)}, nil
}
