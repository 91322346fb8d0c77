package validation_test

import (
	"net/http"
	"testing"

	domainerrors "github.com/picsapp/picsapp-server/internal/errors"
	"github.com/picsapp/picsapp-server/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Limit  int    `query:"limit" validate:"gte=1,lte=100"`
	Status string `json:"status,omitempty" validate:"omitempty,task_status"`
}

type uploadRequest struct {
	Filename string `form:"picture" validate:"required,max=255,basename"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(listRequest{Limit: 30}))
	assert.NoError(t, v.Validate(listRequest{Limit: 100, Status: "failed"}))
	assert.NoError(t, v.Validate(uploadRequest{Filename: "cat.png"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       any
		wantField string
		wantMsg   string
	}{
		{
			name:      "limit too small",
			req:       listRequest{Limit: 0},
			wantField: "limit",
			wantMsg:   "must be greater than or equal to 1",
		},
		{
			name:      "limit too large",
			req:       listRequest{Limit: 101},
			wantField: "limit",
			wantMsg:   "must be less than or equal to 100",
		},
		{
			name:      "unknown status",
			req:       listRequest{Limit: 10, Status: "done"},
			wantField: "status",
			wantMsg:   "must be one of: pending processing completed failed",
		},
		{
			name:      "missing filename",
			req:       uploadRequest{},
			wantField: "picture",
			wantMsg:   "is required",
		},
		{
			name:      "path traversal",
			req:       uploadRequest{Filename: "../../etc/passwd"},
			wantField: "picture",
			wantMsg:   "must be a plain file name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("status", "pending", "task_status"))

	err := v.Var("status", "archived", "task_status")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Details, "status")
}

func TestValidator_BaseName(t *testing.T) {
	v := validation.New()

	for _, name := range []string{"a.jpg", "photo 1.HEIC", "noext"} {
		assert.NoError(t, v.Var("name", name, "basename"), name)
	}
	for _, name := range []string{".", "..", "dir/a.jpg", `dir\a.jpg`, "/abs.png"} {
		assert.Error(t, v.Var("name", name, "basename"), name)
	}
}
