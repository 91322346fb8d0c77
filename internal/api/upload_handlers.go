package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/picsapp/picsapp-server/internal/errors"
	"github.com/picsapp/picsapp-server/internal/http/response"
	"github.com/picsapp/picsapp-server/internal/store"
)

// uploadForm is validated after the multipart header is read.
type uploadForm struct {
	Filename string `form:"picture" validate:"required,max=255,basename"`
}

// handleUpload stores the raw picture and queues it for conversion.
// POST /api/upload (multipart, field "picture").
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.MaxUploadBytes
	if r.ContentLength > limit {
		response.HandleError(w, domainerrors.PayloadTooLarge(limit), s.logger)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.HandleError(w, domainerrors.PayloadTooLarge(limit), s.logger)
			return
		}
		response.BadRequest(w, "no picture uploaded, use the 'picture' field in a multipart form", s.logger)
		return
	}
	defer file.Close()

	if err := s.validator.Validate(uploadForm{Filename: header.Filename}); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	result, err := s.services.Gallery.Upload(r.Context(), header.Filename, file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.HandleError(w, domainerrors.PayloadTooLarge(limit), s.logger)
			return
		}
		s.logger.Error("upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		response.HandleError(w, err, s.logger)
		return
	}

	s.logger.Debug("upload accepted",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size),
		slog.Bool("duplicate", result == store.Duplicate),
	)

	response.Accepted(w, map[string]string{"status": "queued"}, s.logger)
}

// handleUploadedFile serves converted files flat out of the upload directory.
// Nested paths are refused so the raw-input subdirectory stays private.
// GET /uploads/{id}
func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		response.NotFound(w, "file not found", s.logger)
		return
	}

	path := filepath.Join(s.opts.UploadDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		response.NotFound(w, "file not found", s.logger)
		return
	}

	w.Header().Set("Cache-Control", CacheOneWeek)
	http.ServeFile(w, r, path)
}
