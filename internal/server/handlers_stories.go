package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/story"
	"github.com/jonathan/story-manager/internal/types"
)

// handleListStories handles GET /stories
func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.stories.ListStories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stories)
}

// handleGetStory handles GET /stories/{id}
func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.stories.GetStory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// handleCreateStory handles POST /stories
func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req types.CreateStoryRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.stories.CreateStory(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// handleUpdateStory handles PUT /stories/{id}
func (s *Server) handleUpdateStory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateStoryRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.stories.UpdateStory(r.Context(), id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// handleDeleteStory handles DELETE /stories/{id}
func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	removed, err := s.stories.DeleteStory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.removeAudio(r.Context(), removed...)
	s.okResponse(w)
}

// handleAddLanguage handles POST /stories/{id}/languages. The body is either
// JSON or a multipart form whose optional audio_file becomes the content of
// an audio entry.
func (s *Server) handleAddLanguage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		req      *types.AddLanguageRequest
		uploaded string
	)
	if isMultipart(r) {
		req, uploaded, err = s.parseLanguageForm(w, r)
	} else {
		req = &types.AddLanguageRequest{}
		err = s.decodeJSON(w, r, req)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.stories.AddLanguageContent(r.Context(), id, req)
	if err != nil {
		if uploaded != "" {
			s.removeMedia(uploaded)
		}
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// parseLanguageForm reads an AddLanguageRequest from a multipart form and
// stores an attached audio file. It returns the stored media path, if any.
func (s *Server) parseLanguageForm(w http.ResponseWriter, r *http.Request) (*types.AddLanguageRequest, string, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return nil, "", err
	}

	req := &types.AddLanguageRequest{
		Language: r.FormValue("language"),
		Format:   r.FormValue("format"),
		Content:  r.FormValue("content"),
	}

	file, header, err := r.FormFile("audio_file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}
	defer file.Close()

	if !strings.EqualFold(strings.TrimSpace(req.Format), types.FormatAudio) {
		return nil, "", &types.ValidationError{Field: "audio_file", Message: "is only accepted with format audio"}
	}
	if s.media == nil {
		return nil, "", errors.New("media storage is not configured")
	}

	path, err := s.media.Save(media.KindAudio, header.Filename, file)
	if err != nil {
		return nil, "", err
	}
	req.Content = path
	return req, path, nil
}

// handleDeleteLanguage handles DELETE /stories/{id}/languages/{code}
func (s *Server) handleDeleteLanguage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	code := types.NormalizeLanguageCode(r.PathValue("code"))
	removed, err := s.stories.DeleteLanguage(r.Context(), id, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.removeAudio(r.Context(), removed...)
	s.okResponse(w)
}

// handleDeleteLanguageFormat handles
// DELETE /stories/{id}/languages/{code}/formats/{format_id}
func (s *Server) handleDeleteLanguageFormat(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	formatID, err := pathID(r, "format_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	code := types.NormalizeLanguageCode(r.PathValue("code"))
	st, removed, err := s.stories.DeleteLanguageFormat(r.Context(), id, code, formatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if removed != nil {
		s.removeAudio(r.Context(), *removed)
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// handleListFormats handles GET /formats
func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	formats, err := s.stories.ListFormats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, formats)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart parses a size-limited multipart body
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		return &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &types.ValidationError{Field: "body", Message: fmt.Sprintf("invalid multipart form: %v", err)}
	}
	return nil
}

// removeAudio deletes the stored files behind removed audio contents. Text
// contents are left alone even when they look like a media path.
func (s *Server) removeAudio(ctx context.Context, contents ...story.Content) {
	if s.media == nil || len(contents) == 0 {
		return
	}
	formats, err := s.stories.ListFormats(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve audio format for media cleanup", zap.Error(err))
		return
	}
	var audioID int64
	for _, f := range formats {
		if f.Type == types.FormatAudio {
			audioID = f.ID
		}
	}
	for _, c := range contents {
		if c.FormatID == audioID && media.IsStored(media.KindAudio, c.Content) {
			s.removeMedia(c.Content)
		}
	}
}

func (s *Server) removeMedia(path string) {
	if err := s.media.Remove(path); err != nil {
		s.logger.Warn("failed to remove media file", zap.String("path", path), zap.Error(err))
	}
}
