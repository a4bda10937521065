package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/types"
)

// handleListProfiles handles GET /profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.ListProfiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, profiles)
}

// handleGetProfile handles GET /profiles/{id}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.profiles.GetProfile(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if profile == nil {
		s.writeError(w, r, types.NewNotFound("Profile", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// handleCreateProfile handles POST /profiles
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req types.CreateProfileRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.profiles.CreateProfile(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// handleUpdateProfile handles PUT /profiles/{id}
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateProfileRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.profiles.UpdateProfile(r.Context(), id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// handleDeleteProfile handles DELETE /profiles/{id}. The avatar file, if
// any, is removed after the row is gone.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, err := s.profiles.GetProfile(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if profile == nil {
		s.writeError(w, r, types.NewNotFound("Profile", id))
		return
	}

	if err := s.profiles.DeleteProfile(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if profile.AvatarPath != nil && s.media != nil {
		s.removeMedia(*profile.AvatarPath)
	}
	s.okResponse(w)
}

// handleUploadAvatar handles POST /profiles/{id}/avatar with a multipart
// "file" field. A previous avatar file is removed once the new one is stored.
func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.media == nil {
		s.writeError(w, r, errors.New("media storage is not configured"))
		return
	}

	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		s.writeError(w, r, &types.ValidationError{Field: "file", Message: "is required"})
		return
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to read avatar: %w", err))
		return
	}
	defer file.Close()

	path, err := s.media.Save(media.KindAvatar, header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	profile, previous, err := s.profiles.SetAvatar(r.Context(), id, path)
	if err != nil {
		s.removeMedia(path)
		s.writeError(w, r, err)
		return
	}
	if previous != nil && *previous != path {
		s.removeMedia(*previous)
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

// handleAddHobby handles POST /profiles/{id}/hobbies
func (s *Server) handleAddHobby(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.HobbyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	hobby, err := s.profiles.AddHobby(r.Context(), profileID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, hobby)
}

// handleDeleteHobby handles DELETE /profiles/{id}/hobbies/{hobby_id}
func (s *Server) handleDeleteHobby(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hobbyID, err := pathID(r, "hobby_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.profiles.DeleteHobby(r.Context(), profileID, hobbyID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.okResponse(w)
}

// handleAddNote handles POST /profiles/{id}/notes
func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.NoteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	note, err := s.profiles.AddNote(r.Context(), profileID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, note)
}

// handleUpdateNote handles PUT /profiles/{id}/notes/{note_id}
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	noteID, err := pathID(r, "note_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.NoteRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	note, err := s.profiles.UpdateNote(r.Context(), profileID, noteID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, note)
}

// handleDeleteNote handles DELETE /profiles/{id}/notes/{note_id}
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	noteID, err := pathID(r, "note_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.profiles.DeleteNote(r.Context(), profileID, noteID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.okResponse(w)
}

// handleListProgress handles GET /profiles/{id}/progress
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	progress, err := s.profiles.ListProgress(r.Context(), profileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleUpsertProgress handles PUT /profiles/{id}/progress
func (s *Server) handleUpsertProgress(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.ProgressRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	progress, err := s.profiles.UpsertProgress(r.Context(), profileID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleDeleteProgress handles DELETE /profiles/{id}/progress/{progress_id}
func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	profileID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	progressID, err := pathID(r, "progress_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.profiles.DeleteProgress(r.Context(), profileID, progressID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.okResponse(w)
}
