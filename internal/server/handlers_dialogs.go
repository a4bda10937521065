package server

import (
	"net/http"

	"github.com/jonathan/story-manager/internal/types"
)

// handleListOpeners handles GET /dialogs/openers
func (s *Server) handleListOpeners(w http.ResponseWriter, r *http.Request) {
	openers, err := s.dialogs.ListOpeners(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, openers)
}

// handleGetOpener handles GET /dialogs/openers/{id}
func (s *Server) handleGetOpener(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opener, err := s.dialogs.GetOpener(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if opener == nil {
		s.writeError(w, r, types.NewNotFound("Opener", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, opener)
}

// handleCreateOpener handles POST /dialogs/openers
func (s *Server) handleCreateOpener(w http.ResponseWriter, r *http.Request) {
	var req types.CreateOpenerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	opener, err := s.dialogs.CreateOpener(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, opener)
}

// handleUpdateOpener handles PUT /dialogs/openers/{id}
func (s *Server) handleUpdateOpener(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateOpenerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	opener, err := s.dialogs.UpdateOpener(r.Context(), id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, opener)
}

// handleDeleteOpener handles DELETE /dialogs/openers/{id}
func (s *Server) handleDeleteOpener(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.dialogs.DeleteOpener(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.okResponse(w)
}

// handleAddOption handles POST /dialogs/openers/{id}/options
func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	openerID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.CreateOptionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	opt, err := s.dialogs.AddOption(r.Context(), openerID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, opt)
}

// handleUpdateOption handles PUT /dialogs/openers/{id}/options/{option_id}
func (s *Server) handleUpdateOption(w http.ResponseWriter, r *http.Request) {
	openerID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	optionID, err := pathID(r, "option_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateOptionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	opt, err := s.dialogs.UpdateOption(r.Context(), openerID, optionID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, opt)
}

// handleDeleteOption handles DELETE /dialogs/openers/{id}/options/{option_id}
func (s *Server) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	openerID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	optionID, err := pathID(r, "option_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.dialogs.DeleteOption(r.Context(), openerID, optionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.okResponse(w)
}
