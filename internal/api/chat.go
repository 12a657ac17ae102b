package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent/orchestrator"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
)

type chatRequest struct {
	UserMessage *string `json:"user_message"`
}

type editRequest struct {
	SectionID      *string `json:"section_id"`
	UpdatedMessage *string `json:"updated_message"`
}

type expertView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
	Turns   int      `json:"turns"`
}

type historyView struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_type")
	if !s.roster.Has(id) {
		writeError(w, http.StatusBadRequest, s.invalidSessionDetail(id))
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserMessage == nil {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}

	ctx := observe.WithSession(r.Context(), id)
	reply, err := s.conv.HandleTurn(ctx, id, *req.UserMessage)
	if err != nil {
		status, detail := s.chatError(id, err)
		if status >= http.StatusInternalServerError {
			observe.Logger(ctx).Error("chat turn failed", "error", err)
		}
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: reply})
}

// chatError maps an orchestrator error to a status and client detail.
func (s *Server) chatError(id string, err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownSession):
		return http.StatusBadRequest, s.invalidSessionDetail(id)
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		return http.StatusBadRequest, "user_message must not be empty"
	}
	cause := err
	var te *orchestrator.TurnError
	if errors.As(err, &te) {
		cause = te.Cause()
	}
	return http.StatusInternalServerError, "Chat processing error: " + cause.Error()
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SectionID == nil || req.UpdatedMessage == nil {
		writeError(w, http.StatusBadRequest, "section_id and updated_message are required")
		return
	}
	id := *req.SectionID

	ctx := observe.WithSession(r.Context(), id)
	turn, err := s.conv.EditLastAssistantTurn(ctx, id, *req.UpdatedMessage)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageBody{Message: "Message updated to: " + turn.Content})
	case errors.Is(err, orchestrator.ErrUnknownSession), errors.Is(err, session.ErrSectionNotFound):
		writeError(w, http.StatusBadRequest, "Section ID '"+id+"' not found in chat store.")
	case errors.Is(err, session.ErrNoEditableMessage):
		writeError(w, http.StatusBadRequest, "No AI message found to edit in the specified section.")
	default:
		observe.Logger(ctx).Error("edit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Edit failed: "+err.Error())
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	experts := s.roster.Experts()
	out := make([]expertView, 0, len(experts))
	for _, e := range experts {
		parents := e.Parents
		if parents == nil {
			parents = []string{}
		}
		out = append(out, expertView{
			ID:      e.ID,
			Name:    e.DisplayName,
			Parents: parents,
			Turns:   s.history.Len(e.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_type")
	if !s.roster.Has(id) {
		writeError(w, http.StatusBadRequest, s.invalidSessionDetail(id))
		return
	}
	turns := s.history.View(id)
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, historyView{SessionID: id, Turns: turns})
}
