package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
)

// Frame types sent by the server on /ws/chat.
const (
	frameChunk = "chunk"
	frameDone  = "done"
	frameError = "error"
)

type wsFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// handleChatWS streams replies for one session. Each client frame
// {"user_message": "..."} starts a turn; turns on one connection run one at
// a time. A failed turn sends an error frame and keeps the connection open.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_type")
	if !s.roster.Has(id) {
		writeError(w, http.StatusBadRequest, s.invalidSessionDetail(id))
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxJSONBody)

	ctx := observe.WithSession(r.Context(), id)
	log := observe.Logger(ctx)
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				log.Debug("websocket read ended", "error", err)
			}
			return
		}
		if req.UserMessage == nil {
			if err := wsjson.Write(ctx, conn, wsFrame{Type: frameError, Detail: "user_message is required"}); err != nil {
				return
			}
			continue
		}

		reply, err := s.conv.StreamTurn(ctx, id, *req.UserMessage, func(text string) error {
			return wsjson.Write(ctx, conn, wsFrame{Type: frameChunk, Text: text})
		})
		frame := wsFrame{Type: frameDone, Message: reply}
		if err != nil {
			_, detail := s.chatError(id, err)
			if strings.HasPrefix(detail, "Chat processing error") {
				log.Error("streamed turn failed", "error", err)
			}
			frame = wsFrame{Type: frameError, Detail: detail}
		}
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			return
		}
	}
}
