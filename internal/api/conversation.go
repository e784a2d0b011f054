package api

import (
	"net/http"
	"strings"

	"github.com/querytalk/querytalk/internal/session"
)

type conversationResponse struct {
	SessionID         string         `json:"session_id"`
	Turns             []session.Turn `json:"turns"`
	ConversationCount int            `json:"conversation_count"`
}

func handleConversation(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("session"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "session id is required", false, nil)
		return
	}

	turns := deps.Sessions.History(sessionID)
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		SessionID:         sessionID,
		Turns:             turns,
		ConversationCount: deps.Sessions.Count(sessionID),
	})
}
