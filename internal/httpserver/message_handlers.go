package httpserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

type messageCreateRequest struct {
	Content     string  `json:"content"`
	MessageType string  `json:"message_type"`
	FilePath    *string `json:"file_path"`
}

func handleCreateMessage(msgSvc *service.MessageService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID, ok := conversationID(w, r)
		if !ok {
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, err := msgSvc.CreateMessage(r.Context(), service.MessageCreateInput{
			ConversationID: convID,
			Content:        req.Content,
			MessageType:    req.MessageType,
			FilePath:       req.FilePath,
		}, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		resp, err := msgSvc.ToResponse(r.Context(), msg)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		// push to connected participants; the HTTP response is the
		// sender's copy
		if ids, err := msgSvc.GetParticipantIDs(r.Context(), convID); err == nil {
			events.NotifyNewMessage(resp, ids, currentUser.ID)
		} else {
			log.Printf("message push for conversation %d: %v", convID, err)
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID, ok := conversationID(w, r)
		if !ok {
			return
		}

		msgs, err := msgSvc.ListMessages(r.Context(), convID, currentUser.ID, 0)
		if err != nil {
			writeError(w, err)
			return
		}

		responses, err := msgSvc.ToResponses(r.Context(), msgs)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, responses)
	}
}

func handleMarkConversationRead(msgSvc *service.MessageService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convID, ok := conversationID(w, r)
		if !ok {
			return
		}
		if err := msgSvc.MarkAllReadInConversation(r.Context(), convID, currentUser.ID); err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMessagesRead(convID, currentUser.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
