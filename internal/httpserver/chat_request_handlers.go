package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

type chatRequestSendRequest struct {
	ToUserID int64   `json:"to_user_id"`
	Message  *string `json:"message"`
}

func handleSendChatRequest(requestSvc *service.ChatRequestService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req chatRequestSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		created, err := requestSvc.Send(r.Context(), currentUser.ID, req.ToUserID, req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyUser(created.ToUserID, ws.EvtNewChatRequest, created)
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleListChatRequests(requestSvc *service.ChatRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		requests, err := requestSvc.ListPending(r.Context(), currentUser.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, requests)
	}
}

func handleAcceptChatRequest(requestSvc *service.ChatRequestService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		requestID := chi.URLParam(r, "requestID")
		req, conv, err := requestSvc.Accept(r.Context(), requestID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyUser(req.FromUserID, ws.EvtChatRequestAccepted, map[string]any{
			"request":      req,
			"conversation": conv,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"request":      req,
			"conversation": conv,
		})
	}
}

func handleRejectChatRequest(requestSvc *service.ChatRequestService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		requestID := chi.URLParam(r, "requestID")
		req, err := requestSvc.Reject(r.Context(), requestID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyUser(req.FromUserID, ws.EvtChatRequestRejected, req)
		writeJSON(w, http.StatusOK, req)
	}
}

func handleCancelChatRequest(requestSvc *service.ChatRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		requestID := chi.URLParam(r, "requestID")
		req, err := requestSvc.Cancel(r.Context(), requestID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
