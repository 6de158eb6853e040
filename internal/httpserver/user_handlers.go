package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

func handleListUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.ListActive(r.Context(), 0, 100)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// handleListOnlineUsers answers from the live connection registry rather
// than the persisted flag; a crashed connection can leave the flag stale.
func handleListOnlineUsers(userSvc *service.UserService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		onlineIDs := events.Presence().ListOnline()
		online := make(map[int64]bool, len(onlineIDs))
		for _, id := range onlineIDs {
			online[id] = true
		}

		users, err := userSvc.ListOnline(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		filtered := users[:0]
		for _, u := range users {
			if online[u.ID] {
				filtered = append(filtered, u)
			}
		}
		writeJSON(w, http.StatusOK, filtered)
	}
}

func handleGetUser(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "userID")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		user, err := userSvc.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if user == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
