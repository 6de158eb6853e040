package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

type groupCreateRequest struct {
	Name             string  `json:"name"`
	MemberIDs        []int64 `json:"member_ids"`
	MaxMembers       int     `json:"max_members"`
	IsPublic         bool    `json:"is_public"`
	OnlyAdminsInvite bool    `json:"only_admins_invite"`
}

func handleCreateGroup(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		conv, err := groupSvc.CreateGroup(r.Context(), service.GroupCreateInput{
			Name:             req.Name,
			MemberIDs:        req.MemberIDs,
			MaxMembers:       req.MaxMembers,
			IsPublic:         req.IsPublic,
			OnlyAdminsInvite: req.OnlyAdminsInvite,
		}, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		if ids, err := groupSvc.MemberIDs(r.Context(), conv.ID); err == nil {
			events.NotifyGroupCreated(conv, ids)
		} else {
			log.Printf("group created push for conversation %d: %v", conv.ID, err)
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleListPublicGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		groups, err := groupSvc.ListPublicGroups(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleJoinPublicGroup(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		change, err := groupSvc.JoinPublicGroup(r.Context(), convID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

type groupInviteRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

func handleInviteToGroup(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		var req groupInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		invs, err := groupSvc.Invite(r.Context(), convID, currentUser.ID, req.UserIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, inv := range invs {
			events.NotifyUser(inv.InviteeID, ws.EvtNewInvitation, inv)
		}
		writeJSON(w, http.StatusCreated, invs)
	}
}

func handleLeaveGroup(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		change, err := groupSvc.Leave(r.Context(), convID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

func handleRemoveMember(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		change, err := groupSvc.RemoveParticipant(r.Context(), convID, currentUser.ID, targetID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

func handlePromoteAdmin(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		change, err := groupSvc.PromoteAdmin(r.Context(), convID, currentUser.ID, targetID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

func handleDemoteAdmin(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}
		change, err := groupSvc.DemoteAdmin(r.Context(), convID, currentUser.ID, targetID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

type groupSettingsRequest struct {
	Name             *string `json:"name"`
	MaxMembers       *int    `json:"max_members"`
	IsPublic         *bool   `json:"is_public"`
	OnlyAdminsInvite *bool   `json:"only_admins_invite"`
	IsArchived       *bool   `json:"is_archived"`
}

func handleUpdateGroupSettings(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
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
		var req groupSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		conv, err := groupSvc.UpdateSettings(r.Context(), convID, currentUser.ID, domain.GroupSettings{
			Name:             req.Name,
			MaxMembers:       req.MaxMembers,
			IsPublic:         req.IsPublic,
			OnlyAdminsInvite: req.OnlyAdminsInvite,
			IsArchived:       req.IsArchived,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		if ids, err := groupSvc.MemberIDs(r.Context(), convID); err == nil {
			events.NotifyGroupUpdated(conv, ids)
		} else {
			log.Printf("group settings push for conversation %d: %v", convID, err)
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func handleListInvitations(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		invs, err := groupSvc.ListPendingInvitations(r.Context(), currentUser.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, invs)
	}
}

func handleAcceptInvitation(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		invitationID := chi.URLParam(r, "invitationID")
		change, err := groupSvc.AcceptInvitation(r.Context(), invitationID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyMembershipChange(change)
		writeJSON(w, http.StatusOK, change)
	}
}

func handleDeclineInvitation(groupSvc *service.GroupService, events *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		invitationID := chi.URLParam(r, "invitationID")
		inv, err := groupSvc.DeclineInvitation(r.Context(), invitationID, currentUser.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		events.NotifyUser(inv.InviterID, ws.EvtInvitationDeclined, inv)
		writeJSON(w, http.StatusOK, inv)
	}
}
