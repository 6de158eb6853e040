package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yscoder310/bext-chat-app-sub001/internal/config"
	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/security"
	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
	"github.com/yscoder310/bext-chat-app-sub001/internal/store/postgres"
	"github.com/yscoder310/bext-chat-app-sub001/internal/store/sqlite"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

// Repositories groups the persistence interfaces behind one driver choice.
type Repositories struct {
	Users         domain.UserRepository
	Conversations domain.ConversationRepository
	Messages      domain.MessageRepository
	Participants  domain.ParticipantRepository
	Invitations   domain.InvitationRepository
	ChatRequests  domain.ChatRequestRepository
}

// BuildRepositories picks the store implementation for the configured driver.
func BuildRepositories(cfg *config.Config, db *sql.DB) Repositories {
	if cfg.DBDriver == "postgres" {
		return Repositories{
			Users:         postgres.NewUserRepo(db),
			Conversations: postgres.NewConversationRepo(db),
			Messages:      postgres.NewMessageRepo(db),
			Participants:  postgres.NewParticipantRepo(db),
			Invitations:   postgres.NewInvitationRepo(db),
			ChatRequests:  postgres.NewChatRequestRepo(db),
		}
	}
	return Repositories{
		Users:         sqlite.NewUserRepo(db),
		Conversations: sqlite.NewConversationRepo(db),
		Messages:      sqlite.NewMessageRepo(db),
		Participants:  sqlite.NewParticipantRepo(db),
		Invitations:   sqlite.NewInvitationRepo(db),
		ChatRequests:  sqlite.NewChatRequestRepo(db),
	}
}

// Services groups the application services the routes dispatch to.
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Groups        *service.GroupService
	ChatRequests  *service.ChatRequestService
}

// BuildServices wires the service layer on top of the repositories.
func BuildServices(cfg *config.Config, repos Repositories, tokenSvc *security.TokenService, passwordHasher *security.PasswordHasher, encryptor *security.Encryptor) Services {
	tokenTTL := time.Duration(cfg.AccessTokenMinutes) * time.Minute
	rememberTTL := time.Duration(cfg.RememberMeDays) * 24 * time.Hour

	convSvc := service.NewConversationService(repos.Conversations, repos.Participants, repos.Messages)
	return Services{
		Auth:          service.NewAuthService(repos.Users, tokenSvc, passwordHasher, tokenTTL, rememberTTL),
		Users:         service.NewUserService(repos.Users),
		Conversations: convSvc,
		Messages:      service.NewMessageService(repos.Conversations, repos.Participants, repos.Messages, repos.Users, encryptor, cfg.MaxMessagesPerConversation),
		Groups:        service.NewGroupService(repos.Conversations, repos.Participants, repos.Invitations, repos.Users, cfg.DefaultGroupCapacity),
		ChatRequests:  service.NewChatRequestService(repos.ChatRequests, repos.Conversations, repos.Users, convSvc),
	}
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	repos Repositories,
	svcs Services,
	events *ws.Router,
	tokenSvc *security.TokenService,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authSvc := svcs.Auth
	userSvc := svcs.Users
	convSvc := svcs.Conversations
	msgSvc := svcs.Messages
	groupSvc := svcs.Groups
	requestSvc := svcs.ChatRequests

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"bext-chat API","version":"1.0.0"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, repos.Users))

			r.Post("/auth/logout", handleLogout(authSvc))
			r.Get("/auth/me", handleMe())

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/online", handleListOnlineUsers(userSvc, events))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			// Conversations and messages
			r.Route("/conversations", func(r chi.Router) {
				r.Post("/direct", handleCreateDirectConversation(convSvc))
				r.Get("/", handleListConversations(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Get("/{conversationID}/participants", handleListParticipants(convSvc))
				r.Get("/{conversationID}/unread", handleUnreadCount(convSvc))
				r.Post("/{conversationID}/read", handleMarkConversationRead(msgSvc, events))
				r.Get("/{conversationID}/messages", handleListMessages(msgSvc))
				r.Post("/{conversationID}/messages", handleCreateMessage(msgSvc, events))
			})

			// Group conversations
			r.Route("/groups", func(r chi.Router) {
				r.Post("/", handleCreateGroup(groupSvc, events))
				r.Get("/public", handleListPublicGroups(groupSvc))
				r.Post("/{conversationID}/join", handleJoinPublicGroup(groupSvc, events))
				r.Post("/{conversationID}/invite", handleInviteToGroup(groupSvc, events))
				r.Post("/{conversationID}/leave", handleLeaveGroup(groupSvc, events))
				r.Delete("/{conversationID}/members/{userID}", handleRemoveMember(groupSvc, events))
				r.Post("/{conversationID}/admins/{userID}", handlePromoteAdmin(groupSvc, events))
				r.Delete("/{conversationID}/admins/{userID}", handleDemoteAdmin(groupSvc, events))
				r.Patch("/{conversationID}/settings", handleUpdateGroupSettings(groupSvc, events))
			})

			// Group invitations
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", handleListInvitations(groupSvc))
				r.Post("/{invitationID}/accept", handleAcceptInvitation(groupSvc, events))
				r.Post("/{invitationID}/decline", handleDeclineInvitation(groupSvc, events))
			})

			// Chat requests
			r.Route("/chat-requests", func(r chi.Router) {
				r.Post("/", handleSendChatRequest(requestSvc, events))
				r.Get("/", handleListChatRequests(requestSvc))
				r.Post("/{requestID}/accept", handleAcceptChatRequest(requestSvc, events))
				r.Post("/{requestID}/reject", handleRejectChatRequest(requestSvc, events))
				r.Post("/{requestID}/cancel", handleCancelChatRequest(requestSvc))
			})

			// Uploads (implementation in separate file)
			r.Mount("/uploads", UploadRoutes(cfg))
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(events, tokenSvc, repos.Users, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps service and domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrDuplicateInvite),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyInContact),
		errors.Is(err, service.ErrInvitationClosed),
		errors.Is(err, service.ErrRequestClosed),
		errors.Is(err, service.ErrLastAdmin):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInternal):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
