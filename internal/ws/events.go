package ws

import (
	"encoding/json"
	"fmt"
)

// Inbound event names (client -> server).
const (
	EvtJoinConversation    = "join-conversation"
	EvtLeaveConversation   = "leave-conversation"
	EvtSendMessage         = "send-message"
	EvtTypingStart         = "typing-start"
	EvtTypingStop          = "typing-stop"
	EvtMarkAsRead          = "mark-as-read"
	EvtChatRequestSent     = "chat-request-sent"
	EvtChatRequestAccepted = "chat-request-accepted"
	EvtChatRequestRejected = "chat-request-rejected"
	EvtGetOnlineUsers      = "get-online-users"
	EvtInviteToGroup       = "invite-to-group"
	EvtAcceptInvitation    = "accept-invitation"
	EvtDeclineInvitation   = "decline-invitation"
)

// Outbound event names (server -> client).
const (
	EvtUserOnline          = "user-online"
	EvtUserOffline         = "user-offline"
	EvtNewMessage          = "new-message"
	EvtMessageSent         = "message-sent"
	EvtMessageError        = "message-error"
	EvtUserTyping          = "user-typing"
	EvtUserStoppedTyping   = "user-stopped-typing"
	EvtMessagesRead        = "messages-read"
	EvtOnlineUsers         = "online-users"
	EvtNewChatRequest      = "new-chat-request"
	EvtNewInvitation       = "new-invitation"
	EvtInvitationDeclined  = "invitation-declined"
	EvtGroupCreated        = "group-created"
	EvtGroupUpdated        = "group-updated"
	EvtMemberJoined        = "member-joined"
	EvtConversationRefresh = "conversation-refresh"
	EvtConversationRemoved = "conversation-removed"
)

// Envelope is the wire framing for inbound events. Data is decoded into the
// event's payload type before dispatch; unknown events are rejected.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Payloads form a closed set of inbound event shapes. The authenticated user
// identity always comes from the connection, never from these fields.

type ConversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
}

type ChatRequestRoutePayload struct {
	ToUserID int64 `json:"to_user_id"`
}

type InviteToGroupPayload struct {
	ConversationID int64   `json:"conversation_id"`
	UserIDs        []int64 `json:"user_ids"`
}

type InvitationPayload struct {
	InvitationID string `json:"invitation_id"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("missing event data")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("malformed event data: %w", err)
	}
	return v, nil
}
