package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
)

// MessageSender is the slice of the message service the event layer needs.
type MessageSender interface {
	CreateMessage(ctx context.Context, in service.MessageCreateInput, senderID int64) (*domain.Message, error)
	ToResponse(ctx context.Context, m *domain.Message) (*service.MessageResponse, error)
	GetParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	MarkAllReadInConversation(ctx context.Context, conversationID, callerID int64) error
}

// GroupAPI is the slice of the group service the event layer needs.
type GroupAPI interface {
	AcceptInvitation(ctx context.Context, invitationID string, userID int64) (*service.MembershipChange, error)
	DeclineInvitation(ctx context.Context, invitationID string, userID int64) (*domain.Invitation, error)
}

// Router owns connection lifecycle and dispatches inbound events to the
// services, then fans results out through presence and rooms.
type Router struct {
	presence *Presence
	rooms    *Rooms
	typing   *Typing

	users    domain.UserRepository
	messages MessageSender
	groups   GroupAPI
}

func NewRouter(users domain.UserRepository, messages MessageSender, groups GroupAPI, sched Scheduler, typingWindow time.Duration) *Router {
	r := &Router{
		presence: NewPresence(),
		rooms:    NewRooms(),
		users:    users,
		messages: messages,
		groups:   groups,
	}
	r.typing = NewTyping(typingWindow, sched, r.notifyTyping)
	return r
}

func (r *Router) Presence() *Presence { return r.presence }

// HandleConnect registers the connection, joins the user's personal room
// and announces the user online. Online status is persisted on the first
// connection only.
func (r *Router) HandleConnect(ctx context.Context, c *Client) {
	first := r.presence.Register(c.UserID, c)
	r.rooms.Join(UserRoom(c.UserID), c)

	if first {
		if err := r.users.SetOnlineStatus(ctx, c.UserID, true); err != nil {
			log.Printf("websocket: persist online status for user %d: %v", c.UserID, err)
		}
	}
	r.broadcast(EvtUserOnline, presencePayload{UserID: c.UserID, Username: c.Username})
}

// HandleDisconnect tears the connection down. Typing indicators are cleared
// on every disconnect; the offline announcement waits for the user's last
// connection to go away.
func (r *Router) HandleDisconnect(ctx context.Context, c *Client) {
	r.typing.ClearAll(c.UserID)
	r.rooms.LeaveAll(c)
	last := r.presence.Unregister(c.UserID, c)
	if !last {
		return
	}

	if err := r.users.SetOnlineStatus(ctx, c.UserID, false); err != nil {
		log.Printf("websocket: persist offline status for user %d: %v", c.UserID, err)
	}
	r.broadcast(EvtUserOffline, presencePayload{UserID: c.UserID, Username: c.Username})
}

// Dispatch routes one inbound envelope. Errors never tear the connection
// down; they go back to the sending connection as message-error.
func (r *Router) Dispatch(ctx context.Context, c *Client, env Envelope) {
	var err error
	switch env.Event {
	case EvtJoinConversation:
		err = r.handleJoin(ctx, c, env.Data)
	case EvtLeaveConversation:
		err = r.handleLeave(c, env.Data)
	case EvtSendMessage:
		err = r.handleSendMessage(ctx, c, env.Data)
	case EvtTypingStart:
		err = r.handleTyping(ctx, c, env.Data, true)
	case EvtTypingStop:
		err = r.handleTyping(ctx, c, env.Data, false)
	case EvtMarkAsRead:
		err = r.handleMarkAsRead(ctx, c, env.Data)
	case EvtChatRequestSent:
		err = r.forwardToUser(c, env.Data, EvtNewChatRequest)
	case EvtChatRequestAccepted:
		err = r.forwardToUser(c, env.Data, EvtChatRequestAccepted)
	case EvtChatRequestRejected:
		err = r.forwardToUser(c, env.Data, EvtChatRequestRejected)
	case EvtGetOnlineUsers:
		c.Send(EvtOnlineUsers, r.presence.ListOnline())
	case EvtInviteToGroup:
		err = r.handleInviteToGroup(c, env.Data)
	case EvtAcceptInvitation:
		err = r.handleAcceptInvitation(ctx, c, env.Data)
	case EvtDeclineInvitation:
		err = r.handleDeclineInvitation(ctx, c, env.Data)
	default:
		r.sendError(c, "unknown event: "+env.Event)
		return
	}
	if err != nil {
		r.sendError(c, err.Error())
	}
}

type presencePayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type typingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

type readPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

type membershipPayload struct {
	ConversationID int64  `json:"conversation_id"`
	Action         string `json:"action"`
	ActorID        int64  `json:"actor_id"`
	AffectedID     int64  `json:"affected_id,omitempty"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type sentAck struct {
	Success bool                     `json:"success"`
	Message *service.MessageResponse `json:"message"`
}

func (r *Router) sendError(c *Client, msg string) {
	c.Send(EvtMessageError, errorPayload{Error: msg})
}

// broadcast sends an event to every live connection.
func (r *Router) broadcast(event string, data any) {
	for _, cl := range r.presence.AllClients() {
		cl.Send(event, data)
	}
}

func (r *Router) handleJoin(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decode[ConversationPayload](raw)
	if err != nil {
		return err
	}
	if err := r.requireParticipant(ctx, p.ConversationID, c.UserID); err != nil {
		return err
	}
	r.rooms.Join(ConversationRoom(p.ConversationID), c)
	return nil
}

func (r *Router) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ids, err := r.messages.GetParticipantIDs(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == userID {
			return nil
		}
	}
	return service.ErrNotParticipant
}

func (r *Router) handleLeave(c *Client, raw json.RawMessage) error {
	p, err := decode[ConversationPayload](raw)
	if err != nil {
		return err
	}
	r.rooms.Leave(ConversationRoom(p.ConversationID), c)
	return nil
}

// handleSendMessage persists the message, then delivers it to the union of
// the conversation room and every participant's personal room, deduplicated
// per connection. The sending connection gets a message-sent ack instead.
func (r *Router) handleSendMessage(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decode[SendMessagePayload](raw)
	if err != nil {
		return err
	}
	msg, err := r.messages.CreateMessage(ctx, service.MessageCreateInput{
		ConversationID: p.ConversationID,
		Content:        p.Content,
		MessageType:    p.MessageType,
	}, c.UserID)
	if err != nil {
		return err
	}
	resp, err := r.messages.ToResponse(ctx, msg)
	if err != nil {
		return err
	}

	participantIDs, err := r.messages.GetParticipantIDs(ctx, p.ConversationID)
	if err != nil {
		return err
	}

	delivered := make(map[*Client]struct{})
	deliver := func(clients []*Client) {
		for _, cl := range clients {
			if cl == c {
				continue
			}
			if _, ok := delivered[cl]; ok {
				continue
			}
			delivered[cl] = struct{}{}
			cl.Send(EvtNewMessage, resp)
		}
	}
	deliver(r.rooms.Clients(ConversationRoom(p.ConversationID)))
	for _, id := range participantIDs {
		deliver(r.rooms.Clients(UserRoom(id)))
	}

	c.Send(EvtMessageSent, sentAck{Success: true, Message: resp})
	return nil
}

func (r *Router) handleTyping(ctx context.Context, c *Client, raw json.RawMessage, start bool) error {
	p, err := decode[ConversationPayload](raw)
	if err != nil {
		return err
	}
	if err := r.requireParticipant(ctx, p.ConversationID, c.UserID); err != nil {
		return err
	}
	if start {
		r.typing.Start(p.ConversationID, c.UserID)
	} else {
		r.typing.Stop(p.ConversationID, c.UserID)
	}
	return nil
}

func (r *Router) notifyTyping(conversationID, userID int64, typing bool) {
	event := EvtUserTyping
	if !typing {
		event = EvtUserStoppedTyping
	}
	r.rooms.EmitExceptUser(ConversationRoom(conversationID), event, typingPayload{
		ConversationID: conversationID,
		UserID:         userID,
	}, userID)
}

func (r *Router) handleMarkAsRead(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decode[ConversationPayload](raw)
	if err != nil {
		return err
	}
	if err := r.messages.MarkAllReadInConversation(ctx, p.ConversationID, c.UserID); err != nil {
		return err
	}
	r.NotifyMessagesRead(p.ConversationID, c.UserID)
	return nil
}

// NotifyMessagesRead tells the other subscribed connections that the user
// caught up on the conversation.
func (r *Router) NotifyMessagesRead(conversationID, readerID int64) {
	r.rooms.EmitExceptUser(ConversationRoom(conversationID), EvtMessagesRead, readPayload{
		ConversationID: conversationID,
		UserID:         readerID,
	}, readerID)
}

// forwardToUser relays the payload untouched to the target user's live
// connections. Targets without a connection are skipped silently; pending
// state is persisted elsewhere and surfaces on their next fetch.
func (r *Router) forwardToUser(c *Client, raw json.RawMessage, outEvent string) error {
	p, err := decode[ChatRequestRoutePayload](raw)
	if err != nil {
		return err
	}
	for _, cl := range r.presence.ClientsFor(p.ToUserID) {
		cl.Send(outEvent, raw)
	}
	return nil
}

func (r *Router) handleInviteToGroup(c *Client, raw json.RawMessage) error {
	p, err := decode[InviteToGroupPayload](raw)
	if err != nil {
		return err
	}
	for _, id := range p.UserIDs {
		for _, cl := range r.presence.ClientsFor(id) {
			cl.Send(EvtNewInvitation, raw)
		}
	}
	return nil
}

func (r *Router) handleAcceptInvitation(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decode[InvitationPayload](raw)
	if err != nil {
		return err
	}
	change, err := r.groups.AcceptInvitation(ctx, p.InvitationID, c.UserID)
	if err != nil {
		return err
	}
	r.NotifyMembershipChange(change)
	return nil
}

func (r *Router) handleDeclineInvitation(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decode[InvitationPayload](raw)
	if err != nil {
		return err
	}
	inv, err := r.groups.DeclineInvitation(ctx, p.InvitationID, c.UserID)
	if err != nil {
		return err
	}
	for _, cl := range r.presence.ClientsFor(inv.InviterID) {
		cl.Send(EvtInvitationDeclined, inv)
	}
	return nil
}

// NotifyMembershipChange fans a membership change out. Users who lost
// membership are evicted from the conversation room and told to drop the
// conversation; everyone still in gets either the join announcement or a
// refresh hint, on their personal rooms so it reaches all their devices.
func (r *Router) NotifyMembershipChange(change *service.MembershipChange) {
	if change == nil {
		return
	}
	room := ConversationRoom(change.ConversationID)
	payload := membershipPayload{
		ConversationID: change.ConversationID,
		Action:         change.Action,
		ActorID:        change.ActorID,
		AffectedID:     change.AffectedID,
	}

	for _, id := range change.RemovedIDs {
		r.rooms.EvictUser(room, id)
		r.rooms.Emit(UserRoom(id), EvtConversationRemoved, payload, nil)
	}

	event := EvtConversationRefresh
	if change.Action == "member-joined" {
		event = EvtMemberJoined
	}
	for _, id := range change.RemainingIDs {
		r.rooms.Emit(UserRoom(id), event, payload, nil)
	}
}

// NotifyUser pushes an event to every live connection of one user.
func (r *Router) NotifyUser(userID int64, event string, data any) {
	for _, cl := range r.presence.ClientsFor(userID) {
		cl.Send(event, data)
	}
}

// NotifyNewMessage delivers a message created outside the websocket path,
// with the same union delivery the in-band path uses. The sender's own
// connections are skipped; the HTTP response is their copy.
func (r *Router) NotifyNewMessage(resp *service.MessageResponse, participantIDs []int64, senderID int64) {
	delivered := make(map[*Client]struct{})
	deliver := func(clients []*Client) {
		for _, cl := range clients {
			if cl.UserID == senderID {
				continue
			}
			if _, ok := delivered[cl]; ok {
				continue
			}
			delivered[cl] = struct{}{}
			cl.Send(EvtNewMessage, resp)
		}
	}
	deliver(r.rooms.Clients(ConversationRoom(resp.ConversationID)))
	for _, id := range participantIDs {
		deliver(r.rooms.Clients(UserRoom(id)))
	}
}

// NotifyGroupCreated tells each initial member to load the new group.
func (r *Router) NotifyGroupCreated(conv *domain.Conversation, memberIDs []int64) {
	for _, id := range memberIDs {
		r.rooms.Emit(UserRoom(id), EvtGroupCreated, conv, nil)
	}
}

// NotifyGroupUpdated pushes changed settings to current members.
func (r *Router) NotifyGroupUpdated(conv *domain.Conversation, memberIDs []int64) {
	for _, id := range memberIDs {
		r.rooms.Emit(UserRoom(id), EvtGroupUpdated, conv, nil)
	}
}
