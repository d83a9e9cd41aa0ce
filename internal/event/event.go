// Package event defines the wire-level events exchanged with chat clients.
// Every frame is a JSON envelope {"event": <name>, "data": {...}}.
package event

import (
	"encoding/json"
	"time"
)

// Inbound event names (client → server).
const (
	Join               = "join"
	ChatMessage        = "chat message"
	PrivateChatRequest = "private_chat_request"
	PrivateChatAccept  = "private_chat_accepted"
	PrivateChatReject  = "private_chat_rejected"
	PrivateChatEnd     = "private_chat_ended"
	PrivateMessage     = "private_message"
	Typing             = "typing"
	StopTyping         = "stop typing"
)

// Outbound event names (server → client).
const (
	Connected                    = "my response"
	JoinSuccessful               = "join successful"
	UsernameTaken                = "username taken"
	UserList                     = "user list"
	UserJoined                   = "user joined"
	PrivateChatRequestFailed     = "private_chat_request_failed"
	PrivateChatStarted           = "private_chat_started"
	PrivateChatAcceptFailed      = "private_chat_accept_failed"
	PrivateChatRejected          = "private_chat_rejected"
	PrivateChatEndedConfirmed    = "private_chat_ended_confirmed"
	PrivateChatEndedByOther      = "private_chat_ended_by_other"
	PrivateChatEndedByDisconnect = "private_chat_ended_by_disconnect"
	MissedPrivateMessage         = "missed_private_message"
	PrivateMessageSent           = "private_message_sent"
)

// Error codes carried by private_chat_request_failed and
// private_chat_accept_failed payloads.
const (
	ErrCodeYouAreBusy      = "you_are_busy"
	ErrCodeRecipientBusy   = "recipient_busy"
	ErrCodeUserOffline     = "user_offline"
	ErrCodeSessionConflict = "session_conflict"
	ErrCodeSenderOffline   = "sender_offline"
)

var inbound = map[string]struct{}{
	Join:               {},
	ChatMessage:        {},
	PrivateChatRequest: {},
	PrivateChatAccept:  {},
	PrivateChatReject:  {},
	PrivateChatEnd:     {},
	PrivateMessage:     {},
	Typing:             {},
	StopTyping:         {},
}

// Known reports whether name is a recognized inbound event.
func Known(name string) bool {
	_, ok := inbound[name]
	return ok
}

// Envelope is an outbound frame. Data is marshaled as-is at write time.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundEnvelope keeps the payload raw so each handler can decode and
// validate its own shape.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw inbound frame into its event name and raw payload.
func Decode(raw []byte) (string, json.RawMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	return env.Event, env.Data, nil
}

// Inbound payloads. Validation tags mirror the drop-on-invalid policy: an
// event failing these constraints is discarded with no side effect.

type JoinPayload struct {
	Username string `json:"username" validate:"required,max=64"`
}

type ChatMessagePayload struct {
	Username string `json:"username" validate:"required,max=64"`
	Message  string `json:"message" validate:"required,max=2000"`
}

type PrivateChatRequestPayload struct {
	RecipientUsername string `json:"recipient_username" validate:"required,max=64"`
}

type PrivateChatAcceptPayload struct {
	SenderUsername string `json:"sender_username" validate:"required,max=64"`
}

type PrivateChatRejectPayload struct {
	SenderUsername string `json:"sender_username" validate:"required,max=64"`
}

type PrivateMessagePayload struct {
	ReceiverUsername string `json:"receiver_username" validate:"required,max=64"`
	Message          string `json:"message" validate:"required,max=2000"`
}

// Outbound payloads.

type ConnectedPayload struct {
	Data string `json:"data"`
}

type UsernamePayload struct {
	Username string `json:"username"`
}

type UserListPayload struct {
	Users []string `json:"users"`
}

type ChatMessageBroadcast struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// PrivateChatRequestNotice tells a recipient who is proposing a chat.
type PrivateChatRequestNotice struct {
	SenderUsername string `json:"sender_username"`
}

// OtherUserPayload names the peer in private_chat_started and
// private_chat_ended_confirmed events.
type OtherUserPayload struct {
	OtherUser string `json:"other_user"`
}

type PrivateChatRejectedPayload struct {
	RecipientUsername string `json:"recipient_username"`
}

type PrivateChatEndedPayload struct {
	Username string `json:"username"`
}

type PrivateMessageDelivery struct {
	SenderUsername string    `json:"sender_username"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

type PrivateMessageSentPayload struct {
	RecipientUsername string    `json:"recipient_username"`
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
}
