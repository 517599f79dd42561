package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripwell/backoffice/internal/models"
)

// EventType names every frame the live protocol carries, in both
// directions.
type EventType string

const (
	// Inbound
	EvAuthenticate        EventType = "authenticate"
	EvJoinRoom            EventType = "join_room"
	EvLeaveRoom           EventType = "leave_room"
	EvSendMessage         EventType = "send_message"
	EvTyping              EventType = "typing"
	EvMarkMessageRead     EventType = "mark_message_read"
	EvJoinAllParticipants EventType = "join_all_participants_to_room"

	// Outbound
	EvAuthenticated           EventType = "authenticated"
	EvRoomJoined              EventType = "room_joined"
	EvRoomLeft                EventType = "room_left"
	EvUserOnline              EventType = "user_online"
	EvUserOffline             EventType = "user_offline"
	EvUserJoinedRoom          EventType = "user_joined_room"
	EvUserLeftRoom            EventType = "user_left_room"
	EvNewMessage              EventType = "new_message"
	EvMessageSent             EventType = "message_sent"
	EvUserTyping              EventType = "user_typing"
	EvMessageRead             EventType = "message_read"
	EvMessageMarkedRead       EventType = "message_marked_read"
	EvRoomCreated             EventType = "room_created"
	EvRoomParticipantsUpdated EventType = "room_participants_updated"
	EvError                   EventType = "error"
)

// Frame is the wire envelope: an event name plus its payload.
type Frame struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Command is an inbound frame decoded into one concrete variant. The
// transport decodes exactly once; everything past the boundary is typed.
type Command interface {
	isCommand()
}

type AuthenticateCmd struct {
	// UserID is carried for wire compatibility but the transport layer
	// overrides it with the session-validated identity.
	UserID uuid.UUID `json:"userId"`
}

type JoinRoomCmd struct {
	RoomID uuid.UUID `json:"roomId"`
}

type LeaveRoomCmd struct {
	RoomID uuid.UUID `json:"roomId"`
}

type AttachmentInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind,omitempty"`
	Size *int64 `json:"size,omitempty"`
}

type SendMessageCmd struct {
	RoomID      uuid.UUID         `json:"roomId"`
	Content     string            `json:"content"`
	MessageType string            `json:"messageType,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type TypingCmd struct {
	RoomID   uuid.UUID `json:"roomId"`
	IsTyping bool      `json:"isTyping"`
}

type MarkReadCmd struct {
	MessageID uuid.UUID `json:"messageId"`
}

type JoinAllParticipantsCmd struct {
	RoomID uuid.UUID `json:"roomId"`
}

func (AuthenticateCmd) isCommand()        {}
func (JoinRoomCmd) isCommand()            {}
func (LeaveRoomCmd) isCommand()           {}
func (SendMessageCmd) isCommand()         {}
func (TypingCmd) isCommand()              {}
func (MarkReadCmd) isCommand()            {}
func (JoinAllParticipantsCmd) isCommand() {}

// DecodeCommand turns a raw inbound frame into its typed command.
func DecodeCommand(raw []byte) (Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	decode := func(v Command) (Command, error) {
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, v); err != nil {
				return nil, fmt.Errorf("%w: bad %s payload: %v", ErrInvalidEvent, frame.Type, err)
			}
		}
		return v, nil
	}

	switch frame.Type {
	case EvAuthenticate:
		return decode(&AuthenticateCmd{})
	case EvJoinRoom:
		return decode(&JoinRoomCmd{})
	case EvLeaveRoom:
		return decode(&LeaveRoomCmd{})
	case EvSendMessage:
		return decode(&SendMessageCmd{})
	case EvTyping:
		return decode(&TypingCmd{})
	case EvMarkMessageRead:
		return decode(&MarkReadCmd{})
	case EvJoinAllParticipants:
		return decode(&JoinAllParticipantsCmd{})
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, frame.Type)
	}
}

// Outbound payloads.

type AuthenticatedPayload struct {
	UserID uuid.UUID   `json:"userId"`
	Rooms  []uuid.UUID `json:"rooms"`
}

type RoomRefPayload struct {
	RoomID uuid.UUID `json:"roomId"`
}

type PresencePayload struct {
	UserID   uuid.UUID `json:"userId"`
	RoomID   uuid.UUID `json:"roomId"`
	UserName string    `json:"userName"`
}

type RoomMembershipPayload struct {
	UserID uuid.UUID `json:"userId"`
	RoomID uuid.UUID `json:"roomId"`
}

type AttachmentPayload struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	URL  string    `json:"url"`
	Kind string    `json:"kind,omitempty"`
	Size *int64    `json:"size,omitempty"`
}

type NewMessagePayload struct {
	ID          uuid.UUID           `json:"id"`
	Content     string              `json:"content"`
	SenderID    uuid.UUID           `json:"senderId"`
	SenderName  string              `json:"senderName"`
	Timestamp   time.Time           `json:"timestamp"`
	IsRead      bool                `json:"isRead"`
	MessageType string              `json:"messageType"`
	RoomID      uuid.UUID           `json:"roomId"`
	Attachments []AttachmentPayload `json:"attachments"`
}

type MessageSentPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"userId"`
	RoomID   uuid.UUID `json:"roomId"`
	IsTyping bool      `json:"isTyping"`
}

type MessageReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	RoomID    uuid.UUID `json:"roomId"`
}

type RoomCreatedPayload struct {
	RoomID       uuid.UUID                `json:"roomId"`
	RoomName     string                   `json:"roomName"`
	Participants []models.ParticipantInfo `json:"participants"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode marshals an outbound event into its wire frame. Marshal failures
// cannot happen for the payload types above, so they only get logged by
// callers, never branched on.
func Encode(t EventType, payload interface{}) []byte {
	frame := Frame{Type: t, Timestamp: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		frame.Data = data
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil
	}
	return raw
}

// EncodeError builds the error frame reported back to an originating
// connection.
func EncodeError(err error) []byte {
	return Encode(EvError, ErrorPayload{Message: err.Error()})
}
