package models

import (
	"encoding/json"
	"time"
)

// EventKind names a server-to-client event on the chat socket.
type EventKind string

const (
	EventMessage        EventKind = "message"
	EventRoomJoined     EventKind = "room-joined"
	EventRoomsUpdate    EventKind = "rooms-update"
	EventMessagesUpdate EventKind = "messages-update"
	EventNotification   EventKind = "notification"
)

// Client-to-server event names.
const (
	EventJoinRoom      EventKind = "join-room"
	EventLeaveRoom     EventKind = "leave-room"
	EventSendMessage   EventKind = "send-message"
	EventFetchRooms    EventKind = "fetch-rooms"
	EventFetchMessages EventKind = "fetch-messages"
	EventMarkRead      EventKind = "mark-read"
)

type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

// Envelope is the framing for every message on the socket, in both
// directions: an event name plus an event-specific payload.
type Envelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomJoined is the initial snapshot delivered once per join-room.
type RoomJoined struct {
	RoomID            string        `json:"roomId"`
	RoomName          string        `json:"roomName"`
	RoomType          RoomType      `json:"roomType"`
	Participants      []Participant `json:"participants"`
	Messages          []Message     `json:"messages"`
	HasMore           bool          `json:"hasMore"`
	NextCursor        string        `json:"nextCursor,omitempty"`
	TotalParticipants int           `json:"totalParticipants"`
}

// RoomsUpdate is a full room-list snapshot.
type RoomsUpdate struct {
	Rooms      []Room `json:"rooms"`
	TotalRooms int    `json:"totalRooms"`
}

// MessagesUpdate is the response to a fetch-messages pagination request.
type MessagesUpdate struct {
	RoomID     string    `json:"roomId"`
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"hasMore"`
	NextCursor string    `json:"nextCursor,omitempty"`
	Direction  Direction `json:"direction"`
}

// NotificationSender identifies the originator of an out-of-band alert.
type NotificationSender struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Notification is an out-of-band alert pushed independent of room context.
type Notification struct {
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	Type      string              `json:"type,omitempty"`
	Data      map[string]any      `json:"data,omitempty"`
	Sender    *NotificationSender `json:"sender,omitempty"`
	CreatedAt time.Time           `json:"createdAt,omitzero"`
}

// Outbound payloads.

// RoomRequest is the payload for both join-room and leave-room.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	Content    string      `json:"content"`
	RoomID     string      `json:"roomId"`
	SenderName string      `json:"senderName"`
	Type       MessageType `json:"type"`
	Duration   int         `json:"duration,omitempty"`
}

type FetchMessagesRequest struct {
	RoomID    string    `json:"roomId"`
	Cursor    string    `json:"cursor,omitempty"`
	Direction Direction `json:"direction"`
	Limit     int       `json:"limit"`
}

type MarkReadRequest struct {
	MessageID string `json:"messageId"`
}
