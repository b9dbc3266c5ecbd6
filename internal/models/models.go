package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConnected   = errors.New("not connected")
	ErrNoRoomSelected = errors.New("no room selected")
)

type RoomType string

const (
	RoomTypeOneToOne   RoomType = "one_to_one"
	RoomTypeGroup      RoomType = "group"
	RoomTypeClass      RoomType = "class"
	RoomTypeClassGroup RoomType = "class_group"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

// User is the authenticated user as supplied by the session provider.
// Depending on which backend issued the session, the id may live under
// "id", "userId" or "_id"; all three are checked when matching.
type User struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	MongoID   string `json:"_id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

// PrimaryID returns the first non-empty id alias.
func (u User) PrimaryID() string {
	for _, id := range []string{u.ID, u.UserID, u.MongoID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// Matches reports whether id equals any of the user's id aliases.
func (u User) Matches(id string) bool {
	if id == "" {
		return false
	}
	return id == u.ID || id == u.UserID || id == u.MongoID
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Participant is a room member as delivered by the server. The member id
// shows up under a different key depending on which collection the backend
// populated it from.
type Participant struct {
	MongoID   string `json:"_id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	AltID     string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Avatar    string `json:"userAvatar,omitempty"`
	IsActive  bool   `json:"isActive,omitempty"`
	IsOnline  bool   `json:"isOnline"`
}

// ResolvedID normalizes the participant id across the possible key names.
func (p Participant) ResolvedID() string {
	for _, id := range []string{p.UserID, p.MongoID, p.AltID} {
		if id != "" {
			return id
		}
	}
	return ""
}

func (p Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// RawSender is the sender field of a wire message. The backend sends either
// a bare user id string or a populated sender object, so it needs a custom
// decoder.
type RawSender struct {
	ID        string
	FirstName string
	LastName  string
}

type rawSenderObject struct {
	MongoID   string `json:"_id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	AltID     string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func (s *RawSender) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*s = RawSender{ID: id}
		return nil
	}

	var obj rawSenderObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = RawSender{FirstName: obj.FirstName, LastName: obj.LastName}
	for _, id := range []string{obj.MongoID, obj.UserID, obj.AltID} {
		if id != "" {
			s.ID = id
			break
		}
	}
	return nil
}

func (s RawSender) MarshalJSON() ([]byte, error) {
	if s.FirstName == "" && s.LastName == "" {
		return json.Marshal(s.ID)
	}
	return json.Marshal(rawSenderObject{
		MongoID:   s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	})
}

func (s RawSender) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Message is a chat message as pushed by the server. Older backend builds
// use "text"/"createdAt"/"chatRoomId" instead of "content"/"timestamp"/
// "roomId"; the accessor methods paper over that.
type Message struct {
	ID         string      `json:"_id"`
	RoomID     string      `json:"roomId,omitempty"`
	ChatRoomID string      `json:"chatRoomId,omitempty"`
	Sender     RawSender   `json:"senderId"`
	SenderName string      `json:"senderName,omitempty"`
	Content    string      `json:"content,omitempty"`
	Text       string      `json:"text,omitempty"`
	Type       MessageType `json:"type,omitempty"`
	Duration   int         `json:"duration,omitempty"`
	Timestamp  time.Time   `json:"timestamp,omitzero"`
	CreatedAt  time.Time   `json:"createdAt,omitzero"`
	ReadBy     []string    `json:"readBy,omitempty"`
}

// Room returns the room id regardless of which field carried it.
func (m Message) Room() string {
	if m.RoomID != "" {
		return m.RoomID
	}
	return m.ChatRoomID
}

// Body returns the message text regardless of which field carried it.
func (m Message) Body() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Text
}

// SentAt returns the message time, preferring "timestamp" over "createdAt".
func (m Message) SentAt() time.Time {
	if !m.Timestamp.IsZero() {
		return m.Timestamp
	}
	return m.CreatedAt
}

// LastMessage is the per-room summary of the most recent message.
type LastMessage struct {
	Content    string    `json:"content,omitempty"`
	Text       string    `json:"text,omitempty"`
	SenderID   string    `json:"senderId,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
	Type       string    `json:"type,omitempty"`
}

func (lm LastMessage) Body() string {
	if lm.Content != "" {
		return lm.Content
	}
	return lm.Text
}

// Room is a chat room as delivered in a rooms-update snapshot.
type Room struct {
	RoomID       string        `json:"roomId"`
	Name         string        `json:"name,omitempty"`
	Type         RoomType      `json:"type"`
	Participants []Participant `json:"participants"`
	LastMessage  *LastMessage  `json:"lastMessage,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
	UpdatedAt    time.Time     `json:"updatedAt,omitzero"`
	ClassID      string        `json:"classId,omitempty"`
	CourseID     string        `json:"courseId,omitempty"`
}
