package identity

import (
	"strings"

	"talimchat/internal/models"
)

// Resolved is the display-ready identity computed for a message sender.
// It is derived per message at display time, never stored.
type Resolved struct {
	SenderID      string
	SenderName    string
	IsCurrentUser bool
}

// Resolve determines a stable sender id and display name for a raw message.
// The server populates the sender field inconsistently (bare id, object,
// name omitted for self-messages), so resolution walks a fallback chain:
// message fields, the current user's own identity, the room participant
// list, and finally the literal "Unknown". It never fails.
//
// Resolve is pure: identical inputs yield identical output, and neither the
// message, the room nor the user is mutated.
func Resolve(msg models.Message, room *models.Room, user models.User) Resolved {
	senderID := msg.Sender.ID

	name := strings.TrimSpace(msg.SenderName)
	if name == "" {
		name = msg.Sender.FullName()
	}

	// A self-message must never show as "Unknown" even when the server
	// omitted the redundant name data.
	if name == "" && user.Matches(senderID) {
		name = user.FullName()
		if name == "" {
			name = user.Email
		}
		if name == "" {
			name = "You"
		}
	}

	if name == "" && room != nil {
		for _, p := range room.Participants {
			if p.ResolvedID() != senderID || senderID == "" {
				continue
			}
			name = p.FullName()
			if name == "" {
				name = strings.TrimSpace(p.Name)
			}
			if name == "" {
				name = p.Email
			}
			break
		}
	}

	if name == "" {
		name = "Unknown"
	}

	return Resolved{
		SenderID:      senderID,
		SenderName:    name,
		IsCurrentUser: isCurrentUser(senderID, name, user),
	}
}

// isCurrentUser matches by id against every alias the user object exposes.
// Name comparison is a last resort used only when the message carried no
// sender id at all; an id match (or mismatch) always wins over names.
func isCurrentUser(senderID, senderName string, user models.User) bool {
	if senderID != "" {
		return user.Matches(senderID)
	}
	full := user.FullName()
	return full != "" && strings.EqualFold(full, strings.TrimSpace(senderName))
}
