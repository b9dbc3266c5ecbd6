package directory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"talimchat/internal/identity"
	"talimchat/internal/models"

	"github.com/rs/zerolog"
)

// Session supplies the authenticated user; the directory only reads it.
type Session interface {
	CurrentUser() models.User
}

// Fetcher requests a room-list snapshot from the server.
type Fetcher interface {
	FetchRooms() error
}

type AvatarKind string

const (
	AvatarImage    AvatarKind = "image"
	AvatarInitials AvatarKind = "initials"
)

// Avatar is the display identity derived for a room: either an image URL or
// initials on a deterministic background color.
type Avatar struct {
	Kind  AvatarKind
	Value string
	Color string
}

// Entry is a room decorated with its derived display fields.
type Entry struct {
	models.Room
	DisplayName string
	Avatar      Avatar
	IsOnline    bool
}

type Config struct {
	Fetcher Fetcher
	Session Session
	Logger  *zerolog.Logger
}

// Directory maintains the set of chat rooms visible to the current user,
// sorted by recency. The room set is replaced wholesale on every snapshot
// and patched in place by live messages; no other component writes to it.
type Directory struct {
	fetcher Fetcher
	session Session
	logger  zerolog.Logger

	mu      sync.RWMutex
	rooms   []Entry
	loading bool
}

func New(cfg Config) *Directory {
	return &Directory{
		fetcher: cfg.Fetcher,
		session: cfg.Session,
		logger:  cfg.Logger.With().Str("component", "directory").Logger(),
	}
}

// Refresh requests a full room-list snapshot. While disconnected it is a
// deferral, not a failure: the caller gets ErrNotConnected and the current
// room set stays untouched.
func (d *Directory) Refresh() error {
	if err := d.fetcher.FetchRooms(); err != nil {
		return err
	}
	d.mu.Lock()
	d.loading = true
	d.mu.Unlock()
	return nil
}

// ApplySnapshot replaces the room set with the snapshot contents. Rooms
// absent from the snapshot are dropped. The replacement is atomic: readers
// never observe a half-merged set.
func (d *Directory) ApplySnapshot(update models.RoomsUpdate) {
	user := d.session.CurrentUser()
	entries := make([]Entry, 0, len(update.Rooms))
	for _, room := range update.Rooms {
		entries = append(entries, decorate(room, user))
	}
	sortByRecency(entries)

	d.mu.Lock()
	d.rooms = entries
	d.loading = false
	d.mu.Unlock()

	d.logger.Debug().Int("rooms", len(entries)).Int("total", update.TotalRooms).Msg("room snapshot applied")
}

// ApplyMessage merges a live message into the room it belongs to: last
// message summary, updated-at, and the unread count when the sender is not
// the current user. Messages for rooms not yet in the directory are dropped;
// the next snapshot picks the room up.
func (d *Directory) ApplyMessage(msg models.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i := range d.rooms {
		if d.rooms[i].RoomID == msg.Room() {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.logger.Debug().Str("roomID", msg.Room()).Msg("message for unknown room dropped")
		return false
	}

	entry := &d.rooms[idx]
	resolved := identity.Resolve(msg, &entry.Room, d.session.CurrentUser())

	entry.LastMessage = &models.LastMessage{
		Content:    msg.Body(),
		SenderID:   resolved.SenderID,
		SenderName: resolved.SenderName,
		Timestamp:  msg.SentAt(),
		Type:       string(msg.Type),
	}
	entry.UpdatedAt = msg.SentAt()
	if !resolved.IsCurrentUser {
		entry.UnreadCount++
	}

	sortByRecency(d.rooms)
	return true
}

// Rooms returns the current room set, most recent first.
func (d *Directory) Rooms() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, len(d.rooms))
	copy(out, d.rooms)
	return out
}

func (d *Directory) Get(roomID string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.rooms {
		if e.RoomID == roomID {
			return e, true
		}
	}
	return Entry{}, false
}

func (d *Directory) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// Search filters rooms by case-insensitive substring match against the
// display name and participant full names. An empty term returns everything.
func (d *Directory) Search(term string) []Entry {
	all := d.Rooms()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all
	}

	var out []Entry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.DisplayName), term) {
			out = append(out, e)
			continue
		}
		for _, p := range e.Participants {
			if strings.Contains(strings.ToLower(p.FullName()), term) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Filter returns rooms matching a coarse category: "classes" for class and
// class_group rooms, "groups" for group rooms, anything else for all.
func (d *Directory) Filter(category string) []Entry {
	all := d.Rooms()
	switch category {
	case "classes":
		var out []Entry
		for _, e := range all {
			if e.Type == models.RoomTypeClass || e.Type == models.RoomTypeClassGroup {
				out = append(out, e)
			}
		}
		return out
	case "groups":
		var out []Entry
		for _, e := range all {
			if e.Type == models.RoomTypeGroup {
				out = append(out, e)
			}
		}
		return out
	default:
		return all
	}
}

func decorate(room models.Room, user models.User) Entry {
	displayName := room.Name
	if displayName == "" {
		displayName = "Chat Room"
	}
	avatar := Avatar{
		Kind:  AvatarInitials,
		Value: "CR",
		Color: ColorFromString(room.RoomID),
	}
	online := false

	switch room.Type {
	case models.RoomTypeGroup, models.RoomTypeClass, models.RoomTypeClassGroup:
		if room.Name == "" {
			if room.ClassID != "" {
				displayName = "Class " + room.ClassID
			} else {
				displayName = "Class Chat"
			}
		}
		avatar.Value = initials(displayName)
		for _, p := range room.Participants {
			if p.Role == "teacher" && p.IsOnline {
				online = true
				break
			}
		}

	case models.RoomTypeOneToOne:
		if other := otherParticipant(room.Participants, user); other != nil {
			displayName = other.FullName()
			if displayName == "" {
				displayName = "Unknown User"
			}
			online = other.IsOnline

			if other.Avatar != "" {
				avatar = Avatar{Kind: AvatarImage, Value: other.Avatar}
			} else {
				in := strings.ToUpper(firstRune(other.FirstName) + firstRune(other.LastName))
				if in == "" {
					in = "U"
				}
				avatar = Avatar{
					Kind:  AvatarInitials,
					Value: in,
					Color: ColorFromString(other.ResolvedID()),
				}
			}
		}
	}

	// Normalize a legacy {text: ...} last-message summary.
	if lm := room.LastMessage; lm != nil && lm.Content == "" && lm.Text != "" {
		normalized := *lm
		normalized.Content = lm.Text
		room.LastMessage = &normalized
	}

	return Entry{
		Room:        room,
		DisplayName: displayName,
		Avatar:      avatar,
		IsOnline:    online,
	}
}

func otherParticipant(participants []models.Participant, user models.User) *models.Participant {
	for i := range participants {
		if !user.Matches(participants[i].ResolvedID()) {
			return &participants[i]
		}
	}
	return nil
}

func sortByRecency(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return lastMessageTime(entries[i]).After(lastMessageTime(entries[j]))
	})
}

// lastMessageTime orders rooms: no last message means the zero time, which
// sorts behind every real timestamp.
func lastMessageTime(e Entry) time.Time {
	if e.LastMessage == nil {
		return time.Time{}
	}
	return e.LastMessage.Timestamp
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// initials builds avatar initials from the first letters of up to the first
// two words of the name.
func initials(name string) string {
	var b strings.Builder
	for i, word := range strings.Fields(name) {
		if i == 2 {
			break
		}
		b.WriteString(firstRune(word))
	}
	if b.Len() == 0 {
		return "CR"
	}
	return strings.ToUpper(b.String())
}

// ColorFromString folds a string into a 32-bit signed accumulator and
// reduces it to an HSL hue. Not cryptographic; it only has to be stable so
// the same room or sender always gets the same color.
func ColorFromString(s string) string {
	var hash int32
	for _, r := range s {
		hash = hash*31 + int32(r)
	}
	hue := int(hash)
	if hue < 0 {
		hue = -hue
	}
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue%360)
}
