package timeline

import (
	"sort"
	"sync"

	"talimchat/internal/identity"
	"talimchat/internal/models"

	"github.com/rs/zerolog"
)

type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateLoadingMore State = "loading-more"
	StateError       State = "error"
)

const DefaultPageSize = 20

// Transport is the subset of socket operations the timeline emits.
type Transport interface {
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error
	SendMessage(req models.SendMessageRequest) error
	FetchMessages(req models.FetchMessagesRequest) error
	MarkRead(messageID string) error
}

// Session supplies the authenticated user; the timeline only reads it.
type Session interface {
	CurrentUser() models.User
}

// RoomInfo is the room header carried by the join snapshot.
type RoomInfo struct {
	RoomID            string
	RoomName          string
	RoomType          models.RoomType
	Participants      []models.Participant
	TotalParticipants int
}

// DateGroup is one calendar date's worth of messages, a pure projection
// over the canonical list for display purposes.
type DateGroup struct {
	Date     string
	Messages []models.Message
}

type Config struct {
	Transport Transport
	Session   Session
	Logger    *zerolog.Logger
	PageSize  int
}

// Timeline holds the ordered message list of the currently selected room.
// Three ingestion paths feed it: the join snapshot, backward pagination
// pages, and live pushes. A message id is inserted at most once no matter
// which paths deliver it or in what order. Live-push arrival order is
// authoritative for append position; an out-of-order timestamp is clock
// skew, not a merge failure.
type Timeline struct {
	tr       Transport
	session  Session
	logger   zerolog.Logger
	pageSize int

	mu       sync.Mutex
	roomID   string
	state    State
	messages []models.Message
	seen     map[string]struct{}
	hasMore  bool
	cursor   string
	info     *RoomInfo
	lastErr  error
}

func New(cfg Config) *Timeline {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Timeline{
		tr:       cfg.Transport,
		session:  cfg.Session,
		logger:   cfg.Logger.With().Str("component", "timeline").Logger(),
		pageSize: cfg.PageSize,
		state:    StateIdle,
		seen:     make(map[string]struct{}),
	}
}

// SelectRoom switches the timeline to roomID: the previous room is left
// before the new one is joined, and all local state (messages, cursor,
// error) is reset. The initial snapshot arrives later via ApplyJoined.
func (t *Timeline) SelectRoom(roomID string) error {
	t.mu.Lock()
	if t.roomID == roomID {
		t.mu.Unlock()
		return nil
	}
	prev := t.roomID
	t.roomID = roomID
	t.resetLocked()
	t.state = StateLoading
	t.mu.Unlock()

	if prev != "" {
		if err := t.tr.LeaveRoom(prev); err != nil {
			t.logger.Debug().Err(err).Str("roomID", prev).Msg("leave failed")
		}
	}

	if err := t.tr.JoinRoom(roomID); err != nil {
		t.mu.Lock()
		if t.roomID == roomID {
			t.state = StateError
			t.lastErr = err
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Unselect leaves the current room and returns the timeline to idle.
func (t *Timeline) Unselect() {
	t.mu.Lock()
	prev := t.roomID
	t.roomID = ""
	t.resetLocked()
	t.state = StateIdle
	t.mu.Unlock()

	if prev != "" {
		if err := t.tr.LeaveRoom(prev); err != nil {
			t.logger.Debug().Err(err).Str("roomID", prev).Msg("leave failed")
		}
	}
}

// Retry re-requests the initial snapshot after a failed fetch.
func (t *Timeline) Retry() error {
	t.mu.Lock()
	roomID := t.roomID
	if roomID == "" {
		t.mu.Unlock()
		return models.ErrNoRoomSelected
	}
	t.resetLocked()
	t.state = StateLoading
	t.mu.Unlock()

	if err := t.tr.JoinRoom(roomID); err != nil {
		t.mu.Lock()
		if t.roomID == roomID {
			t.state = StateError
			t.lastErr = err
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// ApplyJoined installs the initial snapshot. A snapshot for a room that is
// no longer selected is a stale response and is discarded silently.
func (t *Timeline) ApplyJoined(data models.RoomJoined) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if data.RoomID != t.roomID {
		t.logger.Debug().Str("roomID", data.RoomID).Msg("stale join snapshot discarded")
		return false
	}

	t.info = &RoomInfo{
		RoomID:            data.RoomID,
		RoomName:          data.RoomName,
		RoomType:          data.RoomType,
		Participants:      data.Participants,
		TotalParticipants: data.TotalParticipants,
	}
	t.messages = nil
	t.seen = make(map[string]struct{})
	for _, m := range data.Messages {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.seen[m.ID] = struct{}{}
		t.messages = append(t.messages, m)
	}
	t.hasMore = data.HasMore
	t.cursor = data.NextCursor
	t.state = StateReady
	t.lastErr = nil
	return true
}

// ApplyPage merges a pagination response: older pages are prepended, newer
// ones appended, and ids already present are skipped. Responses for a room
// other than the selected one are discarded.
func (t *Timeline) ApplyPage(data models.MessagesUpdate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if data.RoomID != t.roomID {
		t.logger.Debug().Str("roomID", data.RoomID).Msg("stale page discarded")
		return false
	}

	var fresh []models.Message
	for _, m := range data.Messages {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}

	if data.Direction == models.DirectionBefore {
		t.messages = append(fresh, t.messages...)
	} else {
		t.messages = append(t.messages, fresh...)
	}
	t.hasMore = data.HasMore
	t.cursor = data.NextCursor
	if t.state == StateLoadingMore {
		t.state = StateReady
	}
	return true
}

// ApplyLive appends a live push for the selected room unless its id is
// already present (an echo that raced a pagination page). The message is
// never repositioned by timestamp.
func (t *Timeline) ApplyLive(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.roomID == "" || msg.Room() != t.roomID {
		return false
	}
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}
	t.messages = append(t.messages, msg)
	return true
}

// LoadMore requests the next older page. It is a no-op without a cursor,
// with a fetch already in flight, or once the history is exhausted. A
// failed fetch leaves the list untouched and stops the loading indicator;
// calling LoadMore again retries.
func (t *Timeline) LoadMore() error {
	t.mu.Lock()
	if t.roomID == "" || t.state == StateLoadingMore || !t.hasMore || t.cursor == "" {
		t.mu.Unlock()
		return nil
	}
	roomID := t.roomID
	cursor := t.cursor
	t.state = StateLoadingMore
	t.mu.Unlock()

	err := t.tr.FetchMessages(models.FetchMessagesRequest{
		RoomID:    roomID,
		Cursor:    cursor,
		Direction: models.DirectionBefore,
		Limit:     t.pageSize,
	})
	if err != nil {
		t.mu.Lock()
		if t.roomID == roomID && t.state == StateLoadingMore {
			t.state = StateReady
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Send emits a message to the selected room. There is no optimistic local
// echo: the message shows up only once the server pushes it back.
func (t *Timeline) Send(content string, typ models.MessageType, duration int) error {
	t.mu.Lock()
	roomID := t.roomID
	t.mu.Unlock()

	if roomID == "" {
		return models.ErrNoRoomSelected
	}
	if typ == "" {
		typ = models.MessageTypeText
	}

	user := t.session.CurrentUser()
	senderName := user.FullName()
	if senderName == "" {
		senderName = "Student"
	}

	return t.tr.SendMessage(models.SendMessageRequest{
		Content:    content,
		RoomID:     roomID,
		SenderName: senderName,
		Type:       typ,
		Duration:   duration,
	})
}

func (t *Timeline) MarkRead(messageID string) error {
	return t.tr.MarkRead(messageID)
}

// ResolveSender computes the display identity of a message's sender against
// the joined room's participant list and the current user.
func (t *Timeline) ResolveSender(msg models.Message) identity.Resolved {
	t.mu.Lock()
	info := t.info
	t.mu.Unlock()

	var room *models.Room
	if info != nil {
		room = &models.Room{
			RoomID:       info.RoomID,
			Name:         info.RoomName,
			Type:         info.RoomType,
			Participants: info.Participants,
		}
	}
	return identity.Resolve(msg, room, t.session.CurrentUser())
}

func (t *Timeline) RoomID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roomID
}

func (t *Timeline) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timeline) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

func (t *Timeline) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Timeline) Info() *RoomInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.info == nil {
		return nil
	}
	info := *t.info
	return &info
}

// Messages returns a copy of the canonical ordered list.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// DateGroups partitions the canonical list into calendar-date buckets,
// oldest date first, each bucket ordered oldest first.
func (t *Timeline) DateGroups() []DateGroup {
	msgs := t.Messages()

	buckets := make(map[string][]models.Message)
	var keys []string
	for _, m := range msgs {
		key := m.SentAt().Format("2006-01-02")
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], m)
	}
	sort.Strings(keys)

	out := make([]DateGroup, 0, len(keys))
	for _, key := range keys {
		day := buckets[key]
		sort.SliceStable(day, func(i, j int) bool {
			return day[i].SentAt().Before(day[j].SentAt())
		})
		out = append(out, DateGroup{Date: key, Messages: day})
	}
	return out
}

func (t *Timeline) resetLocked() {
	t.messages = nil
	t.seen = make(map[string]struct{})
	t.hasMore = true
	t.cursor = ""
	t.info = nil
	t.lastErr = nil
}
