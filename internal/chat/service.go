package chat

import (
	"talimchat/internal/alerts"
	"talimchat/internal/content"
	"talimchat/internal/directory"
	"talimchat/internal/events"
	"talimchat/internal/models"
	"talimchat/internal/timeline"
	"talimchat/internal/transport"

	"github.com/rs/zerolog"
)

// Session is the authenticated-session provider. The service only reads it:
// connection lifecycle follows its state, identity resolution uses its user.
type Session interface {
	CurrentUser() models.User
	Authenticated() bool
}

type Config struct {
	Transport *transport.Manager
	Registry  *events.Registry
	Directory *directory.Directory
	Timeline  *timeline.Timeline
	Alerts    *alerts.Notifier
	Session   Session
	Logger    *zerolog.Logger
}

// Service wires the realtime chat pieces together: it routes inbound events
// from the registry into the room directory and the message timeline,
// refreshes the directory whenever the transport comes up, and surfaces
// connection changes and notifications as user-visible alerts.
type Service struct {
	tr      *transport.Manager
	dir     *directory.Directory
	tl      *timeline.Timeline
	alerts  *alerts.Notifier
	session Session
	logger  zerolog.Logger
	unsubs  []func()
}

func NewService(cfg Config) *Service {
	s := &Service{
		tr:      cfg.Transport,
		dir:     cfg.Directory,
		tl:      cfg.Timeline,
		alerts:  cfg.Alerts,
		session: cfg.Session,
		logger:  cfg.Logger.With().Str("component", "chat").Logger(),
	}

	s.unsubs = append(s.unsubs,
		events.Subscribe(cfg.Registry, models.EventRoomsUpdate, s.handleRoomsUpdate),
		events.Subscribe(cfg.Registry, models.EventRoomJoined, s.handleRoomJoined),
		events.Subscribe(cfg.Registry, models.EventMessagesUpdate, s.handleMessagesUpdate),
		events.Subscribe(cfg.Registry, models.EventMessage, s.handleMessage),
		events.Subscribe(cfg.Registry, models.EventNotification, s.handleNotification),
		cfg.Transport.OnStatus(s.handleStatus),
	)
	return s
}

// SyncSession aligns the connection with the session provider's state:
// connect while authenticated, disconnect once the session is gone. Called
// on every session transition.
func (s *Service) SyncSession() {
	if s.session.Authenticated() {
		if userID := s.session.CurrentUser().PrimaryID(); userID != "" {
			s.tr.Connect(userID)
			return
		}
	}
	s.tr.Disconnect()
}

// Close detaches the service from the registry and transport and closes the
// connection. Unsubscribing twice is harmless.
func (s *Service) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.tr.Disconnect()
}

func (s *Service) Directory() *directory.Directory { return s.dir }

func (s *Service) Timeline() *timeline.Timeline { return s.tl }

func (s *Service) handleStatus(status transport.Status) {
	switch status {
	case transport.StatusConnected:
		s.alerts.Notify("Connected to real-time services")
		if err := s.dir.Refresh(); err != nil {
			s.logger.Warn().Err(err).Msg("room refresh after connect failed")
		}
	case transport.StatusDisconnected:
		// No alert for a disconnect that follows logout.
		if s.session.Authenticated() {
			s.alerts.Notify("Connection lost")
		}
	case transport.StatusError:
		s.alerts.Notify("Unable to connect to real-time services")
	}
}

func (s *Service) handleRoomsUpdate(update models.RoomsUpdate) {
	s.dir.ApplySnapshot(update)
}

func (s *Service) handleRoomJoined(data models.RoomJoined) {
	s.tl.ApplyJoined(data)
}

func (s *Service) handleMessagesUpdate(data models.MessagesUpdate) {
	s.tl.ApplyPage(data)
}

func (s *Service) handleMessage(msg models.Message) {
	// Bodies come from other clients; strip any markup before the message
	// reaches directory summaries or the timeline.
	msg.Content = content.Sanitize(msg.Body())
	msg.Text = ""

	s.tl.ApplyLive(msg)
	s.dir.ApplyMessage(msg)
}

func (s *Service) handleNotification(n models.Notification) {
	text := n.Title
	if n.Body != "" {
		text += ": " + n.Body
	}
	s.alerts.Notify(content.Sanitize(text))
}
