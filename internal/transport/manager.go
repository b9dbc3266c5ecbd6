package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"talimchat/internal/events"
	"talimchat/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

const (
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = 3 * time.Second
	DefaultBackoffCap     = 30 * time.Second
	DefaultRetryCooldown  = 30 * time.Second
	DefaultReconnectDelay = time.Second
)

// Conn is the subset of the websocket connection the manager needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a socket to the chat backend authenticated as userID.
type Dialer interface {
	Dial(serverURL, userID string) (Conn, error)
}

type Config struct {
	URL      string
	Dialer   Dialer
	Registry *events.Registry
	Logger   *zerolog.Logger

	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RetryCooldown  time.Duration
	ReconnectDelay time.Duration
}

type statusSub struct {
	id string
	fn func(Status)
}

// Manager owns the single long-lived socket of a session. It connects,
// watches for drops, retries with exponential backoff up to a cap, and feeds
// every inbound envelope into the event registry. Exactly one Manager exists
// per authenticated session; only the Manager mutates connection state.
type Manager struct {
	url            string
	dialer         Dialer
	registry       *events.Registry
	logger         zerolog.Logger
	maxRetries     int
	backoffBase    time.Duration
	backoffCap     time.Duration
	retryCooldown  time.Duration
	reconnectDelay time.Duration

	mu          sync.Mutex
	status      Status
	conn        Conn
	userID      string
	retries     int
	lastFailure time.Time
	retryTimer  *time.Timer
	gen         int
	statusSubs  []statusSub

	writeMu sync.Mutex

	// injectable for tests
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = wsDialer{}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if cfg.RetryCooldown == 0 {
		cfg.RetryCooldown = DefaultRetryCooldown
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	return &Manager{
		url:            cfg.URL,
		dialer:         cfg.Dialer,
		registry:       cfg.Registry,
		logger:         cfg.Logger.With().Str("component", "transport").Logger(),
		maxRetries:     cfg.MaxRetries,
		backoffBase:    cfg.BackoffBase,
		backoffCap:     cfg.BackoffCap,
		retryCooldown:  cfg.RetryCooldown,
		reconnectDelay: cfg.ReconnectDelay,
		status:         StatusDisconnected,
		now:            time.Now,
		afterFunc:      time.AfterFunc,
	}
}

// Connect opens the socket as userID. It is a no-op while already connected
// or connecting, and a silent deferral while the retry budget is spent and
// the cooldown has not yet elapsed. The dial itself happens off the calling
// goroutine; progress is observable via OnStatus.
func (m *Manager) Connect(userID string) {
	m.mu.Lock()
	if m.status == StatusConnected || m.status == StatusConnecting {
		m.mu.Unlock()
		return
	}
	if m.retries >= m.maxRetries && m.now().Sub(m.lastFailure) < m.retryCooldown {
		m.mu.Unlock()
		m.logger.Warn().Int("retries", m.maxRetries).Msg("retry budget spent, waiting for cooldown")
		return
	}
	m.userID = userID
	m.gen++
	gen := m.gen
	m.stopRetryTimerLocked()
	m.status = StatusConnecting
	m.mu.Unlock()

	m.notify(StatusConnecting)
	m.logger.Info().Str("userID", userID).Msg("connecting")

	go m.dial(userID, gen)
}

func (m *Manager) dial(userID string, gen int) {
	conn, err := m.dialer.Dial(m.url, userID)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		m.retries++
		m.lastFailure = m.now()
		m.status = StatusError
		retries := m.retries
		m.mu.Unlock()

		m.notify(StatusError)
		m.logger.Error().Err(err).Int("attempt", retries).Msg("connection failed")

		if retries < m.maxRetries {
			m.scheduleRetry(m.backoffDelay(retries), userID)
		} else {
			m.logger.Warn().Msg("unable to connect, waiting for manual reconnect or cooldown")
		}
		return
	}

	m.conn = conn
	m.status = StatusConnected
	m.retries = 0
	m.lastFailure = time.Time{}
	m.stopRetryTimerLocked()
	m.mu.Unlock()

	m.notify(StatusConnected)
	m.logger.Info().Msg("connected")

	go m.readPump(conn, gen)
}

func (m *Manager) readPump(conn Conn, gen int) {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			m.handleDrop(err, gen)
			return
		}
		m.registry.Dispatch(env.Event, env.Data)
	}
}

func (m *Manager) handleDrop(err error, gen int) {
	m.mu.Lock()
	if gen != m.gen {
		// Caller-initiated close, already handled.
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.status = StatusDisconnected
	userID := m.userID

	if isServerClose(err) {
		m.mu.Unlock()
		m.notify(StatusDisconnected)
		m.logger.Warn().Err(err).Msg("server closed connection, not reconnecting")
		return
	}

	m.retries++
	m.lastFailure = m.now()
	retries := m.retries
	m.mu.Unlock()

	m.notify(StatusDisconnected)
	m.logger.Warn().Err(err).Msg("connection lost")

	if retries < m.maxRetries {
		m.scheduleRetry(m.backoffDelay(retries), userID)
	} else {
		m.logger.Warn().Msg("unable to reconnect, waiting for manual reconnect or cooldown")
	}
}

// Disconnect closes the socket and resets the retry state. No reconnection
// follows a caller-initiated disconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryTimerLocked()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.retries = 0
	m.lastFailure = time.Time{}
	m.userID = ""
	changed := m.status != StatusDisconnected
	m.status = StatusDisconnected
	m.mu.Unlock()

	if changed {
		m.notify(StatusDisconnected)
	}
	m.logger.Info().Msg("disconnected")
}

// Reconnect tears the connection down and dials again after a short delay,
// reusing the userID from the previous Connect.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()
	if userID == "" {
		return
	}

	m.Disconnect()

	m.mu.Lock()
	m.retryTimer = m.afterFunc(m.reconnectDelay, func() {
		m.Connect(userID)
	})
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// OnStatus registers a status observer and returns an idempotent
// unsubscribe. Observers run in registration order on every transition.
func (m *Manager) OnStatus(fn func(Status)) func() {
	id := uuid.NewString()
	m.mu.Lock()
	m.statusSubs = append(m.statusSubs, statusSub{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.statusSubs {
			if s.id == id {
				m.statusSubs = append(m.statusSubs[:i:i], m.statusSubs[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) notify(status Status) {
	m.mu.Lock()
	subs := make([]statusSub, len(m.statusSubs))
	copy(subs, m.statusSubs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(status)
	}
}

func (m *Manager) scheduleRetry(delay time.Duration, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryTimer = m.afterFunc(delay, func() {
		m.Connect(userID)
	})
	m.logger.Info().Dur("delay", delay).Msg("reconnect scheduled")
}

func (m *Manager) stopRetryTimerLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// backoffDelay returns the delay before attempt retries+1: the base doubled
// per failed attempt, capped.
func (m *Manager) backoffDelay(retries int) time.Duration {
	delay := m.backoffBase
	for i := 1; i < retries; i++ {
		delay *= 2
		if delay >= m.backoffCap {
			return m.backoffCap
		}
	}
	if delay > m.backoffCap {
		return m.backoffCap
	}
	return delay
}

func isServerClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// Outbound events. Each requires a connected transport; requests while
// disconnected are rejected with ErrNotConnected, never queued.

func (m *Manager) JoinRoom(roomID string) error {
	return m.emit(models.EventJoinRoom, models.RoomRequest{RoomID: roomID})
}

func (m *Manager) LeaveRoom(roomID string) error {
	return m.emit(models.EventLeaveRoom, models.RoomRequest{RoomID: roomID})
}

func (m *Manager) SendMessage(req models.SendMessageRequest) error {
	return m.emit(models.EventSendMessage, req)
}

func (m *Manager) FetchRooms() error {
	return m.emit(models.EventFetchRooms, nil)
}

func (m *Manager) FetchMessages(req models.FetchMessagesRequest) error {
	return m.emit(models.EventFetchMessages, req)
}

func (m *Manager) MarkRead(messageID string) error {
	return m.emit(models.EventMarkRead, models.MarkReadRequest{MessageID: messageID})
}

func (m *Manager) emit(event models.EventKind, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return models.ErrNotConnected
	}

	env := models.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(env)
}
