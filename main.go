package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"talimchat/internal/alerts"
	"talimchat/internal/chat"
	"talimchat/internal/config"
	"talimchat/internal/content"
	"talimchat/internal/directory"
	"talimchat/internal/events"
	"talimchat/internal/models"
	"talimchat/internal/timeline"
	"talimchat/internal/transport"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// staticSession is a fixed session for the terminal client: the user is
// whoever the flags say, authenticated for the lifetime of the process.
type staticSession struct {
	user models.User
}

func (s staticSession) CurrentUser() models.User { return s.user }
func (s staticSession) Authenticated() bool      { return s.user.PrimaryID() != "" }

func run(ctx context.Context, logger zerolog.Logger) error {
	fs := pflag.NewFlagSet("talimchat", pflag.ContinueOnError)
	var (
		userID    = fs.StringP("user-id", "u", "", "user id to authenticate the socket with")
		firstName = fs.String("first-name", "", "current user first name")
		lastName  = fs.String("last-name", "", "current user last name")
		email     = fs.String("email", "", "current user email")
		serverURL = fs.StringP("server-url", "s", "", "chat gateway websocket URL (overrides TALIM_WS_URL)")
		logLevel  = fs.StringP("log-level", "l", "warn", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger = logger.Level(lvl)

	if *userID == "" {
		return errors.New("--user-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	session := staticSession{user: models.User{
		ID:        *userID,
		FirstName: *firstName,
		LastName:  *lastName,
		Email:     *email,
	}}

	registry := events.NewRegistry(&logger)
	manager := transport.NewManager(transport.Config{
		URL:            cfg.ServerURL,
		Registry:       registry,
		Logger:         &logger,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		RetryCooldown:  cfg.RetryCooldown,
		ReconnectDelay: cfg.ReconnectDelay,
	})
	dir := directory.New(directory.Config{
		Fetcher: manager,
		Session: session,
		Logger:  &logger,
	})
	tl := timeline.New(timeline.Config{
		Transport: manager,
		Session:   session,
		Logger:    &logger,
		PageSize:  cfg.PageSize,
	})
	notifier := alerts.New(ctx, alerts.Config{
		TTL:    cfg.AlertTTL,
		Logger: &logger,
		Sink: func(text string) {
			fmt.Fprintf(os.Stderr, "* %s\n", text)
		},
	})

	svc := chat.NewService(chat.Config{
		Transport: manager,
		Registry:  registry,
		Directory: dir,
		Timeline:  tl,
		Alerts:    notifier,
		Session:   session,
		Logger:    &logger,
	})
	defer svc.Close()

	// Print live messages for the selected room as the server confirms them.
	unsub := events.Subscribe(registry, models.EventMessage, func(m models.Message) {
		if m.Room() != tl.RoomID() {
			return
		}
		res := tl.ResolveSender(m)
		fmt.Printf("[%s] %s: %s\n", m.SentAt().Format("15:04"), res.SenderName, content.Sanitize(m.Body()))
	})
	defer unsub()

	svc.SyncSession()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gCtx.Done()
		manager.Disconnect()
		return nil
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if gCtx.Err() != nil {
				return nil
			}
			handleLine(scanner.Text(), manager, dir, tl)
		}
		return scanner.Err()
	})

	return g.Wait()
}

func handleLine(line string, manager *transport.Manager, dir *directory.Directory, tl *timeline.Timeline) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/rooms":
		if err := dir.Refresh(); err != nil {
			fmt.Println("cannot refresh rooms:", err)
			return
		}
		for _, room := range dir.Rooms() {
			marker := ""
			if room.UnreadCount > 0 {
				marker = fmt.Sprintf(" (%d unread)", room.UnreadCount)
			}
			fmt.Printf("%s  %s%s\n", room.RoomID, room.DisplayName, marker)
		}
	case "/join":
		if err := tl.SelectRoom(strings.TrimSpace(arg)); err != nil {
			fmt.Println("cannot join room:", err)
		}
	case "/leave":
		tl.Unselect()
	case "/more":
		if err := tl.LoadMore(); err != nil {
			fmt.Println("cannot load more:", err)
		}
	case "/read":
		if err := tl.MarkRead(strings.TrimSpace(arg)); err != nil {
			fmt.Println("cannot mark read:", err)
		}
	case "/reconnect":
		manager.Reconnect()
	default:
		if err := tl.Send(line, models.MessageTypeText, 0); err != nil {
			fmt.Println("cannot send:", err)
		}
	}
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("application error")
	}
}
