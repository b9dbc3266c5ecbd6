package transport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const defaultHandshakeTimeout = 3 * time.Second

// wsDialer dials the backend over a gorilla websocket, passing the user id
// as auth context in the query string the way the gateway expects it.
type wsDialer struct{}

func (wsDialer) Dial(serverURL, userID string) (Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return conn, nil
}
