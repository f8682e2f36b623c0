package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by a Conn after the peer closed the channel normally.
var ErrClosed = errors.New("channel closed")

// Endpoint paths exposed by the console server.
const (
	DefaultTaskPath    = "/api/ws"
	DefaultLogsPath    = "/api/ws/logs"
	DefaultBacklogPath = "/api/logs"
	DefaultHealthPath  = "/api/health"
)

// Conn is one open WebSocket channel. Writes are serialized; reads must come
// from a single goroutine.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
	err     error
}

// ReadMessage blocks for the next text or binary frame. A normal close from
// the server is reported as ErrClosed.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return data, nil
}

// WriteJSON sends v as a single text frame.
func (c *Conn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// Close sends a close frame and releases the socket. It does not wait for the
// peer to acknowledge and is safe to call more than once.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.err = c.ws.Close()
	})
	return c.err
}

// Dialer opens task and log channels against one server.
type Dialer struct {
	BaseURL     string // http(s) URL of the console server
	TaskPath    string
	LogsPath    string
	Token       string // Optional bearer token, passed as ?token=
	DialTimeout time.Duration
}

// DialTask opens the task execution channel.
func (d Dialer) DialTask(ctx context.Context) (*Conn, error) {
	return d.dial(ctx, orDefault(d.TaskPath, DefaultTaskPath))
}

// DialLogs opens the live log channel.
func (d Dialer) DialLogs(ctx context.Context) (*Conn, error) {
	return d.dial(ctx, orDefault(d.LogsPath, DefaultLogsPath))
}

func (d Dialer) dial(ctx context.Context, path string) (*Conn, error) {
	target, err := WebSocketURL(d.BaseURL, path, d.Token)
	if err != nil {
		return nil, err
	}

	if d.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.DialTimeout)
		defer cancel()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.DialTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", path, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Conn{ws: ws}, nil
}

// WebSocketURL rewrites an http(s) base URL into the ws(s) URL for path.
func WebSocketURL(base, path, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
