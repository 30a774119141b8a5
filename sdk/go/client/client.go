// Package client drives a remote finder environment over websocket.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zeusync/finder/pkg/protocol"
)

// Client owns one server session, i.e. one environment. Calls are
// serialized; the server answers requests in order.
type Client struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	session string

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool

	config Config
	logger *zap.Logger
}

// Config holds configuration for the client
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/env.
	ServerURL      string
	Token          string
	ConnectTimeout time.Duration
	MessageTimeout time.Duration
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/env",
		ConnectTimeout: 10 * time.Second,
		MessageTimeout: 10 * time.Second,
	}
}

// NewClient creates a client. A nil logger discards output.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		logger: logger.With(zap.String("component", "client")),
	}
}

// Connect opens the session.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if c.config.ServerURL == "" {
		return fmt.Errorf("%w: empty server url", ErrInvalidConfig)
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	c.logger.Info("Connecting to server", zap.String("url", c.config.ServerURL))

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.config.ServerURL, header)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		if resp != nil {
			err = fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		c.logger.Error("Failed to connect to server", zap.Error(err))
		return err
	}
	c.conn = conn
	return nil
}

// Disconnect closes the session. The client cannot be reused.
func (c *Client) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return ErrNotConnected
	}
	atomic.StoreInt32(&c.closed, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Session is the server-side session id, known after the first reply.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Reset starts a new episode.
func (c *Client) Reset(ctx context.Context) (protocol.Response, error) {
	return c.do(ctx, protocol.Request{Op: protocol.OpReset})
}

// Step sends one action. Once the episode is over the response still carries
// the final observation alongside the error.
func (c *Client) Step(ctx context.Context, a protocol.Action) (protocol.Response, error) {
	return c.do(ctx, protocol.Request{Op: protocol.OpStep, Action: a.Vector()})
}

func (c *Client) Status(ctx context.Context) (protocol.Response, error) {
	return c.do(ctx, protocol.Request{Op: protocol.OpStatus})
}

// RunEpisode resets and plays until the episode ends, returning the summed
// reward and the last response.
func (c *Client) RunEpisode(ctx context.Context, act func(protocol.Observation) protocol.Action) (float64, protocol.Response, error) {
	resp, err := c.Reset(ctx)
	if err != nil {
		return 0, resp, err
	}
	var total float64
	for !resp.Done && !resp.Truncated {
		if err := ctx.Err(); err != nil {
			return total, resp, err
		}
		if resp, err = c.Step(ctx, act(*resp.Observation)); err != nil {
			return total, resp, err
		}
		total += resp.Reward
	}
	return total, resp, nil
}

func (c *Client) do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if atomic.LoadInt32(&c.connected) == 0 {
		return protocol.Response{}, ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.config.MessageTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(req); err != nil {
		return protocol.Response{}, fmt.Errorf("send %s: %w", req.Op, err)
	}
	var resp protocol.Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return protocol.Response{}, fmt.Errorf("receive %s: %w", req.Op, err)
	}
	c.session = resp.Session
	if resp.Error != "" {
		return resp, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return resp, nil
}
