// ABOUTME: WebSocket client for the audio stream protocol
// ABOUTME: Handles connection, handshake, and message routing
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/protocol"
)

const handshakeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string // defaults to /audio
	ClientID   string
	Name       string
	Codecs     []string
	DeviceInfo protocol.DeviceInfo
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	Packets      chan protocol.AudioPacket
	StreamStart  chan protocol.StreamStart
	StreamEnd    chan protocol.StreamEnd
	TimeSyncResp chan protocol.ServerTime

	server protocol.ServerHello

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	log       *slog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if config.Path == "" {
		config.Path = "/audio"
	}

	return &Client{
		config:       config,
		Packets:      make(chan protocol.AudioPacket, 100),
		StreamStart:  make(chan protocol.StreamStart, 1),
		StreamEnd:    make(chan protocol.StreamEnd, 1),
		TimeSyncResp: make(chan protocol.ServerTime, 10),
		ctx:          ctx,
		cancel:       cancel,
		log:          logging.WithClient(logging.L("client"), config.ClientID),
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.Info("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    protocol.Version,
		Codecs:     c.config.Codecs,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch env.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var e protocol.ServerError
		if err := env.Decode(&e); err != nil {
			return err
		}
		return fmt.Errorf("server rejected client: %s (%s)", e.Error, e.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", env.Type)
	}

	if err := env.Decode(&c.server); err != nil {
		return err
	}

	c.log.Info("handshake complete", "server", c.server.Name, "server_id", c.server.ServerID)
	return nil
}

// Server returns the server hello received during the handshake
func (c *Client) Server() protocol.ServerHello {
	return c.server
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.Warn("read error", logging.KeyError, err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage routes audio packets
func (c *Client) handleBinaryMessage(data []byte) {
	p, err := protocol.ParseAudioPacket(data)
	if err != nil {
		c.log.Warn("invalid binary message", logging.KeyError, err)
		return
	}

	select {
	case c.Packets <- p:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		c.log.Warn("failed to parse JSON message", logging.KeyError, err)
		return
	}

	switch env.Type {
	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := env.Decode(&start); err != nil {
			c.log.Warn("invalid stream/start", logging.KeyError, err)
			return
		}
		select {
		case c.StreamStart <- start:
		case <-c.ctx.Done():
		}

	case protocol.TypeStreamEnd:
		var end protocol.StreamEnd
		env.Decode(&end)
		select {
		case c.StreamEnd <- end:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerTime:
		var timeMsg protocol.ServerTime
		if err := env.Decode(&timeMsg); err != nil {
			return
		}
		select {
		case c.TimeSyncResp <- timeMsg:
		case <-c.ctx.Done():
		}

	default:
		c.log.Debug("unknown message type", "type", env.Type)
	}
}

// SendStats sends a client/stats message
func (c *Client) SendStats(stats protocol.ClientStats) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeClientStats, Payload: stats})
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.log.Info("connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
