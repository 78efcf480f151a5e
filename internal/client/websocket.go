// ABOUTME: WebSocket client for the chanmix play server
// ABOUTME: Handles connection, handshake, and routing of ack, done, error and status
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/protocol"
	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const handshakeTimeout = 5 * time.Second

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port or a full ws:// URL
	ServerAddr string
	ClientID   string
	Name       string
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  protocol.ServerHello

	// Message channels
	Acks   chan protocol.Ack
	Done   chan protocol.Done
	Errors chan protocol.Error
	Status chan protocol.Status

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = version.Product + "-remote"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		Acks:   make(chan protocol.Ack, 32),
		Done:   make(chan protocol.Done, 32),
		Errors: make(chan protocol.Error, 32),
		Status: make(chan protocol.Status, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// serverURL resolves the configured address to a websocket URL
func (c *Client) serverURL() string {
	addr := c.config.ServerAddr
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/chanmix"}
	return u.String()
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	target := c.serverURL()
	log.WithField("url", target).Debug("Connecting")

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
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
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}

	if err := c.send(protocol.TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeError:
		var rejected protocol.Error
		protocol.DecodePayload(msg.Payload, &rejected)
		return fmt.Errorf("rejected: %s: %s", rejected.Code, rejected.Message)
	default:
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = serverHello
	c.mu.Unlock()

	log.WithFields(log.Fields{"server": serverHello.Name, "id": serverHello.ServerID}).Debug("Handshake complete")
	return nil
}

// Hello returns the server/hello received during Connect
func (c *Client) Hello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// send writes one message
func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	return c.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload})
}

// Play requests file on the server and returns the request ID used to
// match the ack, error and done messages that follow
func (c *Client) Play(file string) (string, error) {
	id := uuid.New().String()
	if err := c.send(protocol.TypePlay, protocol.Play{RequestID: id, File: file}); err != nil {
		return "", err
	}
	return id, nil
}

// RequestStatus asks for a mixer/status reply on the Status channel
func (c *Client) RequestStatus() error {
	return c.send(protocol.TypeStatus, struct{}{})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.WithError(err).Debug("Read error")
			}
			return
		}

		c.handleMessage(data)
	}
}

// handleMessage routes JSON messages
func (c *Client) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.WithError(err).Warn("Failed to parse message")
		return
	}

	switch msg.Type {
	case protocol.TypeAck:
		var ack protocol.Ack
		if protocol.DecodePayload(msg.Payload, &ack) == nil {
			deliver(c.ctx, c.Acks, ack)
		}

	case protocol.TypeDone:
		var done protocol.Done
		if protocol.DecodePayload(msg.Payload, &done) == nil {
			deliver(c.ctx, c.Done, done)
		}

	case protocol.TypeError:
		var e protocol.Error
		if protocol.DecodePayload(msg.Payload, &e) == nil {
			deliver(c.ctx, c.Errors, e)
		}

	case protocol.TypeStatus:
		var st protocol.Status
		if protocol.DecodePayload(msg.Payload, &st) == nil {
			deliver(c.ctx, c.Status, st)
		}

	default:
		log.WithField("type", msg.Type).Debug("Unknown message type")
	}
}

func deliver[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// Closed is closed once the connection is gone
func (c *Client) Closed() <-chan struct{} {
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
		log.Debug("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
