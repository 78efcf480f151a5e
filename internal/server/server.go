// ABOUTME: WebSocket play server for the channel mixer
// ABOUTME: Accepts play requests from clients and pushes completions back to them
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/chanmix/internal/discovery"
	"github.com/Resonate-Protocol/chanmix/internal/protocol"
	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/Resonate-Protocol/chanmix/pkg/chanmix"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Path the websocket endpoint is served on
const Path = "/chanmix"

const (
	sendBuffer    = 100
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// Mixer is the part of the channel mixer the server drives
type Mixer interface {
	Play(file string, onDone chanmix.Callback) (string, error)
	Spec() chanmix.Spec
	Status() chanmix.Status
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	UseTUI     bool
}

// Server represents the play server
type Server struct {
	config   Config
	serverID string
	mixer    Mixer

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui       *ServerTUI
	startTime time.Time

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected client
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// Output channel for messages
	sendChan chan interface{}

	mu       sync.Mutex
	closed   bool
	inflight int
	played   int
}

// send queues msg unless the client has gone away
func (c *Client) send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("client disconnected")
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.sendChan)
	}
}

// New creates a new server instance
func New(config Config, mixer Mixer) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mixer:    mixer,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Meant for trusted local networks; browsers from any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[string]*Client),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called, the TUI quits or the listener fails
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.snapshot()); err != nil {
				log.WithError(err).Error("TUI failed")
			}
		}()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refreshTUI()
		}()
	}

	log.WithFields(log.Fields{"name": s.config.Name, "id": s.serverID}).Info("Server starting")

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        Path,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.WithError(err).Warn("Failed to start mDNS advertisement")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Infof("WebSocket server listening on %s%s", addr, Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Info("Server shutting down...")
	case <-tuiQuitChan:
		log.Info("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.WithError(err).Error("HTTP server error")
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.Stop()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	s.wg.Wait()
	log.Info("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	log.WithField("remote", r.RemoteAddr).Debug("New WebSocket connection")

	s.handleConnection(conn)
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Debug("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	hello, err := readHello(conn)
	if err != nil {
		log.WithError(err).Warn("Handshake failed")
		writeDirect(conn, protocol.TypeError, protocol.Error{Code: protocol.CodeBadRequest, Message: err.Error()})
		return
	}

	log.WithFields(log.Fields{"client": hello.Name, "id": hello.ClientID}).Info("Client hello")

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.WithField("id", hello.ClientID).Warnf("Client ID already connected (name: %s), rejecting duplicate", existing.Name)
		writeDirect(conn, protocol.TypeError, protocol.Error{
			Code:    protocol.CodeDuplicateClient,
			Message: "client ID already connected",
		})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	s.updateTUI()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		client.close()
		log.WithField("client", client.Name).Info("Client disconnected")

		s.updateTUI()
	}()

	spec := s.mixer.Spec()
	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		Spec: protocol.MixerSpec{
			AudioRate:             spec.AudioRate,
			AudioFormat:           spec.AudioFormat,
			AudioChannels:         string(spec.AudioChannels),
			NumberOfAudioChannels: spec.NumberOfAudioChannels,
		},
	}

	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.WithError(err).Warn("Error sending server hello")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		s.handleClientMessage(client, data)
	}
}

// readHello waits for and validates client/hello
func readHello(conn *websocket.Conn) (*protocol.ClientHello, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return nil, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return nil, err
	}
	if hello.ClientID == "" {
		return nil, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return nil, errors.New("client hello missing name")
	}
	return &hello, nil
}

// writeDirect writes one message before the writer goroutine exists
func writeDirect(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteMessage(websocket.TextMessage, data)
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.WithError(err).Warn("Error marshaling message")
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).Debug("Error writing text message")
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendMessage(client, protocol.TypeError, protocol.Error{Code: protocol.CodeBadRequest, Message: "malformed message"})
		return
	}

	switch msg.Type {
	case protocol.TypePlay:
		s.handlePlay(client, msg.Payload)
	case protocol.TypeStatus:
		s.sendMessage(client, protocol.TypeStatus, s.status())
	default:
		log.WithField("type", msg.Type).Debug("Unknown message type")
		s.sendMessage(client, protocol.TypeError, protocol.Error{
			Code:    protocol.CodeBadRequest,
			Message: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

// handlePlay forwards a play request to the mixer
func (s *Server) handlePlay(client *Client, payload interface{}) {
	var req protocol.Play
	if err := protocol.DecodePayload(payload, &req); err != nil {
		s.sendMessage(client, protocol.TypeError, protocol.Error{Code: protocol.CodeBadRequest, Message: err.Error()})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	// done is sent only after the ack has been queued
	acked := make(chan struct{})
	onDone := func(file string, channel int, err error) {
		go func() {
			<-acked
			done := protocol.Done{RequestID: req.RequestID, File: file, Channel: channel}
			if err != nil {
				done.Error = err.Error()
			}

			client.mu.Lock()
			client.inflight--
			client.played++
			client.mu.Unlock()

			if sendErr := s.sendMessage(client, protocol.TypeDone, done); sendErr != nil {
				log.WithError(sendErr).WithField("request", req.RequestID).Debug("Completion not delivered")
			}
			s.updateTUI()
		}()
	}

	file, err := s.mixer.Play(req.File, onDone)
	if err != nil {
		s.sendMessage(client, protocol.TypeError, protocol.Error{
			RequestID: req.RequestID,
			Code:      errorCode(err),
			Message:   err.Error(),
		})
		return
	}

	client.mu.Lock()
	client.inflight++
	client.mu.Unlock()

	s.sendMessage(client, protocol.TypeAck, protocol.Ack{RequestID: req.RequestID, File: file})
	close(acked)

	s.updateTUI()
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, chanmix.ErrInvalidArgument):
		return protocol.CodeInvalidArgument
	case errors.Is(err, chanmix.ErrResourceExhausted):
		return protocol.CodeResourceExhausted
	case errors.Is(err, chanmix.ErrClosed):
		return protocol.CodeClosed
	default:
		return protocol.CodeInternal
	}
}

// status converts mixer occupancy to its wire form
func (s *Server) status() protocol.Status {
	st := s.mixer.Status()
	return protocol.Status{
		Size:       st.Size,
		Free:       st.Free,
		Busy:       st.Busy,
		Dispatcher: st.Dispatcher.String(),
		Policy:     st.Policy.String(),
		Playing: lo.Map(st.Playing, func(p chanmix.Playing, _ int) protocol.ChannelInfo {
			return protocol.ChannelInfo{
				Channel: p.Channel,
				File:    p.File,
				Since:   p.Since.UnixMilli(),
			}
		}),
	}
}

// sendMessage sends a JSON message to a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	return client.send(protocol.Message{
		Type:    msgType,
		Payload: payload,
	})
}
