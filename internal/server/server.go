// ABOUTME: Audio stream server
// ABOUTME: Runs the encoding session and fans packets out to WebSocket and WebRTC clients
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mariotaku/Sunshine/internal/discovery"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/protocol"
	"github.com/mariotaku/Sunshine/internal/rtc"
	"github.com/mariotaku/Sunshine/internal/session"
	"github.com/mariotaku/Sunshine/internal/source"
)

const (
	// AudioPath is the WebSocket endpoint
	AudioPath = "/audio"

	// OfferPath accepts WebRTC SDP offers
	OfferPath = "/webrtc/offer"

	// StatusPath reports session counters as JSON
	StatusPath = "/status"

	sendQueueSize = 100
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	helloTimeout  = 5 * time.Second
)

// Config holds server configuration
type Config struct {
	Port        int
	Name        string
	EnableMDNS  bool
	UseTUI      bool
	AudioFormat int

	// WebRTC enables the SDP offer endpoint when non-nil
	WebRTC *rtc.Config
}

// Server streams one encoded session to every connected client
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	session *session.Session
	source  source.Source
	hub     *rtc.Hub
	start   protocol.StreamStart

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// Server clock (monotonic microseconds)
	clockStart time.Time

	mdnsManager *discovery.Manager

	tui       *ServerTUI
	startTime time.Time

	sent    atomic.Uint64
	dropped atomic.Uint64

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup

	log *slog.Logger
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	Name   string
	Conn   *websocket.Conn
	Codecs []string

	sendChan chan interface{}
	dropped  atomic.Uint64

	mu    sync.RWMutex
	stats protocol.ClientStats
}

// New creates a server that encodes src with the session settings
func New(config Config, sessionConfig session.Config, src source.Source) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// trusted local networks only
				return true
			},
		},
		source:     src,
		clients:    make(map[string]*Client),
		clockStart: time.Now(),
		startTime:  time.Now(),
		stopChan:   make(chan struct{}),
		log:        logging.L("server"),
	}
	s.session = session.New(sessionConfig, src, s)
	return s
}

// streamStart builds the stream/start payload from the session
func (s *Server) streamStart() protocol.StreamStart {
	info := s.session.Info()
	start := protocol.StreamStart{
		Codec:          info.Codec.String(),
		SampleRate:     info.SampleRate,
		Channels:       info.Channels,
		Streams:        info.Streams,
		CoupledStreams: info.CoupledStreams,
		Bitrate:        info.Bitrate,
		FrameSize:      info.FrameSize,
		AudioFormat:    s.config.AudioFormat,
	}
	if len(info.Mapping) > 0 {
		start.Mapping = make([]int, len(info.Mapping))
		for i, m := range info.Mapping {
			start.Mapping[i] = int(m)
		}
	}
	return start
}

// Handler returns the HTTP handler with every endpoint registered.
// It is valid once Prepare succeeded.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Prepare initializes the encoder and registers the endpoints
func (s *Server) Prepare() error {
	if err := s.session.Start(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	s.start = s.streamStart()
	s.start.EpochUs = s.getClockMicros()

	if s.config.WebRTC != nil {
		hub, err := rtc.NewHub(*s.config.WebRTC, s.session.Info())
		switch {
		case errors.Is(err, rtc.ErrUnsupportedCodec):
			s.log.Warn("webrtc disabled", logging.KeyError, err)
		case err != nil:
			return fmt.Errorf("failed to create webrtc hub: %w", err)
		default:
			s.hub = hub
			s.mux.Handle(OfferPath, hub)
		}
	}

	s.mux.HandleFunc(AudioPath, s.handleWebSocket)
	s.mux.HandleFunc(StatusPath, s.handleStatus)
	return nil
}

// Start runs the server until Stop, a TUI quit or an HTTP failure
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()
		initial := s.status()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(initial); err != nil {
				s.log.Error("TUI failed", logging.KeyError, err)
			}
		}()
	}

	s.log.Info("server starting", "name", s.config.Name, "id", s.serverID)

	if err := s.Prepare(); err != nil {
		if s.tui != nil {
			s.tui.Stop()
		}
		s.wg.Wait()
		return err
	}

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			TXT:         s.txtRecords(),
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("failed to start mDNS advertisement", logging.KeyError, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// no client can have seen stream/start yet
	s.start.EpochUs = s.getClockMicros()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.session.Run(ctx); err != nil {
			s.log.Error("session stopped", logging.KeyError, err)
			s.broadcast(protocol.TypeStreamEnd, protocol.StreamEnd{Reason: "error"})
			return
		}
		if ctx.Err() == nil {
			s.broadcast(protocol.TypeStreamEnd, protocol.StreamEnd{Reason: "source_ended"})
		}
	}()

	if s.tui != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tuiLoop(ctx)
		}()
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info("listening", "addr", addr, "path", AudioPath)

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
		s.log.Info("server shutting down")
	case <-tuiQuitChan:
		s.log.Info("TUI quit requested, shutting down")
	case err := <-errChan:
		s.log.Error("HTTP server error", logging.KeyError, err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	cancel()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP server shutdown error", logging.KeyError, err)
	}

	// hijacked connections survive Shutdown
	s.clientsMu.RLock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	s.session.Close()
	s.log.Info("server stopped cleanly", "sent", s.sent.Load(), "dropped", s.dropped.Load())

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

func (s *Server) txtRecords() map[string]string {
	txt := map[string]string{
		"path":     AudioPath,
		"codec":    s.start.Codec,
		"channels": fmt.Sprint(s.start.Channels),
		"version":  fmt.Sprint(protocol.Version),
	}
	if s.hub != nil {
		txt["webrtc"] = OfferPath
	}
	return txt
}

// WritePacket frames the packet once and queues it on every client. Slow
// clients lose the packet instead of stalling the session.
func (s *Server) WritePacket(p session.Packet) error {
	s.clientsMu.RLock()
	if len(s.clients) > 0 {
		frame := protocol.AppendAudioPacket(make([]byte, 0, protocol.HeaderSize+len(p.Data)), protocol.AudioPacket{
			Sequence:    p.Sequence,
			TimestampUs: p.TimestampUs,
			Payload:     p.Data,
		})
		for _, client := range s.clients {
			select {
			case client.sendChan <- frame:
				s.sent.Add(1)
			default:
				client.dropped.Add(1)
				s.dropped.Add(1)
			}
		}
	}
	s.clientsMu.RUnlock()

	if s.hub != nil {
		return s.hub.WritePacket(p)
	}
	return nil
}

// broadcast queues a JSON message on every client
func (s *Server) broadcast(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if err := s.sendMessage(client, msgType, payload); err != nil {
			s.log.Warn("could not queue message", "type", msgType, logging.KeyClientID, client.ID, logging.KeyError, err)
		}
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", logging.KeyError, err)
		return
	}

	s.log.Debug("new WebSocket connection", "remote", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) reject(conn *websocket.Conn, code, message string) {
	data, err := json.Marshal(protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

func supportsCodec(codecs []string, codec string) bool {
	if len(codecs) == 0 {
		return true
	}
	for _, c := range codecs {
		if c == codec {
			return true
		}
	}
	return false
}

var (
	errShuttingDown    = errors.New("server is shutting down")
	errDuplicateClient = errors.New("client ID already connected")
)

// register makes client visible to WritePacket and adds its writer to wg.
// shutdownMu is held throughout so Start cannot reach wg.Wait in between.
func (s *Server) register(client *Client) error {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.isShutdown {
		return errShuttingDown
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, exists := s.clients[client.ID]; exists {
		return errDuplicateClient
	}
	s.clients[client.ID] = client
	s.wg.Add(1)
	return nil
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		s.log.Debug("rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.log.Warn("error reading hello", logging.KeyError, err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		s.log.Warn("invalid hello", logging.KeyError, err)
		return
	}
	if env.Type != protocol.TypeClientHello {
		s.log.Warn("expected client/hello", "got", env.Type)
		return
	}

	var hello protocol.ClientHello
	if err := env.Decode(&hello); err != nil {
		s.log.Warn("invalid client hello", logging.KeyError, err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		s.reject(conn, "invalid_hello", "client_id and name are required")
		return
	}
	if !supportsCodec(hello.Codecs, s.start.Codec) {
		s.reject(conn, "unsupported_codec", fmt.Sprintf("stream codec is %s", s.start.Codec))
		return
	}

	log := logging.WithClient(s.log, hello.ClientID)
	log.Info("client hello", "name", hello.Name, "codecs", hello.Codecs)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		Codecs:   hello.Codecs,
		sendChan: make(chan interface{}, sendQueueSize),
	}

	// Queue the handshake before the client becomes visible to WritePacket
	s.sendMessage(client, protocol.TypeServerHello, protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	})
	s.sendMessage(client, protocol.TypeStreamStart, s.start)

	if err := s.register(client); err != nil {
		if errors.Is(err, errDuplicateClient) {
			log.Warn("client ID already connected, rejecting duplicate")
			s.reject(conn, "duplicate_client_id", "Client ID already connected")
		} else {
			log.Debug("rejecting connection during shutdown")
		}
		return
	}

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		log.Info("client disconnected", "dropped", client.dropped.Load())
	}()

	go func() {
		defer s.wg.Done()
		s.clientWriter(client, log)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket error", logging.KeyError, err)
			}
			break
		}

		s.handleClientMessage(client, data, log)
	}
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(client *Client, log *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Debug("error writing binary message", logging.KeyError, err)
					client.Conn.Close()
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Error("error marshaling message", logging.KeyError, err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Debug("error writing text message", logging.KeyError, err)
					client.Conn.Close()
					return
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte, log *slog.Logger) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		log.Warn("invalid message", logging.KeyError, err)
		return
	}

	switch env.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(client, env, log)
	case protocol.TypeClientStats:
		var stats protocol.ClientStats
		if err := env.Decode(&stats); err != nil {
			log.Warn("invalid client stats", logging.KeyError, err)
			return
		}
		client.mu.Lock()
		client.stats = stats
		client.mu.Unlock()
		log.Debug("client stats", "received", stats.Received, "decoded", stats.Decoded, "lost", stats.Lost)
	default:
		log.Debug("unknown message type", "type", env.Type)
	}
}

// handleTimeSync responds to time synchronization requests
func (s *Server) handleTimeSync(client *Client, env protocol.Envelope, log *slog.Logger) {
	serverRecv := s.getClockMicros()

	var clientTime protocol.ClientTime
	if err := env.Decode(&clientTime); err != nil {
		log.Warn("invalid client time", logging.KeyError, err)
		return
	}

	response := protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: s.getClockMicros(),
	}

	if err := s.sendMessage(client, protocol.TypeServerTime, response); err != nil {
		log.Warn("error sending server time", logging.KeyError, err)
	}
}

// StatusReport is the JSON body of the status endpoint
type StatusReport struct {
	Name    string               `json:"name"`
	Stream  protocol.StreamStart `json:"stream"`
	Session session.Stats        `json:"session"`
	Clients int                  `json:"clients"`
	Peers   int                  `json:"webrtc_peers"`
	Sent    uint64               `json:"sent"`
	Dropped uint64               `json:"dropped"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clients := len(s.clients)
	s.clientsMu.RUnlock()

	report := StatusReport{
		Name:    s.config.Name,
		Stream:  s.start,
		Session: s.session.Stats(),
		Clients: clients,
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
	}
	if s.hub != nil {
		report.Peers = s.hub.Peers()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// getClockMicros returns the server clock in microseconds
func (s *Server) getClockMicros() int64 {
	return time.Since(s.clockStart).Microseconds()
}
