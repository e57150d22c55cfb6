// ABOUTME: WebRTC fan-out of encoded Opus packets to browser peers
// ABOUTME: Answers SDP offers and writes each packet as a media sample on every connected track
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/session"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	// MimeTypeMultiopus is the surround Opus payload understood by Chromium
	MimeTypeMultiopus = "audio/multiopus"

	multiopusPayloadType = 112
	defaultGatherTimeout = 5 * time.Second
	maxOfferBytes        = 64 << 10
)

var ErrUnsupportedCodec = errors.New("webrtc carries opus streams only")

// Config holds WebRTC settings
type Config struct {
	ICEServers    []string
	GatherTimeout time.Duration
}

// Hub owns every peer connection for one stream
type Hub struct {
	config     Config
	info       encode.StreamInfo
	capability webrtc.RTPCodecCapability
	api        *webrtc.API
	duration   time.Duration

	mu     sync.RWMutex
	peers  map[string]*peer
	closed bool

	log *slog.Logger
}

type peer struct {
	id        string
	pc        *webrtc.PeerConnection
	track     *webrtc.TrackLocalStaticSample
	connected atomic.Bool
}

// FmtpLine returns the SDP fmtp parameters describing the stream layout
func FmtpLine(info encode.StreamInfo) string {
	if info.Channels <= 2 {
		return "minptime=10;useinbandfec=1"
	}
	mapping := make([]string, len(info.Mapping))
	for i, m := range info.Mapping {
		mapping[i] = strconv.Itoa(int(m))
	}
	return fmt.Sprintf("channel_mapping=%s;num_streams=%d;coupled_streams=%d",
		strings.Join(mapping, ","), info.Streams, info.CoupledStreams)
}

// Capability returns the RTP codec capability for info
func Capability(info encode.StreamInfo) (webrtc.RTPCodecCapability, error) {
	if info.Codec != encode.CodecOpus {
		return webrtc.RTPCodecCapability{}, fmt.Errorf("%w: got %s", ErrUnsupportedCodec, info.Codec)
	}
	mime := webrtc.MimeTypeOpus
	if info.Channels > 2 {
		mime = MimeTypeMultiopus
	}
	return webrtc.RTPCodecCapability{
		MimeType:    mime,
		ClockRate:   uint32(info.SampleRate),
		Channels:    uint16(info.Channels),
		SDPFmtpLine: FmtpLine(info),
	}, nil
}

// NewHub prepares a hub for the stream described by info
func NewHub(config Config, info encode.StreamInfo) (*Hub, error) {
	capability, err := Capability(info)
	if err != nil {
		return nil, err
	}
	if config.GatherTimeout <= 0 {
		config.GatherTimeout = defaultGatherTimeout
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register default codecs: %w", err)
	}
	if capability.MimeType == MimeTypeMultiopus {
		if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: capability,
			PayloadType:        multiopusPayloadType,
		}, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("failed to register multiopus: %w", err)
		}
	}

	return &Hub{
		config:     config,
		info:       info,
		capability: capability,
		api:        webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine)),
		duration:   time.Duration(info.FrameSize) * time.Second / time.Duration(info.SampleRate),
		peers:      make(map[string]*peer),
		log:        logging.L("webrtc"),
	}, nil
}

func (h *Hub) iceServers() []webrtc.ICEServer {
	if len(h.config.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: h.config.ICEServers}}
}

// Answer creates a peer for offer and returns its id and the SDP answer
// with all ICE candidates gathered
func (h *Hub) Answer(offer string) (id, answer string, err error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return "", "", fmt.Errorf("webrtc hub closed")
	}

	pc, err := h.api.NewPeerConnection(webrtc.Configuration{ICEServers: h.iceServers()})
	if err != nil {
		return "", "", fmt.Errorf("failed to create peer connection: %w", err)
	}

	p := &peer{id: uuid.New().String(), pc: pc}
	defer func() {
		if err != nil {
			h.remove(p.id)
			pc.Close()
		}
	}()

	track, err := webrtc.NewTrackLocalStaticSample(h.capability, "audio", "sunshine-audio")
	if err != nil {
		return "", "", fmt.Errorf("failed to create audio track: %w", err)
	}
	p.track = track

	sender, err := pc.AddTrack(track)
	if err != nil {
		return "", "", fmt.Errorf("failed to add audio track: %w", err)
	}
	go h.drainRTCP(p.id, sender)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		h.log.Info("peer connection state", "peer", p.id, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			p.connected.Store(true)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.connected.Store(false)
			h.remove(p.id)
		}
	})

	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", "", fmt.Errorf("failed to set remote description: %w", err)
	}

	local, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := pc.SetLocalDescription(local); err != nil {
		return "", "", fmt.Errorf("failed to set local description: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	timer := time.NewTimer(h.config.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		return "", "", fmt.Errorf("ICE gathering timed out after %s", h.config.GatherTimeout)
	}

	ld := pc.LocalDescription()
	if ld == nil {
		return "", "", fmt.Errorf("local description not available")
	}
	return p.id, ld.SDP, nil
}

// drainRTCP reads receiver feedback until the sender stops
func (h *Hub) drainRTCP(id string, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			rr, ok := pkt.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, r := range rr.Reports {
				if r.FractionLost > 0 {
					h.log.Debug("peer reports loss",
						"peer", id,
						"fraction_lost", float64(r.FractionLost)/256,
						"total_lost", r.TotalLost,
						"jitter", r.Jitter)
				}
			}
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	h.mu.Unlock()
}

// Peers returns the number of peers, connected or negotiating
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// WritePacket sends the packet to every connected peer
func (h *Hub) WritePacket(p session.Packet) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, peer := range h.peers {
		if !peer.connected.Load() {
			continue
		}
		if err := peer.track.WriteSample(media.Sample{Data: p.Data, Duration: h.duration}); err != nil {
			h.log.Debug("sample write failed", "peer", peer.id, logging.KeyError, err)
		}
	}
	return nil
}

// Close closes every peer connection
func (h *Hub) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*peer)
	h.closed = true
	h.mu.Unlock()

	for _, p := range peers {
		if err := p.pc.Close(); err != nil {
			h.log.Debug("peer close failed", "peer", p.id, logging.KeyError, err)
		}
	}
}

type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
	ID   string `json:"id,omitempty"`
}

// ServeHTTP accepts a JSON offer {"type":"offer","sdp":...} and replies with the answer
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var offer sdpMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOfferBytes)).Decode(&offer); err != nil {
		http.Error(w, "invalid offer", http.StatusBadRequest)
		return
	}
	if offer.Type != "offer" || offer.SDP == "" {
		http.Error(w, "expected an SDP offer", http.StatusBadRequest)
		return
	}

	id, answer, err := h.Answer(offer.SDP)
	if err != nil {
		h.log.Warn("webrtc negotiation failed", logging.KeyError, err, "remote", r.RemoteAddr)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sdpMessage{Type: "answer", SDP: answer, ID: id})
}
