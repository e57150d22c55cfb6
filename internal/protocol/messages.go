// ABOUTME: Audio stream protocol message type definitions
// ABOUTME: Defines the JSON control messages exchanged over the WebSocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version announced in both hellos
const Version = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeServerError = "server/error"
	TypeStreamStart = "stream/start"
	TypeStreamEnd   = "stream/end"
	TypeClientStats = "client/stats"
	TypeClientTime  = "client/time"
	TypeServerTime  = "server/time"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is a received Message whose payload is decoded on demand
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes the outer message
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("message without type")
	}
	return env, nil
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", e.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	Codecs     []string    `json:"codecs,omitempty"` // codecs the client can decode
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError rejects a client
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamStart describes the packets that follow
type StreamStart struct {
	Codec          string `json:"codec"`
	SampleRate     int    `json:"sample_rate"`
	Channels       int    `json:"channels"`
	Streams        int    `json:"streams,omitempty"`
	CoupledStreams int    `json:"coupled_streams,omitempty"`
	Mapping        []int  `json:"mapping,omitempty"`
	Bitrate        int    `json:"bitrate"`
	FrameSize      int    `json:"frame_size"`
	AudioFormat    int    `json:"audio_format,omitempty"`

	// EpochUs is the server clock reading at media time zero
	EpochUs int64 `json:"epoch_us"`
}

// StreamEnd is sent when the source is exhausted
type StreamEnd struct {
	Reason string `json:"reason"`
}

// ClientStats reports what the client received and decoded
type ClientStats struct {
	Received uint64 `json:"received"`
	Decoded  uint64 `json:"decoded"`
	Lost     uint64 `json:"lost"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp
}
