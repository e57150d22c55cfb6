// ABOUTME: Binary audio packet framing
// ABOUTME: Header is [type:1][sequence:4][timestamp_us:8] big-endian followed by the payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// AudioPacketType marks a binary message carrying one encoded packet
	AudioPacketType = 1

	// HeaderSize is the fixed binary header length
	HeaderSize = 1 + 4 + 8
)

var ErrShortPacket = errors.New("binary message shorter than header")

// AudioPacket is one encoded packet with its position in the stream
type AudioPacket struct {
	Sequence    uint32
	TimestampUs int64
	Payload     []byte
}

// AppendAudioPacket appends the framed packet to dst
func AppendAudioPacket(dst []byte, p AudioPacket) []byte {
	dst = append(dst, AudioPacketType)
	dst = binary.BigEndian.AppendUint32(dst, p.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.TimestampUs))
	return append(dst, p.Payload...)
}

// ParseAudioPacket decodes a framed packet. Payload aliases data.
func ParseAudioPacket(data []byte) (AudioPacket, error) {
	if len(data) < HeaderSize {
		return AudioPacket{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if data[0] != AudioPacketType {
		return AudioPacket{}, fmt.Errorf("unknown binary message type %d", data[0])
	}
	return AudioPacket{
		Sequence:    binary.BigEndian.Uint32(data[1:5]),
		TimestampUs: int64(binary.BigEndian.Uint64(data[5:13])),
		Payload:     data[HeaderSize:],
	}, nil
}
