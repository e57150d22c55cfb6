// ABOUTME: Audio encoder package for compressing PCM frames into packets
// ABOUTME: Provides the Encoder contract, factory and Opus/AC-3/E-AC-3 backends
// Package encode provides the audio encoders used by a streaming session.
//
// Supports: low-delay multistream Opus (CBR), AC-3, E-AC-3
//
// Every encoder consumes exactly Channels*FrameSize() interleaved int16
// samples per call and writes one packet into a caller-owned audio.Buffer.
//
// Example:
//
//	enc, err := encode.New(encode.CodecOpus)
//	err = enc.Init(config)
//	packet := audio.NewBuffer(encode.PacketCapacity(encode.CodecOpus, config))
//	err = enc.Encode(samples, packet)
package encode
