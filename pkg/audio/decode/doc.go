// ABOUTME: Audio decoder package for monitoring streams and reading files
// ABOUTME: Provides Opus packet decoders and MP3/FLAC file streams
// Package decode turns encoded audio back into interleaved int16 PCM.
//
// Packet decoders (Decoder): single-stream Opus through libopus and
// multistream Opus for the surround topologies.
//
// File streams (Stream): MP3 and FLAC files at their native rate and
// channel count.
//
// Example:
//
//	dec, err := decode.NewOpus(streamConfig, frameSize)
//	pcm, err := dec.Decode(packet)
package decode
