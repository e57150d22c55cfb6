// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines stream topologies, encoding requests and packet buffers
// Package audio provides the types shared by every encoder backend.
//
//   - StreamConfig: the six fixed Opus multistream topologies and MapStream,
//     which picks one from a channel count and quality tier
//   - Config: the per-stream encoding request
//   - Buffer: a fixed-capacity packet buffer with a logical length
//
// Example:
//
//	sc := audio.SelectStreamConfig(6, false)
//	frameSize := sc.FrameSize(5) // 240 samples per channel
//	packet := audio.NewBuffer(4000 * sc.Streams)
package audio
