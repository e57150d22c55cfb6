// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface and an oto implementation
// Package output provides audio playback for the stream monitor.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Write(samples)
package output
