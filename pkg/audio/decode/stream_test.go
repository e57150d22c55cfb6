// ABOUTME: Tests for the MP3 and FLAC file streams
// ABOUTME: Covers format dispatch and error handling for bad files
package decode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestOpenFileErrors(t *testing.T) {
	tests := []struct {
		name        string
		path        func(t *testing.T) string
		errContains string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.mp3") }, "not found"},
		{"unsupported", func(t *testing.T) string { return writeFile(t, "a.wav", []byte("RIFF")) }, "unsupported audio format"},
		{"bad flac", func(t *testing.T) string { return writeFile(t, "a.flac", []byte("not a flac file")) }, "FLAC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := OpenFile(tt.path(t))
			if err == nil {
				stream.Close()
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestFLACToInt16(t *testing.T) {
	tests := []struct {
		bitDepth int
		in       int32
		want     int16
	}{
		{16, 1234, 1234},
		{24, 0x7fff00, 0x7fff},
		{24, -256, -1},
		{8, 100, 100 << 8},
	}

	for _, tt := range tests {
		s := &FLACStream{bitDepth: tt.bitDepth}
		if got := s.toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%d @%d bits) = %d, want %d", tt.in, tt.bitDepth, got, tt.want)
		}
	}
}
