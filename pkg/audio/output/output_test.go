// ABOUTME: Audio output tests
// ABOUTME: Verifies interface conformance and volume scaling
package output

import (
	"encoding/binary"
	"testing"
)

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestWriteBeforeOpen(t *testing.T) {
	out := NewOto()
	if err := out.Write([]int16{1, 2}); err == nil {
		t.Error("expected error writing before Open")
	}
}

func TestVolume(t *testing.T) {
	out := NewOto()
	if out.Volume() != 100 || out.Muted() {
		t.Fatalf("unexpected initial state volume=%d muted=%v", out.Volume(), out.Muted())
	}

	out.SetVolume(150)
	if out.Volume() != 100 {
		t.Errorf("Volume() = %d, want 100", out.Volume())
	}
	out.SetVolume(-5)
	if out.Volume() != 0 {
		t.Errorf("Volume() = %d, want 0", out.Volume())
	}
}

func TestEncodeSamples(t *testing.T) {
	tests := []struct {
		name   string
		volume int
		muted  bool
		in     int16
		want   int16
	}{
		{"full volume", 100, false, 1000, 1000},
		{"half volume", 50, false, 1000, 500},
		{"negative", 50, false, -1000, -500},
		{"muted", 100, true, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 2)
			encodeSamples(buf, []int16{tt.in}, tt.volume, tt.muted)
			if got := int16(binary.LittleEndian.Uint16(buf)); got != tt.want {
				t.Errorf("encoded %d, want %d", got, tt.want)
			}
		})
	}
}
