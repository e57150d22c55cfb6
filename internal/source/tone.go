// ABOUTME: Test tone generator
// ABOUTME: Produces a sine with a distinct frequency on every channel
package source

import (
	"math"

	"github.com/mariotaku/Sunshine/pkg/audio"
)

const (
	toneBaseHz    = 440.0
	toneStepHz    = 110.0
	toneAmplitude = 0.5
	toneFullScale = 32767.0
)

// Tone generates a sine per channel; channel n plays 440 + 110*n Hz
type Tone struct {
	channels    int
	sampleIndex uint64
	freqs       []float64
}

// NewTone creates a tone source for channels
func NewTone(channels int) *Tone {
	freqs := make([]float64, channels)
	for ch := range freqs {
		freqs[ch] = toneBaseHz + toneStepHz*float64(ch)
	}
	return &Tone{channels: channels, freqs: freqs}
}

// Frequency returns the frequency played on channel ch
func (s *Tone) Frequency(ch int) float64 {
	return s.freqs[ch]
}

func (s *Tone) Read(samples []int16) (int, error) {
	frames := len(samples) / s.channels

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(audio.SampleRate)
		for ch, f := range s.freqs {
			v := math.Sin(2 * math.Pi * f * t)
			samples[i*s.channels+ch] = int16(v * toneFullScale * toneAmplitude)
		}
	}

	s.sampleIndex += uint64(frames)
	return frames * s.channels, nil
}

func (s *Tone) SampleRate() int { return audio.SampleRate }
func (s *Tone) Channels() int   { return s.channels }
func (s *Tone) Name() string    { return "test tone" }
func (s *Tone) Close() error    { return nil }
