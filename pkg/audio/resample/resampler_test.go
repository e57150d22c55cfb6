// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation resampling between sample rates
package resample

import (
	"testing"
)

func ramp(n int, step int) []int16 {
	input := make([]int16, n)
	for i := range input {
		input[i] = int16(i * step)
	}
	return input
}

func TestNew(t *testing.T) {
	r := New(44100, 48000, 2)

	if r.inputRate != 44100 || r.outputRate != 48000 || r.channels != 2 {
		t.Errorf("unexpected resampler %+v", r)
	}
	if r.Passthrough() {
		t.Error("44100 -> 48000 should not be passthrough")
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(44100, 48000, 2)

	input := ramp(200, 100)
	expectedSize := int(float64(len(input)) * 48000 / 44100)
	output := make([]int16, expectedSize+2)

	n := r.Resample(input, output)

	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	if n < expectedSize-10 || n > expectedSize+10 {
		t.Errorf("expected ~%d samples, got %d", expectedSize, n)
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(48000, 44100, 2)

	input := ramp(200, 100)
	expectedSize := int(float64(len(input)) * 44100 / 48000)
	output := make([]int16, expectedSize+2)

	n := r.Resample(input, output)

	if n < expectedSize-10 || n > expectedSize+10 {
		t.Errorf("expected ~%d samples, got %d", expectedSize, n)
	}
}

func TestResampleSameRate(t *testing.T) {
	r := New(48000, 48000, 2)

	input := ramp(200, 100)
	output := make([]int16, len(input))
	n := r.Resample(input, output)

	if n != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), n)
	}
	for i := range input {
		if output[i] != input[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, input[i], output[i])
		}
	}
}

func TestResampleStereo(t *testing.T) {
	r := New(44100, 48000, 2)

	input := make([]int16, 20)
	for i := 0; i < 10; i++ {
		input[i*2] = 1000
		input[i*2+1] = -1000
	}

	output := make([]int16, 30)
	n := r.Resample(input, output)

	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	for i := 0; i < n/2; i++ {
		if output[i*2] != 1000 || output[i*2+1] != -1000 {
			t.Fatalf("frame %d: got L=%d R=%d", i, output[i*2], output[i*2+1])
		}
	}
}

func TestResampleChunksAreContinuous(t *testing.T) {
	// a ramp split into chunks must resample like the whole ramp
	whole := New(44100, 48000, 1)
	chunked := New(44100, 48000, 1)

	input := ramp(441, 10)
	ref := make([]int16, 600)
	refN := whole.Resample(input, ref)

	var got []int16
	buf := make([]int16, 200)
	for start := 0; start < len(input); start += 147 {
		n := chunked.Resample(input[start:start+147], buf)
		got = append(got, buf[:n]...)
	}

	if len(got) != refN {
		t.Fatalf("chunked produced %d samples, whole produced %d", len(got), refN)
	}
	for i := range got {
		diff := int(got[i]) - int(ref[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: chunked %d, whole %d", i, got[i], ref[i])
		}
	}
}

func TestResampleLargeRatioUp(t *testing.T) {
	r := New(44100, 192000, 2)

	input := ramp(200, 10)
	output := make([]int16, int(float64(len(input))*192000/44100)+2)

	n := r.Resample(input, output)
	if n < len(input)*3 {
		t.Errorf("expected at least 3x upsampling, got %d from %d", n, len(input))
	}
}

func TestResampleLargeRatioDown(t *testing.T) {
	r := New(192000, 48000, 2)

	input := ramp(200, 10)
	output := make([]int16, len(input))

	n := r.Resample(input, output)
	if n == 0 {
		t.Fatal("resampler produced no output")
	}
	if n > len(input)/2 {
		t.Errorf("expected at most 1/2 samples after downsampling, got %d from %d", n, len(input))
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := New(44100, 48000, 2)

	if n := r.Resample(nil, make([]int16, 100)); n != 0 {
		t.Errorf("expected 0 samples from empty input, got %d", n)
	}
}

func TestReset(t *testing.T) {
	r := New(44100, 48000, 1)
	r.Resample(ramp(10, 1), make([]int16, 20))
	r.Reset()

	if r.primed || r.position != 0 {
		t.Errorf("state not reset: primed=%v position=%v", r.primed, r.position)
	}
}
