// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Interpolates interleaved int16 frames and carries state across chunks
package resample

// Resampler performs linear interpolation to convert between sample rates.
// The last input frame of each chunk is kept so consecutive chunks join
// without a discontinuity.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // in input frames, 0 = prev when primed
	prev       []int16
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]int16, channels),
	}
}

// Passthrough reports whether input and output rates match
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// frame returns sample ch of frame i in the virtual stream prev+input
func (r *Resampler) frame(input []int16, i, ch int) int16 {
	if r.primed {
		if i == 0 {
			return r.prev[ch]
		}
		i--
	}
	return input[i*r.channels+ch]
}

// Resample consumes all of input and writes interpolated frames to output.
// output should hold at least OutputSamplesNeeded(len(input)) + channels
// samples; frames that do not fit are dropped. Returns samples written.
func (r *Resampler) Resample(input []int16, output []int16) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	if r.Passthrough() {
		n := copy(output, input[:inputFrames*r.channels])
		return n - n%r.channels
	}

	total := inputFrames
	if r.primed {
		total++
	}
	outputFrames := len(output) / r.channels

	outIdx := 0
	for {
		idx := int(r.position)
		if idx >= total-1 {
			break
		}
		if outIdx < outputFrames {
			frac := r.position - float64(idx)
			for ch := 0; ch < r.channels; ch++ {
				s1 := float64(r.frame(input, idx, ch))
				s2 := float64(r.frame(input, idx+1, ch))
				output[outIdx*r.channels+ch] = int16(s1*(1.0-frac) + s2*frac)
			}
			outIdx++
		}
		r.position += r.ratio
	}

	// the last input frame becomes frame 0 of the next chunk
	copy(r.prev, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.position -= float64(total - 1)
	r.primed = true

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
