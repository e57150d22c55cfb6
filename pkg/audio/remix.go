// ABOUTME: Channel remixing between stereo and the surround layouts
// ABOUTME: Upmixes stereo/mono to 5.1/7.1 and folds surround down to stereo
package audio

// Input channel positions in WAVE speaker order
const (
	chFL = iota
	chFR
	chFC
	chLFE
	chBL
	chBR
	chSL
	chSR
)

const foldGain = 0.7071

// Remix converts frames interleaved with srcChannels into dst interleaved
// with dstChannels. It returns the number of samples written, which is
// limited by whichever buffer runs out of frames first.
func Remix(dst []int16, dstChannels int, src []int16, srcChannels int) int {
	if dstChannels <= 0 || srcChannels <= 0 {
		return 0
	}
	frames := len(src) / srcChannels
	if f := len(dst) / dstChannels; f < frames {
		frames = f
	}

	for i := 0; i < frames; i++ {
		in := src[i*srcChannels : (i+1)*srcChannels]
		out := dst[i*dstChannels : (i+1)*dstChannels]
		remixFrame(out, in)
	}
	return frames * dstChannels
}

func remixFrame(out, in []int16) {
	switch {
	case len(in) == len(out):
		copy(out, in)
	case len(in) == 1:
		for ch := range out {
			out[ch] = 0
		}
		out[chFL] = in[0]
		if len(out) > 1 {
			out[chFR] = in[0]
		}
	case len(out) == 1:
		var sum int32
		for _, s := range in {
			sum += int32(s)
		}
		out[0] = int16(sum / int32(len(in)))
	case len(in) == 2 && len(out) >= 6:
		l, r := in[0], in[1]
		for ch := range out {
			out[ch] = 0
		}
		out[chFL] = l
		out[chFR] = r
		out[chFC] = int16((int32(l) + int32(r)) / 2)
		out[chBL] = l
		out[chBR] = r
		if len(out) >= 8 {
			out[chSL] = l
			out[chSR] = r
		}
	case len(out) == 2 && len(in) >= 6:
		foldDown(out, in)
	default:
		n := copy(out, in)
		for ch := n; ch < len(out); ch++ {
			out[ch] = 0
		}
	}
}

// foldDown mixes a 5.1 or 7.1 frame to stereo. LFE is dropped.
func foldDown(out, in []int16) {
	l := float64(in[chFL]) + foldGain*float64(in[chFC]) + foldGain*float64(in[chBL])
	r := float64(in[chFR]) + foldGain*float64(in[chFC]) + foldGain*float64(in[chBR])
	norm := 1 + 2*foldGain
	if len(in) >= 8 {
		l += foldGain * float64(in[chSL])
		r += foldGain * float64(in[chSR])
		norm += foldGain
	}
	out[0] = FloatToInt16(l / norm / 32768)
	out[1] = FloatToInt16(r / norm / 32768)
}
