// ABOUTME: E-AC-3 encoder on top of the FFmpeg transcoding pipeline
// ABOUTME: 256 kbps with the codec's negotiated frame size
package encode

// EAC3Encoder encodes E-AC-3 (Dolby Digital Plus) frames
type EAC3Encoder struct {
	*transcoder
}

var eac3Params = transcoderParams{
	codec:           codecIDEAC3,
	bitrate:         256000,
	samplesPerFrame: 1536,
}

// NewEAC3 creates an uninitialized E-AC-3 encoder
func NewEAC3() *EAC3Encoder {
	return &EAC3Encoder{newTranscoder(eac3Params, nativeLibrary())}
}
