// ABOUTME: AC-3 encoder on top of the FFmpeg transcoding pipeline
// ABOUTME: 320 kbps, 1536 samples per frame, frame size enforced at Init
package encode

// AC3Encoder encodes AC-3 (Dolby Digital) frames
type AC3Encoder struct {
	*transcoder
}

var ac3Params = transcoderParams{
	codec:           codecIDAC3,
	bitrate:         320000,
	samplesPerFrame: 1536,
	strict:          true,
}

// NewAC3 creates an uninitialized AC-3 encoder
func NewAC3() *AC3Encoder {
	return &AC3Encoder{newTranscoder(ac3Params, nativeLibrary())}
}
