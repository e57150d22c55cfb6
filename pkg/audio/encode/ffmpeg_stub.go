//go:build noffmpeg

// ABOUTME: FFmpeg stub when the native libraries are not linked
// ABOUTME: AC-3 and E-AC-3 encoders fail Init with ErrCodecNotFound
package encode

import "fmt"

type stubLibrary struct{}

func nativeLibrary() ffLibrary {
	return stubLibrary{}
}

func (stubLibrary) newResampler() (ffResampler, error) {
	return stubResampler{}, nil
}

func (stubLibrary) openCodec(params codecParams) (ffCodec, error) {
	return nil, fmt.Errorf("%w: %s (FFmpeg support not enabled, build without -tags noffmpeg)", ErrCodecNotFound, params.id)
}

type stubResampler struct{}

func (stubResampler) convert(dst, src ffFrame) error {
	return fmt.Errorf("FFmpeg support not enabled")
}

func (stubResampler) free() {}
