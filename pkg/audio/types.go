// ABOUTME: Sample conversion helpers shared by encoders, sources and decoders
// ABOUTME: Converts between int16 PCM, 24-bit int32 working samples and float
package audio

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleToInt16 converts a 24-bit int32 sample to int16
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// Int16ToFloat converts an int16 sample to the [-1, 1) float range
func Int16ToFloat(sample int16) float64 {
	return float64(sample) / 32768.0
}

// Int16ToFloat32 is Int16ToFloat for float32 encoder input
func Int16ToFloat32(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatToInt16 converts a float sample to int16, clipping out of range values
func FloatToInt16(sample float64) int16 {
	v := sample * 32768.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// ClampInt16 saturates a wider accumulator into the int16 range
func ClampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
