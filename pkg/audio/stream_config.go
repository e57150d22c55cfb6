// ABOUTME: Fixed multistream topologies keyed by channel count and quality tier
// ABOUTME: Selects sample rate, stream layout, channel mapping and bitrate
package audio

import "fmt"

// SampleRate is the rate every topology and the transcoding encoders run at
const SampleRate = 48000

// StreamConfigID identifies one of the fixed topologies
type StreamConfigID int

const (
	Stereo StreamConfigID = iota
	HighStereo
	Surround51
	HighSurround51
	Surround71
	HighSurround71
	MaxStreamConfig
)

var streamConfigNames = [...]string{
	Stereo:         "stereo",
	HighStereo:     "high-stereo",
	Surround51:     "surround51",
	HighSurround51: "high-surround51",
	Surround71:     "surround71",
	HighSurround71: "high-surround71",
}

func (id StreamConfigID) String() string {
	if id < 0 || id >= MaxStreamConfig {
		return fmt.Sprintf("StreamConfigID(%d)", int(id))
	}
	return streamConfigNames[id]
}

// StreamConfig describes how channels are split into Opus streams.
//
// Mapping has one entry per input channel (FL FR FC LFE BL BR SL SR order).
// Values below 2*CoupledStreams address the left/right half of a coupled
// stream; the rest address mono streams.
type StreamConfig struct {
	SampleRate     int
	ChannelCount   int
	Streams        int
	CoupledStreams int
	Mapping        []byte
	Bitrate        int
}

var (
	mapStereo         = []byte{0, 1}
	mapSurround51     = []byte{0, 1, 4, 5, 2, 3}
	mapHighSurround51 = []byte{0, 1, 2, 3, 4, 5}
	mapSurround71     = []byte{0, 1, 6, 7, 2, 3, 4, 5}
	mapHighSurround71 = []byte{0, 1, 2, 3, 4, 5, 6, 7}
)

var streamConfigs = [MaxStreamConfig]StreamConfig{
	Stereo:         {SampleRate, 2, 1, 1, mapStereo, 96000},
	HighStereo:     {SampleRate, 2, 1, 1, mapStereo, 512000},
	Surround51:     {SampleRate, 6, 4, 2, mapSurround51, 256000},
	HighSurround51: {SampleRate, 6, 6, 0, mapHighSurround51, 1536000},
	Surround71:     {SampleRate, 8, 5, 3, mapSurround71, 450000},
	HighSurround71: {SampleRate, 8, 8, 0, mapHighSurround71, 2048000},
}

// MapStream picks the topology for a channel count and quality tier.
// Channel counts other than 2, 6 and 8 fall back to Stereo; callers are
// expected to reject them upstream (see Config.Validate).
func MapStream(channels int, highQuality bool) StreamConfigID {
	shift := StreamConfigID(0)
	if highQuality {
		shift = 1
	}

	switch channels {
	case 2:
		return Stereo + shift
	case 6:
		return Surround51 + shift
	case 8:
		return Surround71 + shift
	}
	return Stereo
}

// LookupStreamConfig returns a copy of the topology for id
func LookupStreamConfig(id StreamConfigID) (StreamConfig, error) {
	if id < 0 || id >= MaxStreamConfig {
		return StreamConfig{}, fmt.Errorf("unknown stream config %d", int(id))
	}
	sc := streamConfigs[id]
	sc.Mapping = append([]byte(nil), sc.Mapping...)
	return sc, nil
}

// SelectStreamConfig is MapStream followed by LookupStreamConfig
func SelectStreamConfig(channels int, highQuality bool) StreamConfig {
	sc, _ := LookupStreamConfig(MapStream(channels, highQuality))
	return sc
}

// StreamConfigs returns copies of every topology in id order
func StreamConfigs() []StreamConfig {
	out := make([]StreamConfig, 0, MaxStreamConfig)
	for id := Stereo; id < MaxStreamConfig; id++ {
		sc, _ := LookupStreamConfig(id)
		out = append(out, sc)
	}
	return out
}

// FrameSize returns samples per channel for one packet of packetDurationMs.
// The result is never below one sample.
func (c StreamConfig) FrameSize(packetDurationMs float64) int {
	n := int(packetDurationMs * float64(c.SampleRate) / 1000)
	if n < 1 {
		return 1
	}
	return n
}

// Validate checks the stream/mapping invariants
func (c StreamConfig) Validate() error {
	if c.Streams < 1 {
		return fmt.Errorf("stream count %d must be positive", c.Streams)
	}
	if c.CoupledStreams < 0 || c.CoupledStreams > c.Streams {
		return fmt.Errorf("coupled streams %d out of range [0, %d]", c.CoupledStreams, c.Streams)
	}
	if len(c.Mapping) != c.ChannelCount {
		return fmt.Errorf("mapping has %d entries for %d channels", len(c.Mapping), c.ChannelCount)
	}
	slots := c.Streams + c.CoupledStreams
	for i, m := range c.Mapping {
		if int(m) >= slots {
			return fmt.Errorf("mapping[%d]=%d exceeds %d decoded slots", i, m, slots)
		}
	}
	return nil
}
