// Package audio provides the audio post-processing primitives used by the
// synthesis orchestrator: decoding provider output (WAV, MP3, raw PCM) into
// samples, measuring playback duration, and deriving the windowed RMS volume
// envelope that drives client-side mouth sync.
package audio

import (
	"fmt"
	"time"
)

// PCM holds decoded 16-bit linear PCM samples. Multi-channel data is
// interleaved (frame = one sample per channel).
type PCM struct {
	// Samples are signed 16-bit samples, interleaved across channels.
	Samples []int16

	// SampleRate in Hz (e.g., 24000, 44100).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Duration returns the playback duration of the clip.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// DurationMS returns the playback duration in whole milliseconds.
func (p PCM) DurationMS() int {
	return int(p.Duration() / time.Millisecond)
}

// Decode decodes an audio file body in the given format ("wav", "mp3" or
// "pcm") into PCM samples. Raw "pcm" bodies are assumed to be 16-bit mono at
// rawPCMRate, the rate the remote synthesis API emits for that format.
func Decode(data []byte, format string) (PCM, error) {
	switch format {
	case "wav":
		return DecodeWAV(data)
	case "mp3":
		return DecodeMP3(data)
	case "pcm":
		return DecodeRaw(data, rawPCMRate), nil
	default:
		return PCM{}, fmt.Errorf("audio: cannot decode format %q", format)
	}
}

// rawPCMRate is the sample rate of headerless PCM returned by the remote
// synthesis API when response_format is "pcm".
const rawPCMRate = 24000

// DecodeRaw interprets data as headerless little-endian 16-bit mono PCM at
// the given sample rate. A trailing odd byte is ignored.
func DecodeRaw(data []byte, sampleRate int) PCM {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return PCM{Samples: samples, SampleRate: sampleRate, Channels: 1}
}
