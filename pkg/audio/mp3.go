package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MP3 body into PCM samples. The decoder always emits
// 16-bit stereo at the stream's native sample rate.
func DecodeMP3(data []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return PCM{}, fmt.Errorf("audio: read mp3 samples: %w", err)
	}

	pcm := DecodeRaw(raw, dec.SampleRate())
	pcm.Channels = 2
	return pcm, nil
}
