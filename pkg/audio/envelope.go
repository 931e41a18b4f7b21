package audio

import "math"

// EnvelopeWindowMS is the fixed analysis window for volume envelopes.
// The client assumes this slice length when syncing mouth movement.
const EnvelopeWindowMS = 20

// Envelope computes the windowed RMS volume sequence of the clip: one value
// per EnvelopeWindowMS of playback, normalized to [0, 1]. Multi-channel
// audio is mixed down to mono before analysis. A trailing partial window is
// analyzed over the samples it has.
func Envelope(p PCM) []float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 || len(p.Samples) == 0 {
		return nil
	}

	framesPerWindow := p.SampleRate * EnvelopeWindowMS / 1000
	if framesPerWindow <= 0 {
		return nil
	}

	totalFrames := len(p.Samples) / p.Channels
	windows := (totalFrames + framesPerWindow - 1) / framesPerWindow
	out := make([]float64, 0, windows)

	for w := 0; w < windows; w++ {
		start := w * framesPerWindow
		end := start + framesPerWindow
		if end > totalFrames {
			end = totalFrames
		}

		var sum float64
		for f := start; f < end; f++ {
			var mixed float64
			for c := 0; c < p.Channels; c++ {
				mixed += float64(p.Samples[f*p.Channels+c])
			}
			mixed /= float64(p.Channels)
			sum += mixed * mixed
		}
		rms := math.Sqrt(sum/float64(end-start)) / 32768.0
		out = append(out, rms)
	}
	return out
}

// SliceEnvelope returns the envelope windows covering the half-open playback
// interval [offsetMS, offsetMS+durationMS). Indices follow the original
// envelope's 20 ms grid, so concatenating adjacent slices reproduces the
// full envelope.
func SliceEnvelope(envelope []float64, offsetMS, durationMS int) []float64 {
	if len(envelope) == 0 || durationMS <= 0 {
		return nil
	}
	start := offsetMS / EnvelopeWindowMS
	end := (offsetMS + durationMS) / EnvelopeWindowMS
	if start < 0 {
		start = 0
	}
	if start >= len(envelope) {
		return nil
	}
	if end > len(envelope) {
		end = len(envelope)
	}
	if end <= start {
		end = start + 1
	}
	return envelope[start:end]
}
