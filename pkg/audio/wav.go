package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecodeWAV parses a RIFF/WAVE container and returns its PCM samples.
// The chunk list is walked rather than assuming a fixed 44-byte header
// because the fmt chunk size varies between encoders. Only 16-bit integer
// PCM is supported; that is the only layout the synthesis providers emit.
func DecodeWAV(wav []byte) (PCM, error) {
	if len(wav) < 12 {
		return PCM{}, errors.New("audio: WAV data too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return PCM{}, errors.New("audio: WAV data missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return PCM{}, errors.New("audio: WAV data missing WAVE identifier")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		foundFmt      bool
	)

	// Walk RIFF chunks starting after the 12-byte RIFF/WAVE header.
	// Chunks are word-aligned: odd sizes are padded by one byte.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && body+16 <= len(wav) {
				fmtData := wav[body:]
				channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return PCM{}, errors.New("audio: WAV data chunk precedes fmt chunk")
			}
			if bitsPerSample != 16 {
				return PCM{}, fmt.Errorf("audio: unsupported WAV bit depth %d (want 16)", bitsPerSample)
			}
			end := body + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			pcm := DecodeRaw(wav[body:end], sampleRate)
			pcm.Channels = channels
			return pcm, nil
		}

		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return PCM{}, errors.New("audio: WAV data missing data chunk")
}

// EncodeWAV serializes mono or interleaved 16-bit PCM into a minimal
// RIFF/WAVE container. Used by tests and by providers that return raw PCM
// but whose downstream consumers expect a container.
func EncodeWAV(p PCM) []byte {
	dataLen := len(p.Samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.SampleRate))
	byteRate := p.SampleRate * p.Channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(p.Channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}
