package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVInfo describes the stream parameters found in a RIFF/WAVE header.
type WAVInfo struct {
	AudioFormat   uint16 // 1 = PCM
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataSize      uint32
}

// IsPCM reports whether the stream is uncompressed linear PCM.
// WAVE_FORMAT_EXTENSIBLE (0xFFFE) is accepted since ffmpeg may emit it.
func (i WAVInfo) IsPCM() bool {
	return i.AudioFormat == 1 || i.AudioFormat == 0xFFFE
}

// HasRIFFHeader reports whether data starts with a RIFF/WAVE signature.
func HasRIFFHeader(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// InspectWAV walks the RIFF chunks of a WAV file and returns its format
// parameters. Chunks other than "fmt " and "data" (LIST, fact, ...) are skipped.
func InspectWAV(data []byte) (WAVInfo, error) {
	var info WAVInfo
	if !HasRIFFHeader(data) {
		return info, fmt.Errorf("not a RIFF/WAVE file")
	}

	var haveFmt, haveData bool
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return info, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			info.DataSize = size
			haveData = true
		}
		if haveFmt && haveData {
			return info, nil
		}

		// Chunks are word aligned.
		next := body + int(size) + int(size&1)
		if next <= off {
			break
		}
		off = next
	}

	if !haveFmt {
		return info, fmt.Errorf("missing fmt chunk")
	}
	return info, nil
}
