package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	mp3lib "github.com/hajimehoshi/go-mp3"

	"github.com/ashverse/animato/pkg/fault"
)

// Decode parses an encoded audio artifact into a mono [Clip]. format is the
// tag reported by the TTS adapter (lower-cased; a leading dot is tolerated).
// Unsupported formats fail with a decode_failed fault.
func Decode(data []byte, format string) (Clip, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	switch format {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	default:
		return Clip{}, fault.Newf(fault.DecodeFailed, "unsupported audio format %q", format)
	}
}

// ─── WAV ─────────────────────────────────────────────────────────────────────

// decodeWAV parses a RIFF/WAVE container holding 16-bit PCM. Chunks other
// than "fmt " and "data" are skipped.
func decodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fault.New(fault.DecodeFailed, "not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []byte
		haveFmt       bool
	)

	// Walk the chunk list.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate a truncated final chunk
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fault.New(fault.DecodeFailed, "wav: fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 { // PCM
				return Clip{}, fault.Newf(fault.DecodeFailed, "wav: unsupported audio format code %d", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || pcm == nil {
		return Clip{}, fault.New(fault.DecodeFailed, "wav: missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return Clip{}, fault.Newf(fault.DecodeFailed, "wav: unsupported bit depth %d", bitsPerSample)
	}
	if sampleRate <= 0 || channels <= 0 {
		return Clip{}, fault.New(fault.DecodeFailed, "wav: invalid fmt chunk")
	}

	return FromPCM16(pcm, sampleRate, channels), nil
}

// EncodeWAV writes a mono 16-bit PCM WAV file around the given samples.
// Used by adapters that must hand a complete artifact to an HTTP API and by
// tests that need a real decodable clip.
func EncodeWAV(clip Clip) []byte {
	pcm := clip.Int16()
	dataLen := len(pcm) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(clip.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(clip.SampleRate*2)) // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))                 // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))                // bits per sample
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	_ = binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

// ─── MP3 ─────────────────────────────────────────────────────────────────────

// decodeMP3 decodes an MP3 stream. go-mp3 always emits 16-bit stereo PCM at
// the stream's sample rate; the result is down-mixed to mono.
func decodeMP3(data []byte) (Clip, error) {
	dec, err := mp3lib.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fault.Wrap(fault.DecodeFailed, "mp3: open stream", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fault.Wrap(fault.DecodeFailed, "mp3: decode stream", err)
	}

	return FromPCM16(pcm, dec.SampleRate(), 2), nil
}
