package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTooShort      = errors.New("wav: payload shorter than header")
	ErrBadContainer  = errors.New("wav: not a RIFF/WAVE container")
	ErrUnsupported   = errors.New("wav: unsupported encoding")
	ErrTruncatedData = errors.New("wav: data chunk exceeds payload")
)

// Info holds the header fields a player needs.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataLen    int
}

// DecodeInfo parses the canonical 44-byte header produced by Encode and
// compatible encoders. Only 16-bit PCM is accepted.
func DecodeInfo(p []byte) (Info, error) {
	if len(p) < HeaderSize {
		return Info{}, ErrTooShort
	}
	if string(p[0:4]) != "RIFF" || string(p[8:12]) != "WAVE" || string(p[12:16]) != "fmt " {
		return Info{}, ErrBadContainer
	}

	format := binary.LittleEndian.Uint16(p[20:22])
	bits := binary.LittleEndian.Uint16(p[34:36])
	if format != formatPCM || bits != bitsPerSample {
		return Info{}, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupported, format, bits)
	}

	info := Info{
		SampleRate: int(binary.LittleEndian.Uint32(p[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(p[22:24])),
		BitDepth:   int(bits),
		DataLen:    int(binary.LittleEndian.Uint32(p[40:44])),
	}
	if info.DataLen > len(p)-HeaderSize {
		return Info{}, ErrTruncatedData
	}
	return info, nil
}

// PCM returns the raw 16-bit sample bytes of a payload.
func PCM(p []byte) ([]byte, error) {
	info, err := DecodeInfo(p)
	if err != nil {
		return nil, err
	}
	return p[HeaderSize : HeaderSize+info.DataLen], nil
}

// DecodeSamples converts a payload back into float32 samples. Inverse of
// Encode up to one quantization step per sample.
func DecodeSamples(p []byte) ([]float32, int, error) {
	info, err := DecodeInfo(p)
	if err != nil {
		return nil, 0, err
	}
	data := p[HeaderSize : HeaderSize+info.DataLen]
	samples := make([]float32, len(data)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			samples[i] = float32(v) / 32768
		} else {
			samples[i] = float32(v) / 32767
		}
	}
	return samples, info.SampleRate, nil
}
