package wav

import "encoding/binary"

const (
	// HeaderSize is the fixed RIFF/WAVE header length produced by Encode.
	HeaderSize = 44

	// DefaultSampleRate is the engine-wide capture rate.
	DefaultSampleRate = 16000

	bytesPerSample = 2
	formatPCM      = 1
	channelsMono   = 1
	bitsPerSample  = 16
)

// Payload is a self-contained RIFF/WAVE byte container: 44-byte header
// followed by 16-bit little-endian mono PCM. Immutable once built.
type Payload []byte

// Encode converts mono float32 samples into a Payload.
//
// The function is pure and total: any non-negative-length input yields a
// valid container, including a 44-byte zero-data one for empty input.
// Samples are clamped to [-1, 1] and quantized with symmetric scaling:
// negative values scale by 32768, non-negative by 32767. The asymmetry
// avoids int16 overflow at full negative swing and must not be changed,
// downstream consumers depend on bit-exact output.
func Encode(samples []float32, sampleRate int) Payload {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	dataLen := len(samples) * bytesPerSample
	buf := make([]byte, HeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], channelsMono)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*bytesPerSample))
	binary.LittleEndian.PutUint16(buf[32:34], bytesPerSample) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(quantize(s)))
	}
	return Payload(buf)
}

func quantize(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}
