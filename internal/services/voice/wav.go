package voice

import (
	"bytes"
	"encoding/binary"
)

// encodeWAV serializes mono float32 samples as a 16-bit PCM WAV file.
// Whisper endpoints are picky about container format, so the header is
// written by hand rather than shelling out to a converter.
func encodeWAV(samples []float32, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)

	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)
	dataSize := uint32(len(samples) * bitsPerSample / 8)

	buf := bytes.NewBuffer(make([]byte, 0, 44+int(dataSize)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))   //
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))    //
	binary.Write(buf, binary.LittleEndian, byteRate)              //
	binary.Write(buf, binary.LittleEndian, blockAlign)            //
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample)) //

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)

	for _, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		binary.Write(buf, binary.LittleEndian, int16(sample*32767))
	}

	return buf.Bytes()
}

// rmsEnergy computes the mean square energy of a frame for voice
// activity detection
func rmsEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return sum / float64(len(samples))
}
