package voice

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []float32{0.0, 0.5, -0.5, 1.0}
	data := encodeWAV(samples, 16000)

	if len(data) != 44+len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Errorf("Expected RIFF magic, got %q", data[0:4])
	}
	if string(data[8:12]) != "WAVE" {
		t.Errorf("Expected WAVE format, got %q", data[8:12])
	}
	if string(data[36:40]) != "data" {
		t.Errorf("Expected data chunk, got %q", data[36:40])
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}

	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if bitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", bitsPerSample)
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if dataSize != uint32(len(samples)*2) {
		t.Errorf("Expected data size %d, got %d", len(samples)*2, dataSize)
	}
}

func TestEncodeWAVClampsSamples(t *testing.T) {
	data := encodeWAV([]float32{2.0, -2.0}, 16000)

	first := int16(binary.LittleEndian.Uint16(data[44:46]))
	second := int16(binary.LittleEndian.Uint16(data[46:48]))

	if first != 32767 {
		t.Errorf("Expected clipped sample 32767, got %d", first)
	}
	if second != -32767 {
		t.Errorf("Expected clipped sample -32767, got %d", second)
	}
}

func TestRMSEnergy(t *testing.T) {
	if got := rmsEnergy(nil); got != 0 {
		t.Errorf("Expected zero energy for empty frame, got %f", got)
	}

	silence := make([]float32, 128)
	if got := rmsEnergy(silence); got != 0 {
		t.Errorf("Expected zero energy for silence, got %f", got)
	}

	tone := []float32{0.5, -0.5, 0.5, -0.5}
	if got := rmsEnergy(tone); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected energy 0.25, got %f", got)
	}
}
