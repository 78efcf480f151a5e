// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion, spec helpers and chunk ownership
package audio

import (
	"testing"
	"time"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 100 << 8, 100},
		{"negative", -100 << 8, -100},
		{"24bit positive", 1000000, 3906}, // 1000000 >> 8 = 3906
		{"24bit negative", -1000000, -3907},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleTo24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleTo24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected int32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"positive", [3]byte{0x56, 0x34, 0x12}, 0x123456},
		{"negative", [3]byte{0x00, 0xFF, 0xFF}, -256},
		{"max positive", [3]byte{0xFF, 0xFF, 0x7F}, Max24Bit},
		{"max negative", [3]byte{0x00, 0x00, 0x80}, Min24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestRoundTrip16Bit(t *testing.T) {
	// Test that 16-bit samples survive round-trip conversion
	samples := []int16{0, 100, -100, 1000, -1000, 32767, -32768}

	for _, original := range samples {
		sample32 := SampleFromInt16(original)
		result := SampleToInt16(sample32)
		if result != original {
			t.Errorf("round-trip failed: %d -> %d -> %d", original, sample32, result)
		}
	}
}

func TestRoundTrip24Bit(t *testing.T) {
	// Test that 24-bit samples survive round-trip conversion
	samples := []int32{0, 100000, -100000, Max24Bit, Min24Bit}

	for _, original := range samples {
		bytes := SampleTo24Bit(original)
		result := SampleFrom24Bit(bytes)
		// Mask to 24-bit for comparison
		expected := original & 0xFFFFFF
		if expected&0x800000 != 0 {
			expected |= ^0xFFFFFF
		}
		if result != expected {
			t.Errorf("round-trip failed: %d -> %v -> %d (expected %d)", original, bytes, result, expected)
		}
	}
}

func TestLayoutFor(t *testing.T) {
	tests := []struct {
		channels int
		expected Layout
	}{
		{0, Mono},
		{1, Mono},
		{2, Stereo},
		{4, Surround},
		{6, Surround},
	}

	for _, tt := range tests {
		if got := LayoutFor(tt.channels); got != tt.expected {
			t.Errorf("channels=%d: expected %s, got %s", tt.channels, tt.expected, got)
		}
	}
}

func TestSpecDefaults(t *testing.T) {
	spec := Spec{}.WithDefaults()

	if spec.Frequency != DefaultFrequency {
		t.Errorf("expected frequency %d, got %d", DefaultFrequency, spec.Frequency)
	}
	if spec.Format != FormatS16LE {
		t.Errorf("expected format %#x, got %#x", FormatS16LE, spec.Format)
	}
	if spec.BitDepth() != 16 {
		t.Errorf("expected bit depth 16, got %d", spec.BitDepth())
	}
	if spec.Layout() != Stereo {
		t.Errorf("expected stereo layout, got %s", spec.Layout())
	}

	custom := Spec{Frequency: 48000, Channels: 1}.WithDefaults()
	if custom.Frequency != 48000 || custom.Channels != 1 {
		t.Errorf("explicit fields were overwritten: %+v", custom)
	}
}

func TestSampleFromBits(t *testing.T) {
	if got := SampleFromBits(100, 16); got != 100<<8 {
		t.Errorf("16-bit: expected %d, got %d", 100<<8, got)
	}
	if got := SampleFromBits(0x123456, 24); got != 0x123456 {
		t.Errorf("24-bit: expected %d, got %d", 0x123456, got)
	}
	if got := SampleFromBits(1<<20, 32); got != 1<<12 {
		t.Errorf("32-bit: expected %d, got %d", 1<<12, got)
	}
	if got := SampleFromBits(-1, 8); got != -1<<16 {
		t.Errorf("8-bit: expected %d, got %d", -1<<16, got)
	}
}

func TestSampleFromFloatClips(t *testing.T) {
	if got := SampleFromFloat(2.0); got != Max24Bit {
		t.Errorf("expected clip to %d, got %d", Max24Bit, got)
	}
	if got := SampleFromFloat(-2.0); got != -Max24Bit {
		t.Errorf("expected clip to %d, got %d", -Max24Bit, got)
	}
	if got := SampleFromFloat(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestChunkDuration(t *testing.T) {
	chunk := NewChunk("tone.wav", Format{SampleRate: 1000, Channels: 2}, make([]int32, 1000))

	if chunk.Frames() != 500 {
		t.Errorf("expected 500 frames, got %d", chunk.Frames())
	}
	if chunk.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", chunk.Duration())
	}
}

func TestChunkFreeOnce(t *testing.T) {
	chunk := NewChunk("a.wav", Format{SampleRate: 8000, Channels: 1}, []int32{1, 2, 3})

	if chunk.Freed() {
		t.Fatal("new chunk should not be freed")
	}
	if !chunk.Free() {
		t.Fatal("first Free should succeed")
	}
	if chunk.Free() {
		t.Error("second Free should report false")
	}
	if chunk.Samples != nil {
		t.Error("samples should be released after Free")
	}

	var nilChunk *Chunk
	if nilChunk.Free() {
		t.Error("Free on nil chunk should report false")
	}
}
