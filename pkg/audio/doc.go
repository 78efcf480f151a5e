// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Spec, Format, Chunk types and sample conversion functions
// Package audio provides the fundamental types shared by the loader, the
// output devices and the channel mixer.
//
// This package defines:
//   - Spec: negotiated device parameters (frequency, format word, speaker channels)
//   - Format: layout of decoded samples
//   - Chunk: a decoded waveform owned by exactly one playback request
//
// Samples are carried as int32 values in the 24-bit range so that 16-bit,
// 24-bit and float sources share one representation.
//
// Example:
//
//	spec := audio.Spec{Frequency: 44100}.WithDefaults()
//	fmt.Println(spec.Layout(), spec.BitDepth()) // stereo 16
package audio
