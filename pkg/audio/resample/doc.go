// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded chunks between sample rates and speaker counts
// Package resample provides sample rate and channel count conversion for
// decoded chunks, so every chunk handed to a device matches its spec.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling.
//
// Example:
//
//	samples = resample.Remix(samples, 1, 2)
//	samples = resample.Convert(samples, 44100, 22050, 2)
package resample
