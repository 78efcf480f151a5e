// ABOUTME: Sample encoders for device output buffers
// ABOUTME: Turns 24-bit int32 samples into the byte layout a device expects
// Package encode converts decoded samples into device buffers.
//
// Supports the sample formats a device can negotiate: unsigned 8-bit,
// signed 16-bit, signed 32-bit and 32-bit float, all little-endian.
//
// Example:
//
//	encoder, err := encode.New(spec.Format)
//	data, err := encoder.Encode(chunk.Samples)
package encode
