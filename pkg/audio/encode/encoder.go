// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for device sample encoders
package encode

// Encoder encodes int32 samples to a device sample format
type Encoder interface {
	// Encode converts samples in 24-bit range to raw device bytes
	Encode(samples []int32) ([]byte, error)

	// SampleSize returns the number of bytes written per sample
	SampleSize() int
}
