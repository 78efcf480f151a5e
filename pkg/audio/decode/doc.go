// ABOUTME: Audio decoder package for whole-file loading
// ABOUTME: Provides a Loader plus decoders for PCM, WAV, MP3, FLAC and Ogg Opus
// Package decode turns audio files into fully decoded chunks.
//
// Supports: raw PCM (16-bit and 24-bit), WAV, MP3, FLAC, Ogg Opus
//
// All decoders output interleaved int32 samples in 24-bit range. The
// Loader picks a decoder from the file extension, reads the file through
// an afero filesystem (or over HTTP) and converts the result to the
// device spec.
//
// Example:
//
//	loader := decode.NewLoader(afero.NewOsFs(), spec)
//	chunk, err := loader.Load(ctx, "sounds/beep.wav")
package decode
