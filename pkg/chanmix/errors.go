// ABOUTME: Error values returned by the mixer
// ABOUTME: Synchronous sentinels plus statuses delivered to completion callbacks
package chanmix

import "errors"

var (
	// ErrInvalidArgument is returned when Play gets no file
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted is returned when no channel is free
	ErrResourceExhausted = errors.New("out of available channels")

	// ErrInit is returned when the device cannot be opened
	ErrInit = errors.New("mixer init failed")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("mixer closed")

	// ErrLoadFailed is passed to the callback when a file could not be loaded
	ErrLoadFailed = errors.New("load failed")

	// ErrPlayFailed is passed to the callback when the device refused to play
	ErrPlayFailed = errors.New("play failed")

	// ErrCallbackFault is reported through OnError when a callback panics
	ErrCallbackFault = errors.New("completion callback panicked")
)
