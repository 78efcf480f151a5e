// ABOUTME: Audio output package for channel-based playback
// ABOUTME: Provides the Device interface with oto and headless backends
// Package output provides mixer devices that play one chunk per channel.
//
// A Device owns a fixed set of playback channels. Playback runs on
// device-owned goroutines; when a channel finishes, the device calls the
// hook registered with OnChannelFinished from that goroutine.
//
// Example:
//
//	dev := output.NewOto()
//	spec, err := dev.Open(audio.Spec{Frequency: 22050})
//	dev.AllocateChannels(32)
//	dev.OnChannelFinished(func(ch int) { ... })
//	err = dev.PlayChannel(0, chunk, 0)
package output
