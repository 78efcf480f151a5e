// ABOUTME: Channel mixer facade package
// ABOUTME: Plays files on pooled device channels and reports completion on an event loop
// Package chanmix plays audio files on a fixed pool of mixer channels.
//
// Play claims a free channel, loads and starts the file in the
// background and returns at once. When the channel finishes, the
// callback runs exactly once on the goroutine that called Run, after the
// channel has been returned to the pool.
//
// Example:
//
//	m, err := chanmix.New(chanmix.Config{})
//	go m.Run(ctx)
//	_, err = m.Play("beep.wav", func(file string, channel int, err error) {
//		fmt.Println("done", file, channel, err)
//	})
package chanmix
