// ABOUTME: Linear resampler and channel remixer for decoded chunks
// ABOUTME: Brings loaded waveforms to the device rate and speaker count
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input samples to the output rate.
// It returns the number of samples written to output.
func (r *Resampler) Resample(input []int32, output []int32) int {
	if len(input) == 0 || r.channels == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx >= inputFrames {
			break
		}

		frac := r.position - float64(inputIdx)
		next := inputIdx + 1
		if next >= inputFrames {
			// Hold the last frame instead of dropping the tail
			next = inputIdx
		}

		for ch := 0; ch < r.channels; ch++ {
			sample1 := input[inputIdx*r.channels+ch]
			sample2 := input[next*r.channels+ch]
			interpolated := float64(sample1)*(1.0-frac) + float64(sample2)*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	r.position -= float64(int(r.position))
	if r.position < 0 {
		r.position = 0
	}

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	if r.channels == 0 {
		return 0
	}
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// Convert resamples a whole interleaved buffer in one pass.
// Equal rates return the input unchanged.
func Convert(samples []int32, inputRate, outputRate, channels int) []int32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}

	r := New(inputRate, outputRate, channels)
	out := make([]int32, r.OutputSamplesNeeded(len(samples)))
	n := r.Resample(samples, out)
	return out[:n]
}

// Remix maps interleaved frames from one speaker count to another.
// Mono is duplicated on upmix; downmix to mono averages, other downmixes keep
// the leading channels.
func Remix(samples []int32, from, to int) []int32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}

	frames := len(samples) / from
	out := make([]int32, frames*to)

	for f := 0; f < frames; f++ {
		src := samples[f*from : f*from+from]
		dst := out[f*to : f*to+to]

		switch {
		case to == 1:
			var sum int64
			for _, s := range src {
				sum += int64(s)
			}
			dst[0] = int32(sum / int64(from))
		case from == 1:
			for i := range dst {
				dst[i] = src[0]
			}
		default:
			for i := range dst {
				if i < from {
					dst[i] = src[i]
				}
			}
		}
	}

	return out
}
