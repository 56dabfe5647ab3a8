package audio

// Format conversion helpers for device adapters whose hardware format differs
// from the pipeline formats. The pipeline itself is mono end to end; stereo
// support exists only so a stereo-only output device can still play mono
// frames.

// Resample converts a frame to dstRate using linear interpolation. If the
// frame is already at dstRate the frame is returned unchanged (zero
// allocation). Only mono frames are resampled; stereo frames should be
// converted to mono first.
func Resample(f Frame, dstRate int) Frame {
	if dstRate <= 0 || f.SampleRate == dstRate || len(f.Samples) < 1 {
		return f
	}
	srcSamples := len(f.Samples)
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(f.SampleRate))
	if dstSamples == 0 {
		return Frame{SampleRate: dstRate, Channels: f.Channels, Timestamp: f.Timestamp}
	}

	out := make([]int16, dstSamples)
	ratio := float64(f.SampleRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := f.Samples[srcIdx]
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = f.Samples[srcIdx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return Frame{Samples: out, SampleRate: dstRate, Channels: f.Channels, Timestamp: f.Timestamp}
}

// MonoToStereo duplicates each mono sample into an interleaved L+R pair.
func MonoToStereo(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono averages each interleaved L+R pair. Uses int32 arithmetic to
// prevent overflow and clamps to the int16 range.
func StereoToMono(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := range frames {
		avg := (int32(samples[i*2]) + int32(samples[i*2+1])) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i] = int16(avg)
	}
	return out
}
