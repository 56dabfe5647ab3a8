// Package audio defines the frame types, wire codec, and device contracts for
// the voxengine pipeline.
//
// A [Frame] is the atomic unit of audio transport: captured from the
// microphone, analysed for visualisation, encoded for the live session, or
// decoded from a remote response chunk. Frames are immutable once produced —
// no component mutates a frame it did not create.
//
// The two fixed pipeline formats are [InputFormat] (microphone capture and
// outbound streaming, 16 kHz mono) and [OutputFormat] (remote synthesis and
// playback, 24 kHz mono).
package audio

import (
	"encoding/binary"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// InputFormat is the capture-side pipeline format: 16 kHz mono PCM16.
var InputFormat = Format{SampleRate: 16000, Channels: 1}

// OutputFormat is the playback-side pipeline format: 24 kHz mono PCM16.
var OutputFormat = Format{SampleRate: 24000, Channels: 1}

// BlockSamples is the number of samples per capture frame. At 16 kHz this is
// one frame every 256 ms, matching the encoder block size of the live session.
const BlockSamples = 4096

// Frame is a fixed-length sequence of signed 16-bit samples at a known sample
// rate. Produced by a capture source at a fixed tick or by decoding a received
// network chunk.
type Frame struct {
	// Samples is little-endian int16 PCM. Mono throughout this pipeline.
	Samples []int16

	// SampleRate in Hz (16000 for capture, 24000 for synthesis output).
	SampleRate int

	// Channels is the channel count. Always 1 in this pipeline; kept explicit
	// so device adapters can validate before conversion.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	// Zero for decoded network frames.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	n := len(f.Samples) / f.Channels
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the frame's samples as little-endian PCM16 bytes.
func (f Frame) Bytes() []byte {
	buf := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FrameFromBytes builds a Frame from little-endian PCM16 bytes. A trailing odd
// byte is ignored; callers that need strict validation should use
// [DecodeChunk] instead.
func FrameFromBytes(data []byte, rate, channels int) Frame {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Frame{Samples: samples, SampleRate: rate, Channels: channels}
}

// Drain consumes and discards all remaining frames on ch until it closes.
// Used on teardown paths so producers blocked on a send can exit.
func Drain(ch <-chan Frame) {
	if ch == nil {
		return
	}
	for range ch {
	}
}
