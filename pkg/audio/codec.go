package audio

import (
	"encoding/base64"
	"fmt"
)

// EncodedChunk is a frame's byte payload in wire representation: base64-encoded
// little-endian PCM16 plus a MIME-type tag. It is a stateless transform of a
// [Frame], ready for transmission to the live session endpoint.
type EncodedChunk struct {
	// Data is the base64-encoded PCM16LE payload.
	Data string

	// MIMEType tags the payload format, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// ErrMalformedChunk is returned by [DecodeChunk] when the payload is not valid
// base64 or does not align to whole int16 samples. A malformed chunk is
// dropped by the caller; it never terminates a session.
var ErrMalformedChunk = fmt.Errorf("audio: malformed chunk")

// MIMEForRate returns the PCM MIME tag for the given sample rate.
func MIMEForRate(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// EncodeFrame converts a frame to its wire representation.
func EncodeFrame(f Frame) EncodedChunk {
	return EncodedChunk{
		Data:     base64.StdEncoding.EncodeToString(f.Bytes()),
		MIMEType: MIMEForRate(f.SampleRate),
	}
}

// DecodeChunk converts a base64 PCM16 payload back into a [Frame] at the given
// sample rate. Returns [ErrMalformedChunk] (wrapped) for invalid base64, an
// odd byte count, or an empty payload.
func DecodeChunk(data string, rate int) (Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: base64: %v", ErrMalformedChunk, err)
	}
	if len(raw) == 0 {
		return Frame{}, fmt.Errorf("%w: empty payload", ErrMalformedChunk)
	}
	if len(raw)%2 != 0 {
		return Frame{}, fmt.Errorf("%w: odd byte count %d", ErrMalformedChunk, len(raw))
	}
	return FrameFromBytes(raw, rate, 1), nil
}
