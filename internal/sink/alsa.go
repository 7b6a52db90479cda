package sink

import (
	"encoding/binary"
	"io"

	"scalefx-mixer/internal/audioerr"
)

// WriteTransport is the byte-level target the hardware sink writes to: an
// ALSA PCM handle, a raw /dev/i2s character device, or (for local
// development) any io.Writer. The mixer core only ever talks to Sink; this
// narrower seam is what a real hardware build plugs in underneath it,
// mirrored after the teacher's io.WriteCloser-backed FFmpeg pipes in
// internal/streaming.StreamManager.
type WriteTransport interface {
	io.Writer
}

// HardwareSink pushes interleaved 16-bit stereo frames to a WriteTransport.
// Bit depth on the wire is fixed at 16 regardless of the physical I2S
// frame width; zero-padding up to 32 bits per channel, if the transport
// below needs it, is the transport's job, not this sink's (spec §6).
type HardwareSink struct {
	w    WriteTransport
	buf  [4]byte
	open bool
}

// NewHardwareSink wraps a WriteTransport.
func NewHardwareSink(w WriteTransport) *HardwareSink {
	return &HardwareSink{w: w}
}

// Begin marks the transport ready. The sample rate itself is configured
// out of band (clock tree setup belongs to the codec, per spec §9's
// startup-ordering note: codec before sink).
func (h *HardwareSink) Begin(sampleRate int) error {
	h.open = true
	return nil
}

// WriteStereoFrame writes one little-endian interleaved (left, right)
// pair. A write error is a SinkFault: fatal at the mixer level (spec §7).
func (h *HardwareSink) WriteStereoFrame(left, right int16) error {
	if !h.open {
		return audioerr.New(audioerr.SinkFault, "sink.WriteStereoFrame", "sink not begun")
	}
	binary.LittleEndian.PutUint16(h.buf[0:2], uint16(left))
	binary.LittleEndian.PutUint16(h.buf[2:4], uint16(right))
	if _, err := h.w.Write(h.buf[:]); err != nil {
		return audioerr.Wrap(audioerr.SinkFault, "sink.WriteStereoFrame", err)
	}
	return nil
}

// End stops the transport, closing it if it supports io.Closer.
func (h *HardwareSink) End() error {
	h.open = false
	if closer, ok := h.w.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return audioerr.Wrap(audioerr.SinkFault, "sink.End", err)
		}
	}
	return nil
}
