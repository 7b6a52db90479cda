// Package wav opens and parses little-endian RIFF/WAVE PCM files and
// exposes a seekable, frame-oriented read API for the mixer's Channel
// type. It never imports the mixer package; Channel depends on WavSource,
// never the reverse.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"scalefx-mixer/internal/audioerr"
)

const (
	riffID = "RIFF"
	waveID = "WAVE"
	fmtID  = "fmt "
	dataID = "data"

	// pcmFormat is the only audioFormat value this engine accepts.
	pcmFormat = 1

	minFmtChunkSize = 16
)

// Source is an opened PCM WAV asset with read position state.
type Source struct {
	file  StorageFile
	path  string // display filename, for introspection
	store Storage

	sampleRate    int
	channels      int
	bitsPerSample int

	dataOffset      int64
	totalFrames     int64
	framesRemaining int64
}

// Open opens path on the default (filesystem) storage and parses its WAV
// header.
func Open(path string) (*Source, error) {
	return OpenWithStorage(DefaultStorage, path)
}

// OpenWithStorage opens path on the given storage backend. Exposed
// separately so tests and alternative storage backends don't need to
// mutate the package-level default.
func OpenWithStorage(store Storage, path string) (*Source, error) {
	f, err := store.Open(path)
	if err != nil {
		return nil, audioerr.Wrap(audioerr.NotFound, "wav.Open", err)
	}

	s := &Source{file: f, path: path, store: store}
	if err := s.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

type chunkHeader struct {
	id   [4]byte
	size uint32
}

func readChunkHeader(r io.Reader) (chunkHeader, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return chunkHeader{}, err
	}
	var ch chunkHeader
	copy(ch.id[:], buf[0:4])
	ch.size = binary.LittleEndian.Uint32(buf[4:8])
	return ch, nil
}

// parseHeader validates the RIFF/WAVE/fmt magic, scans chunks from offset
// 12 tolerating LIST/fact/other chunks in between, and locates the data
// chunk. See spec §4.1 for the exact edge cases handled here.
func (s *Source) parseHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(s.file, riff[:]); err != nil {
		return audioerr.Wrap(audioerr.MalformedHeader, "wav.parseHeader", err)
	}
	if string(riff[0:4]) != riffID || string(riff[8:12]) != waveID {
		return audioerr.New(audioerr.MalformedHeader, "wav.parseHeader", "missing RIFF/WAVE magic")
	}

	var gotFmt, gotData bool
	var dataSize uint32

	for !gotData {
		ch, err := readChunkHeader(s.file)
		if err != nil {
			if err == io.EOF && gotFmt {
				// No data chunk ever showed up.
				return audioerr.New(audioerr.MalformedHeader, "wav.parseHeader", "no data chunk found")
			}
			return audioerr.Wrap(audioerr.MalformedHeader, "wav.parseHeader", err)
		}

		switch string(ch.id[:]) {
		case fmtID:
			if ch.size < minFmtChunkSize {
				return audioerr.New(audioerr.MalformedHeader, "wav.parseHeader", "fmt chunk too small")
			}
			if err := s.parseFmtChunk(ch.size); err != nil {
				return err
			}
			gotFmt = true
		case dataID:
			if !gotFmt {
				return audioerr.New(audioerr.MalformedHeader, "wav.parseHeader", "data chunk before fmt chunk")
			}
			offset, err := s.file.Seek(0, io.SeekCurrent)
			if err != nil {
				return audioerr.Wrap(audioerr.IoError, "wav.parseHeader", err)
			}
			s.dataOffset = offset
			dataSize = ch.size
			gotData = true
		default:
			// LIST, fact, or anything else: skip by advancing size bytes
			// (padded to an even boundary, per RIFF convention).
			skip := int64(ch.size) + int64(ch.size&1)
			if _, err := s.file.Seek(skip, io.SeekCurrent); err != nil {
				return audioerr.Wrap(audioerr.IoError, "wav.parseHeader", err)
			}
		}
	}

	bytesPerFrame := int64(s.channels * s.bitsPerSample / 8)
	if bytesPerFrame <= 0 {
		return audioerr.New(audioerr.MalformedHeader, "wav.parseHeader", "zero bytes per frame")
	}

	// Clamp a data chunk size claim that exceeds what's actually left in
	// the file.
	remaining, err := s.remainingBytes()
	if err == nil && int64(dataSize) > remaining {
		dataSize = uint32(remaining)
	}

	s.totalFrames = int64(dataSize) / bytesPerFrame
	s.framesRemaining = s.totalFrames
	return nil
}

func (s *Source) remainingBytes() (int64, error) {
	cur, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.file.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

func (s *Source) parseFmtChunk(size uint32) error {
	buf := make([]byte, size+(size&1))
	if _, err := io.ReadFull(s.file, buf); err != nil {
		return audioerr.Wrap(audioerr.MalformedHeader, "wav.parseFmtChunk", err)
	}

	audioFormat := binary.LittleEndian.Uint16(buf[0:2])
	numChannels := binary.LittleEndian.Uint16(buf[2:4])
	sampleRate := binary.LittleEndian.Uint32(buf[4:8])
	bitsPerSample := binary.LittleEndian.Uint16(buf[14:16])

	if audioFormat != pcmFormat {
		return audioerr.New(audioerr.UnsupportedFormat, "wav.parseFmtChunk",
			fmt.Sprintf("audioFormat %d is not PCM", audioFormat))
	}
	if numChannels != 1 && numChannels != 2 {
		return audioerr.New(audioerr.UnsupportedFormat, "wav.parseFmtChunk",
			fmt.Sprintf("unsupported channel count %d", numChannels))
	}
	if bitsPerSample != 8 && bitsPerSample != 16 {
		return audioerr.New(audioerr.UnsupportedFormat, "wav.parseFmtChunk",
			fmt.Sprintf("unsupported bits per sample %d", bitsPerSample))
	}
	if sampleRate < 8000 || sampleRate > 192000 {
		return audioerr.New(audioerr.UnsupportedFormat, "wav.parseFmtChunk",
			fmt.Sprintf("sample rate %d out of range", sampleRate))
	}

	s.channels = int(numChannels)
	s.sampleRate = int(sampleRate)
	s.bitsPerSample = int(bitsPerSample)
	return nil
}

// BytesPerFrame returns channels * bitsPerSample/8.
func (s *Source) BytesPerFrame() int { return s.channels * s.bitsPerSample / 8 }

// SampleRate returns the source's sample rate in Hz.
func (s *Source) SampleRate() int { return s.sampleRate }

// Channels returns 1 (mono) or 2 (stereo).
func (s *Source) Channels() int { return s.channels }

// BitsPerSample returns 8 or 16.
func (s *Source) BitsPerSample() int { return s.bitsPerSample }

// TotalFrames returns the total frame count derived from the data chunk.
func (s *Source) TotalFrames() int64 { return s.totalFrames }

// FramesRemaining returns the number of frames left before end-of-stream.
func (s *Source) FramesRemaining() int64 { return s.framesRemaining }

// Path returns the display filename the source was opened with.
func (s *Source) Path() string { return s.path }

// ReadFrames reads up to n frames into buf, which must be sized for at
// least n*BytesPerFrame() bytes. It returns the number of whole frames
// read, which may be less than n near end-of-stream.
func (s *Source) ReadFrames(buf []byte, n int) (int, error) {
	bpf := s.BytesPerFrame()
	if n > int(s.framesRemaining) {
		n = int(s.framesRemaining)
	}
	want := n * bpf
	if want > len(buf) {
		want = len(buf) - (len(buf) % bpf)
	}
	if want <= 0 {
		return 0, nil
	}

	read, err := io.ReadFull(s.file, buf[:want])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, audioerr.Wrap(audioerr.IoError, "wav.ReadFrames", err)
	}

	framesRead := read / bpf
	s.framesRemaining -= int64(framesRead)
	return framesRead, nil
}

// SeekFrames positions the source at frame n from the start of the data
// chunk, clamping n to [0, totalFrames].
func (s *Source) SeekFrames(n int64) error {
	if n < 0 {
		n = 0
	}
	if n > s.totalFrames {
		n = s.totalFrames
	}
	bpf := int64(s.BytesPerFrame())
	if _, err := s.file.Seek(s.dataOffset+n*bpf, io.SeekStart); err != nil {
		return audioerr.Wrap(audioerr.IoError, "wav.SeekFrames", err)
	}
	s.framesRemaining = s.totalFrames - n
	return nil
}

// Close releases the underlying file handle.
func (s *Source) Close() error {
	return s.file.Close()
}
