// Package recording stores pose detections on disk so a session can be
// replayed without a camera or the pose worker.
//
// A recording is a sequence of records, each a 4-byte big-endian length
// followed by a msgpack body. The first record is the Header; every
// following record is a Frame.
package recording

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/bodyfit/internal/pose"
	"github.com/ayusman/bodyfit/internal/quality"
	"github.com/ayusman/bodyfit/internal/session"
)

// Version is the current recording format version.
const Version = 1

const maxRecordSize = 16 << 20

// ErrCorrupt is returned for truncated or undecodable recordings.
var ErrCorrupt = errors.New("recording: corrupt data")

// Header describes a recording.
type Header struct {
	Version   int       `msgpack:"version"`
	Source    string    `msgpack:"source"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// Frame is one recorded pipeline input. Luma is the mean frame brightness
// measured at record time; HasLuma is false when it could not be measured.
type Frame struct {
	Detection pose.Detection `msgpack:"detection"`
	Width     int            `msgpack:"width"`
	Height    int            `msgpack:"height"`
	Luma      float64        `msgpack:"luma"`
	HasLuma   bool           `msgpack:"has_luma"`
}

// SessionFrame converts the record into pipeline input.
func (f Frame) SessionFrame() session.Frame {
	sf := session.Frame{
		Detection: f.Detection,
		Width:     f.Width,
		Height:    f.Height,
	}
	if f.HasLuma {
		sf.Luma = quality.StaticLuma(f.Luma)
	}
	return sf
}

// NewFrame records a pipeline input, sampling its luma source once.
func NewFrame(f session.Frame) Frame {
	rec := Frame{Detection: f.Detection, Width: f.Width, Height: f.Height}
	if f.Luma != nil {
		if l, err := f.Luma.MeanLuma(); err == nil {
			rec.Luma, rec.HasLuma = l, true
		}
	}
	return rec
}

// Writer appends frames to a recording. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	frames int
}

// NewWriter writes the header to w and returns a Writer.
func NewWriter(w io.Writer, source string) (*Writer, error) {
	rw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	h := Header{Version: Version, Source: source, CreatedAt: time.Now().UTC()}
	if err := rw.writeRecord(h); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return rw, nil
}

// Create creates (or truncates) the file at path and starts a recording.
func Create(path, source string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, source)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one frame.
func (w *Writer) Write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeRecord(f); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes buffered records and closes the underlying writer if it
// is closable.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *Writer) writeRecord(v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	if _, err := w.w.Write(length[:]); err != nil {
		return err
	}
	_, err = w.w.Write(body)
	return err
}

// Reader reads frames from a recording.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	header Header
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	rr := &Reader{r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		rr.closer = c
	}
	if err := rr.readRecord(&rr.header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
		}
		return nil, err
	}
	if rr.header.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, rr.header.Version)
	}
	return rr, nil
}

// Open opens the recording at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the recording header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	var f Frame
	if err := r.readRecord(&f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// ReadAll returns every remaining frame.
func (r *Reader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// readRecord returns io.EOF only at a clean record boundary.
func (r *Reader) readRecord(v any) error {
	var length [4]byte
	n, err := io.ReadFull(r.r, length[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("%w: truncated length", ErrCorrupt)
	}

	size := binary.BigEndian.Uint32(length[:])
	if size > maxRecordSize {
		return fmt.Errorf("%w: record of %d bytes", ErrCorrupt, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return fmt.Errorf("%w: truncated record", ErrCorrupt)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
