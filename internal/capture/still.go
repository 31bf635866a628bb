package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultStillQuality is the JPEG quality of capture stills.
const DefaultStillQuality = 90

// EncodeStill encodes a frame as JPEG at the given quality (1–100; other
// values use DefaultStillQuality).
func EncodeStill(frame *gocv.Mat, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultStillQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory freed by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
