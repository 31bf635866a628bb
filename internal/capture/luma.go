package capture

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// lumaSampleWidth is the width frames are shrunk to before averaging.
const lumaSampleWidth = 64

// MeasureLuma returns the mean Rec. 601 luma (0–255) of a BGR or gray frame,
// computed on a downsampled copy.
func MeasureLuma(frame *gocv.Mat) (float64, error) {
	if frame == nil || frame.Empty() {
		return 0, errors.New("empty frame")
	}

	w := lumaSampleWidth
	if frame.Cols() < w {
		w = frame.Cols()
	}
	h := frame.Rows() * w / frame.Cols()
	if h < 1 {
		h = 1
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationArea)

	gray := small
	if small.Channels() > 1 {
		// BGR2GRAY uses the Rec. 601 weights.
		g := gocv.NewMat()
		defer g.Close()
		gocv.CvtColor(small, &g, gocv.ColorBGRToGray)
		gray = g
	}
	return gray.Mean().Val1, nil
}

// MatLuma adapts a frame to quality.LumaSource. The frame must stay open
// until MeanLuma is called.
type MatLuma struct {
	Frame *gocv.Mat
}

// MeanLuma measures the wrapped frame.
func (l MatLuma) MeanLuma() (float64, error) {
	return MeasureLuma(l.Frame)
}
