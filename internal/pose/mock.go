package pose

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detection Detection
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetection sets the landmarks that will be returned by Detect.
func (m *MockDetector) SetDetection(d Detection) {
	m.detection = d
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured detection stamped with timestampMs.
func (m *MockDetector) Detect(frame *gocv.Mat, timestampMs int64) (Detection, error) {
	m.calls++
	if m.err != nil {
		return Detection{}, m.err
	}
	d := m.detection
	d.TimestampMs = timestampMs
	return d, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// standingFront holds normalized (x, y) positions for a person standing
// square to the camera with arms relaxed, filling most of the frame height.
// The subject's left side appears at larger x.
var standingFront = [NumLandmarks][2]float64{
	Nose:          {0.500, 0.150},
	LeftEyeInner:  {0.510, 0.140},
	LeftEye:       {0.515, 0.140},
	LeftEyeOuter:  {0.520, 0.140},
	RightEyeInner: {0.490, 0.140},
	RightEye:      {0.485, 0.140},
	RightEyeOuter: {0.480, 0.140},
	LeftEar:       {0.530, 0.150},
	RightEar:      {0.470, 0.150},
	MouthLeft:     {0.510, 0.170},
	MouthRight:    {0.490, 0.170},

	LeftShoulder:  {0.570, 0.250},
	RightShoulder: {0.430, 0.250},
	LeftElbow:     {0.590, 0.380},
	RightElbow:    {0.410, 0.380},
	LeftWrist:     {0.600, 0.500},
	RightWrist:    {0.400, 0.500},
	LeftPinky:     {0.605, 0.530},
	RightPinky:    {0.395, 0.530},
	LeftIndex:     {0.600, 0.540},
	RightIndex:    {0.400, 0.540},
	LeftThumb:     {0.590, 0.520},
	RightThumb:    {0.410, 0.520},

	LeftHip:        {0.5525, 0.500},
	RightHip:       {0.4475, 0.500},
	LeftKnee:       {0.5500, 0.680},
	RightKnee:      {0.4500, 0.680},
	LeftAnkle:      {0.5500, 0.860},
	RightAnkle:     {0.4500, 0.860},
	LeftHeel:       {0.5500, 0.880},
	RightHeel:      {0.4500, 0.880},
	LeftFootIndex:  {0.5600, 0.900},
	RightFootIndex: {0.4400, 0.900},
}

// StandingPose returns a preset detection of a person standing square to the
// camera with every landmark clearly visible.
func StandingPose() Detection {
	landmarks := make([]Landmark, NumLandmarks)
	for i, p := range standingFront {
		landmarks[i] = Landmark{X: p[0], Y: p[1], Z: 0, Visibility: 0.95}
	}
	return Detection{Landmarks: landmarks}
}

// WithVisibility returns a copy of d where the listed landmarks have the given visibility.
func WithVisibility(d Detection, visibility float64, indices ...int) Detection {
	out := d
	out.Landmarks = append([]Landmark(nil), d.Landmarks...)
	for _, i := range indices {
		if i >= 0 && i < len(out.Landmarks) {
			out.Landmarks[i].Visibility = visibility
		}
	}
	return out
}

// Shifted returns a copy of d with every landmark moved by (dx, dy).
func Shifted(d Detection, dx, dy float64) Detection {
	out := d
	out.Landmarks = make([]Landmark, len(d.Landmarks))
	for i, l := range d.Landmarks {
		l.X += dx
		l.Y += dy
		out.Landmarks[i] = l
	}
	return out
}

// Truncated returns a copy of d keeping only the first n landmarks, as a
// detector does when the lower body is out of frame.
func Truncated(d Detection, n int) Detection {
	out := d
	if n < len(d.Landmarks) {
		out.Landmarks = append([]Landmark(nil), d.Landmarks[:n]...)
	}
	return out
}
