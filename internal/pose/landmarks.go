// Package pose provides body pose landmark types, detection interfaces and
// the ingress step that turns raw detector output into immutable snapshots.
package pose

import "github.com/golang/geo/r3"

// Body landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// bodyParts maps each landmark index to the user-facing body part it belongs to.
// Paired joints share a name so that messages mention "shoulders" once.
var bodyParts = [NumLandmarks]string{
	Nose: "face", LeftEyeInner: "face", LeftEye: "face", LeftEyeOuter: "face",
	RightEyeInner: "face", RightEye: "face", RightEyeOuter: "face",
	LeftEar: "face", RightEar: "face", MouthLeft: "face", MouthRight: "face",
	LeftShoulder: "shoulders", RightShoulder: "shoulders",
	LeftElbow: "elbows", RightElbow: "elbows",
	LeftWrist: "wrists", RightWrist: "wrists",
	LeftPinky: "hands", RightPinky: "hands",
	LeftIndex: "hands", RightIndex: "hands",
	LeftThumb: "hands", RightThumb: "hands",
	LeftHip: "hips", RightHip: "hips",
	LeftKnee: "knees", RightKnee: "knees",
	LeftAnkle: "ankles", RightAnkle: "ankles",
	LeftHeel: "feet", RightHeel: "feet",
	LeftFootIndex: "feet", RightFootIndex: "feet",
}

// BodyPart returns the body part name for a landmark index, or "body" for
// indices outside the vocabulary.
func BodyPart(index int) string {
	if index < 0 || index >= NumLandmarks {
		return "body"
	}
	return bodyParts[index]
}

// Landmark is a single anatomical keypoint in one frame.
// X and Y are normalized to [0,1] by frame width and height; Z is on roughly
// the same scale as X, with smaller values closer to the camera.
type Landmark struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z" msgpack:"z"`
	Visibility float64 `json:"visibility" msgpack:"visibility"`
}

// Pixel returns the landmark position in pixel space for a frame of the given size.
// Z is scaled by width, matching how the pose model normalizes depth.
func (l Landmark) Pixel(width, height float64) r3.Vector {
	return r3.Vector{X: l.X * width, Y: l.Y * height, Z: l.Z * width}
}

// Snapshot is the full set of landmarks detected in one frame.
// A Snapshot is never mutated after Ingest returns it.
type Snapshot struct {
	Landmarks      []Landmark `json:"landmarks"`
	WorldLandmarks []Landmark `json:"world_landmarks,omitempty"`
	TimestampMs    int64      `json:"timestamp_ms"`
}

// At returns the landmark at index and whether it was detected this frame.
func (s *Snapshot) At(index int) (Landmark, bool) {
	if s == nil || index < 0 || index >= len(s.Landmarks) {
		return Landmark{}, false
	}
	return s.Landmarks[index], true
}

// Has reports whether every listed landmark index was detected.
func (s *Snapshot) Has(indices ...int) bool {
	for _, i := range indices {
		if _, ok := s.At(i); !ok {
			return false
		}
	}
	return true
}

// Midpoint returns the pixel-space midpoint of two landmarks.
func Midpoint(a, b Landmark, width, height float64) r3.Vector {
	return a.Pixel(width, height).Add(b.Pixel(width, height)).Mul(0.5)
}
