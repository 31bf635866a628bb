package quality

import (
	"math"

	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/pose"
)

// Band is the acceptable normalized vertical extent of a landmark subset.
type Band struct {
	Min float64
	Max float64
}

type framing struct {
	landmarks []int
	band      Band
}

// framings lists, per body region, the landmarks whose vertical extent
// indicates distance from the camera.
var framings = map[garment.Region]framing{
	garment.Upper: {
		landmarks: []int{pose.Nose, pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip},
		band:      Band{Min: 0.25, Max: 0.75},
	},
	garment.Lower: {
		landmarks: []int{pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle},
		band:      Band{Min: 0.30, Max: 0.80},
	},
	garment.Full: {
		landmarks: []int{pose.Nose, pose.LeftShoulder, pose.RightShoulder, pose.LeftAnkle, pose.RightAnkle},
		band:      Band{Min: 0.55, Max: 0.95},
	},
}

// VerticalExtent returns the normalized height of the bounding box around
// the listed landmarks, and false if any of them is missing.
func VerticalExtent(snap *pose.Snapshot, indices []int) (float64, bool) {
	if len(indices) == 0 {
		return 0, false
	}
	top, bottom := math.Inf(1), math.Inf(-1)
	for _, i := range indices {
		l, ok := snap.At(i)
		if !ok {
			return 0, false
		}
		top = math.Min(top, l.Y)
		bottom = math.Max(bottom, l.Y)
	}
	return bottom - top, true
}

// CheckDistance compares the region's landmark extent against its band.
// A subset cut off by the frame edge means the subject is too close.
func CheckDistance(snap *pose.Snapshot, region garment.Region) Check {
	f, ok := framings[region]
	if !ok {
		return Check{Message: "Unknown body region " + string(region), Severity: Error}
	}
	extent, ok := VerticalExtent(snap, f.landmarks)
	if !ok {
		return warn("Step back")
	}
	switch {
	case extent < f.band.Min:
		return warn("Move closer")
	case extent > f.band.Max:
		return warn("Step back")
	default:
		return pass("Good distance")
	}
}
