package measure

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/ayusman/bodyfit/internal/pose"
)

// Shape constants. Each one is calibrated empirically against tape
// measurements and can be tuned independently of the others.
const (
	// DepthCorrectionWeight scales the z difference between paired landmarks
	// added back into width measurements when the body is turned away from
	// the camera. Model depth is noisier than x/y, so it is down-weighted.
	DepthCorrectionWeight = 0.5

	ShoulderWidthMultiplier = 1.0

	// NeckBaseLevel places the base of the neck as a fraction of the way
	// from the shoulder midpoint up to the ear midpoint.
	NeckBaseLevel = 0.3

	// NeckCircumferenceMultiplier converts the neck-to-shoulder vector (neck
	// base to shoulder joint, averaged over both sides) into a neck
	// circumference.
	NeckCircumferenceMultiplier = 1.8

	// ChestLevel and WaistLevel locate the chest and waist lines as a
	// fraction of the way from the shoulder line to the hip line.
	ChestLevel = 0.25
	WaistLevel = 0.80

	ChestCircumferenceMultiplier = 2.5
	WaistCircumferenceMultiplier = 2.5

	// HipCircumferenceMultiplier is larger than the torso multipliers because
	// hip landmarks sit at the joint centers, well inside the silhouette.
	HipCircumferenceMultiplier = 3.2

	SleeveLengthMultiplier = 1.0

	// BicepCircumferenceRatio estimates upper-arm girth from upper-arm length.
	BicepCircumferenceRatio = 0.9

	// OutseamMultiplier extends the hip-to-ankle leg length up to the waistband.
	OutseamMultiplier = 1.1

	// InseamRatio is the crotch-to-ankle share of the hip-to-ankle leg length.
	InseamRatio = 0.82

	ThighCircumferenceRatio = 1.3
	CalfCircumferenceRatio  = 0.85
)

// Confidence penalties for measurements that are inferred rather than measured.
const (
	DirectPenalty       = 1.0
	WidthDerivedPenalty = 0.9
	InseamPenalty       = 0.85
	NeckPenalty         = 0.7
	LimbGirthPenalty    = 0.6
)

// geometry evaluates landmark positions in pixel space for one frame.
type geometry struct {
	snap   *pose.Snapshot
	width  float64
	height float64
}

func (g geometry) at(i int) r3.Vector {
	l, _ := g.snap.At(i)
	return l.Pixel(g.width, g.height)
}

func (g geometry) dist(a, b int) float64 {
	return g.at(a).Distance(g.at(b))
}

// width is the in-plane distance between two points plus a weighted depth
// term that compensates for body rotation relative to the camera.
func width(a, b r3.Vector) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := (a.Z - b.Z) * DepthCorrectionWeight
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func lerp(a, b r3.Vector, t float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(t))
}

// torsoWidthAt returns the body width at fraction t of the way from the
// shoulder line down to the hip line.
func (g geometry) torsoWidthAt(t float64) float64 {
	left := lerp(g.at(pose.LeftShoulder), g.at(pose.LeftHip), t)
	right := lerp(g.at(pose.RightShoulder), g.at(pose.RightHip), t)
	return width(left, right)
}

// neckToShoulder returns the mean length of the vectors from the neck base
// to each shoulder joint.
func (g geometry) neckToShoulder() float64 {
	ls, rs := g.at(pose.LeftShoulder), g.at(pose.RightShoulder)
	shoulders := lerp(ls, rs, 0.5)
	ears := lerp(g.at(pose.LeftEar), g.at(pose.RightEar), 0.5)
	base := lerp(shoulders, ears, NeckBaseLevel)
	return (width(base, ls) + width(base, rs)) / 2
}

// formula derives one measurement kind. sides lists alternative landmark
// sets (left and right limb, for example); the fully detected side with the
// highest visibility is used. pixels receives that side's landmarks.
type formula struct {
	sides   [][]int
	penalty float64
	pixels  func(g geometry, side []int) float64
}

var (
	torsoLandmarks = []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip}
	leftArm        = []int{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}
	rightArm       = []int{pose.RightShoulder, pose.RightElbow, pose.RightWrist}
	leftLeg        = []int{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightLeg       = []int{pose.RightHip, pose.RightKnee, pose.RightAnkle}
)

func segmentLength(g geometry, side []int) float64 {
	total := 0.0
	for i := 1; i < len(side); i++ {
		total += g.dist(side[i-1], side[i])
	}
	return total
}

var formulas = map[Kind]formula{
	ShoulderWidth: {
		sides:   [][]int{{pose.LeftShoulder, pose.RightShoulder}},
		penalty: DirectPenalty,
		pixels: func(g geometry, _ []int) float64 {
			return width(g.at(pose.LeftShoulder), g.at(pose.RightShoulder)) * ShoulderWidthMultiplier
		},
	},
	NeckCircumference: {
		sides:   [][]int{{pose.LeftShoulder, pose.RightShoulder, pose.LeftEar, pose.RightEar}},
		penalty: NeckPenalty,
		pixels: func(g geometry, _ []int) float64 {
			return g.neckToShoulder() * NeckCircumferenceMultiplier
		},
	},
	Chest: {
		sides:   [][]int{torsoLandmarks},
		penalty: WidthDerivedPenalty,
		pixels: func(g geometry, _ []int) float64 {
			return g.torsoWidthAt(ChestLevel) * ChestCircumferenceMultiplier
		},
	},
	Waist: {
		sides:   [][]int{torsoLandmarks},
		penalty: WidthDerivedPenalty,
		pixels: func(g geometry, _ []int) float64 {
			return g.torsoWidthAt(WaistLevel) * WaistCircumferenceMultiplier
		},
	},
	Hip: {
		sides:   [][]int{{pose.LeftHip, pose.RightHip}},
		penalty: WidthDerivedPenalty,
		pixels: func(g geometry, _ []int) float64 {
			return width(g.at(pose.LeftHip), g.at(pose.RightHip)) * HipCircumferenceMultiplier
		},
	},
	SleeveLength: {
		sides:   [][]int{leftArm, rightArm},
		penalty: DirectPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * SleeveLengthMultiplier
		},
	},
	Bicep: {
		sides:   [][]int{leftArm[:2], rightArm[:2]},
		penalty: LimbGirthPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * BicepCircumferenceRatio
		},
	},
	Outseam: {
		sides:   [][]int{leftLeg, rightLeg},
		penalty: DirectPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * OutseamMultiplier
		},
	},
	Inseam: {
		sides:   [][]int{leftLeg, rightLeg},
		penalty: InseamPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * InseamRatio
		},
	},
	Thigh: {
		sides:   [][]int{leftLeg[:2], rightLeg[:2]},
		penalty: LimbGirthPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * ThighCircumferenceRatio
		},
	},
	Calf: {
		sides:   [][]int{leftLeg[1:], rightLeg[1:]},
		penalty: LimbGirthPenalty,
		pixels: func(g geometry, side []int) float64 {
			return segmentLength(g, side) * CalfCircumferenceRatio
		},
	},
}

// RequiredLandmarks returns every landmark any side of the kind's formula may use.
func RequiredLandmarks(kind Kind) []int {
	f, ok := formulas[kind]
	if !ok {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, side := range f.sides {
		for _, i := range side {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// pickSide returns the fully detected side with the highest minimum visibility.
func pickSide(snap *pose.Snapshot, sides [][]int) ([]int, float64, bool) {
	var best []int
	bestVis := -1.0
	for _, side := range sides {
		if !snap.Has(side...) {
			continue
		}
		vis := minVisibility(snap, side)
		if vis > bestVis {
			best, bestVis = side, vis
		}
	}
	return best, bestVis, best != nil
}

func minVisibility(snap *pose.Snapshot, indices []int) float64 {
	lowest := 1.0
	for _, i := range indices {
		l, _ := snap.At(i)
		if l.Visibility < lowest {
			lowest = l.Visibility
		}
	}
	return math.Max(0, lowest)
}
