package quality

import (
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/pose"
)

// Evaluator runs every quality check for a garment profile. It owns the
// stability history, so each measurement session needs its own Evaluator.
//
// An Evaluator is not safe for concurrent use.
type Evaluator struct {
	profile   garment.Profile
	stability *StabilityTracker
}

// NewEvaluator creates an evaluator for the given garment profile.
func NewEvaluator(profile garment.Profile) *Evaluator {
	return &Evaluator{
		profile:   profile,
		stability: NewStabilityTracker(),
	}
}

// Profile returns the garment profile being evaluated.
func (e *Evaluator) Profile() garment.Profile {
	return e.profile
}

// SetProfile switches garment and discards the stability history.
func (e *Evaluator) SetProfile(profile garment.Profile) {
	e.profile = profile
	e.stability.Reset()
}

// Reset discards the stability history.
func (e *Evaluator) Reset() {
	e.stability.Reset()
}

// Evaluate checks one frame of width × height pixels. A nil snapshot fails
// PoseInFrame and leaves the stability history untouched.
func (e *Evaluator) Evaluate(snap *pose.Snapshot, width, height int, luma LumaSource) Result {
	r := Result{
		Lighting:    CheckLighting(luma),
		PoseInFrame: CheckPoseInFrame(snap),
	}
	if !r.PoseInFrame.Passed {
		r.Distance = warn("Step into frame")
		r.Occlusion = warn("Step into frame")
		r.Stability = Check{Passed: false, Message: "Hold still…", Severity: Info}
		return r
	}

	r.Distance = CheckDistance(snap, e.profile.Region)
	r.Occlusion = CheckOcclusion(snap, e.profile.Required)
	r.Stability = e.stability.Update(snap, width, height)
	return r
}
