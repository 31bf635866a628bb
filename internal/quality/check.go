// Package quality evaluates whether a frame is fit for measurement.
package quality

// Severity classifies a quality check outcome for display.
type Severity string

const (
	// Info is a neutral or positive state.
	Info Severity = "info"
	// Warning is a scene or pose problem the user can fix.
	Warning Severity = "warning"
	// Error means a check could not run.
	Error Severity = "error"
)

// Check is the outcome of one quality check.
type Check struct {
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Pending reports whether the check has not reached a verdict yet.
// A pending check is not passed but is not a failure either.
func (c Check) Pending() bool {
	return !c.Passed && c.Severity == Info
}

// Failed reports whether the check reached a failing verdict.
func (c Check) Failed() bool {
	return !c.Passed && c.Severity != Info
}

func pass(msg string) Check {
	return Check{Passed: true, Message: msg, Severity: Info}
}

func warn(msg string) Check {
	return Check{Passed: false, Message: msg, Severity: Warning}
}

// Result holds every quality check for one frame.
type Result struct {
	Lighting    Check `json:"lighting"`
	Distance    Check `json:"distance"`
	Stability   Check `json:"stability"`
	Occlusion   Check `json:"occlusion"`
	PoseInFrame Check `json:"pose_in_frame"`
}

// AllPassed reports whether every check passed.
func (r Result) AllPassed() bool {
	return r.Lighting.Passed &&
		r.Distance.Passed &&
		r.Stability.Passed &&
		r.Occlusion.Passed &&
		r.PoseInFrame.Passed
}

// Checks returns the checks keyed by name.
func (r Result) Checks() map[string]Check {
	return map[string]Check{
		"lighting":      r.Lighting,
		"distance":      r.Distance,
		"stability":     r.Stability,
		"occlusion":     r.Occlusion,
		"pose_in_frame": r.PoseInFrame,
	}
}

// FirstFailure returns the most severe failing check, preferring errors over
// warnings and otherwise the first in evaluation order. It returns false
// when nothing failed.
func (r Result) FirstFailure() (Check, bool) {
	ordered := []Check{r.PoseInFrame, r.Lighting, r.Distance, r.Occlusion, r.Stability}
	for _, c := range ordered {
		if !c.Passed && c.Severity == Error {
			return c, true
		}
	}
	for _, c := range ordered {
		if !c.Passed {
			return c, true
		}
	}
	return Check{}, false
}
