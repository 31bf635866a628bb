package quality

import (
	"strings"

	"github.com/ayusman/bodyfit/internal/pose"
)

// MinVisibility is the visibility every required landmark must reach.
const MinVisibility = 0.6

// CheckOcclusion requires each listed landmark to be detected with at least
// MinVisibility. Hidden landmarks are reported once per body part, in the
// order they are listed.
func CheckOcclusion(snap *pose.Snapshot, required []int) Check {
	var parts []string
	seen := make(map[string]bool)
	for _, i := range required {
		l, ok := snap.At(i)
		if ok && l.Visibility >= MinVisibility {
			continue
		}
		part := pose.BodyPart(i)
		if !seen[part] {
			seen[part] = true
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return warn("Show " + strings.Join(parts, ", "))
	}
	return pass("All landmarks visible")
}

// CheckPoseInFrame passes when any landmark was detected.
func CheckPoseInFrame(snap *pose.Snapshot) Check {
	if snap == nil || len(snap.Landmarks) == 0 {
		return warn("Step into frame")
	}
	return pass("Pose detected")
}
