package quality

// MinLuma is the mean brightness, on a 0–255 scale, below which a frame is
// too dark to measure.
const MinLuma = 60.0

// LumaSource reports the mean brightness of the current frame.
type LumaSource interface {
	MeanLuma() (float64, error)
}

// StaticLuma is a LumaSource with a fixed value, used for recorded frames
// and tests.
type StaticLuma float64

// MeanLuma returns the fixed value.
func (s StaticLuma) MeanLuma() (float64, error) {
	return float64(s), nil
}

// CheckLighting compares the source's mean luma against MinLuma. A source
// that cannot be read yields an Error-severity check.
func CheckLighting(src LumaSource) Check {
	if src == nil {
		return Check{Message: "Lighting unavailable", Severity: Error}
	}
	luma, err := src.MeanLuma()
	if err != nil {
		return Check{Message: "Lighting unavailable: " + err.Error(), Severity: Error}
	}
	if luma < MinLuma {
		return warn("Increase lighting")
	}
	return pass("Good lighting")
}
