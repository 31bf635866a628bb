// Package units converts body measurements between centimeters and inches.
package units

import (
	"fmt"
	"strings"
)

// CmPerInch is the exact number of centimeters in one inch.
const CmPerInch = 2.54

// Unit is a length unit used for displaying measurements.
type Unit string

const (
	// Cm is centimeters, the unit all geometry is computed in.
	Cm Unit = "cm"
	// Inch is inches, a display-only unit.
	Inch Unit = "in"
)

// Parse returns the Unit named by s. It accepts "cm", "in", "inch" and "inches"
// in any case.
func Parse(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cm", "centimeter", "centimeters":
		return Cm, nil
	case "in", "inch", "inches":
		return Inch, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == Cm || u == Inch
}

// CmToIn converts centimeters to inches.
func CmToIn(cm float64) float64 {
	return cm / CmPerInch
}

// InToCm converts inches to centimeters.
func InToCm(in float64) float64 {
	return in * CmPerInch
}

// Convert converts value from one unit to another.
// It is a no-op when from and to are the same unit.
func Convert(value float64, from, to Unit) float64 {
	if from == to {
		return value
	}
	if from == Cm && to == Inch {
		return CmToIn(value)
	}
	if from == Inch && to == Cm {
		return InToCm(value)
	}
	return value
}

// Format renders value with exactly one decimal place and the unit suffix,
// for example "90.4 cm".
func Format(value float64, u Unit) string {
	return fmt.Sprintf("%.1f %s", value, u)
}
