// Package measure derives body measurements from pose landmarks and smooths
// them over time.
package measure

import (
	"encoding/json"

	"github.com/ayusman/bodyfit/internal/units"
)

// Kind identifies an anthropometric measurement.
type Kind string

const (
	ShoulderWidth     Kind = "shoulder_width"
	NeckCircumference Kind = "neck_circumference"
	Chest             Kind = "chest"
	Waist             Kind = "waist"
	SleeveLength      Kind = "sleeve_length"
	Bicep             Kind = "bicep"
	Hip               Kind = "hip"
	Outseam           Kind = "outseam"
	Inseam            Kind = "inseam"
	Thigh             Kind = "thigh"
	Calf              Kind = "calf"
)

var labels = map[Kind]string{
	ShoulderWidth:     "Shoulder width",
	NeckCircumference: "Neck",
	Chest:             "Chest",
	Waist:             "Waist",
	SleeveLength:      "Sleeve length",
	Bicep:             "Bicep",
	Hip:               "Hip",
	Outseam:           "Outseam",
	Inseam:            "Inseam",
	Thigh:             "Thigh",
	Calf:              "Calf",
}

// Label returns the human-readable name of the measurement kind.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Measurement is one derived body measurement. It is never modified after
// creation; display conversions produce new values.
type Measurement struct {
	Kind        Kind
	Label       string
	ValueCm     float64
	Unit        units.Unit
	Confidence  float64
	TimestampMs int64
}

// Value returns the measurement in its display unit.
func (m Measurement) Value() float64 {
	return units.Convert(m.ValueCm, units.Cm, m.Unit)
}

// Display renders the measurement with one decimal place and a unit suffix.
func (m Measurement) Display() string {
	return units.Format(m.Value(), m.Unit)
}

// MarshalJSON includes the converted value alongside the centimeter value.
func (m Measurement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind        Kind       `json:"kind"`
		Label       string     `json:"label"`
		ValueCm     float64    `json:"value_cm"`
		Value       float64    `json:"value"`
		Unit        units.Unit `json:"unit"`
		Display     string     `json:"display"`
		Confidence  float64    `json:"confidence"`
		TimestampMs int64      `json:"timestamp_ms"`
	}{
		Kind:        m.Kind,
		Label:       m.Label,
		ValueCm:     m.ValueCm,
		Value:       m.Value(),
		Unit:        m.Unit,
		Display:     m.Display(),
		Confidence:  m.Confidence,
		TimestampMs: m.TimestampMs,
	})
}

// Set is the ordered collection of measurements computed for one garment
// from one pose. A set may be sparse when some landmarks were not detected.
type Set struct {
	Measurements []Measurement `json:"measurements"`
	TimestampMs  int64         `json:"timestamp_ms"`
}

// Len returns the number of measurements in the set.
func (s Set) Len() int {
	return len(s.Measurements)
}

// Get returns the measurement of the given kind.
func (s Set) Get(kind Kind) (Measurement, bool) {
	for _, m := range s.Measurements {
		if m.Kind == kind {
			return m, true
		}
	}
	return Measurement{}, false
}

// Kinds returns the measurement kinds in set order.
func (s Set) Kinds() []Kind {
	kinds := make([]Kind, len(s.Measurements))
	for i, m := range s.Measurements {
		kinds[i] = m.Kind
	}
	return kinds
}

// WithUnit returns a copy of the set whose measurements display in u.
// Centimeter values are carried over unchanged.
func (s Set) WithUnit(u units.Unit) Set {
	out := Set{
		Measurements: make([]Measurement, len(s.Measurements)),
		TimestampMs:  s.TimestampMs,
	}
	for i, m := range s.Measurements {
		m.Unit = u
		out.Measurements[i] = m
	}
	return out
}

// MinConfidence returns the lowest confidence in the set, or 0 for an empty set.
func (s Set) MinConfidence() float64 {
	if len(s.Measurements) == 0 {
		return 0
	}
	lowest := s.Measurements[0].Confidence
	for _, m := range s.Measurements[1:] {
		if m.Confidence < lowest {
			lowest = m.Confidence
		}
	}
	return lowest
}
