// Package garment maps garment types to the body region, landmarks and
// measurements they need.
package garment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ayusman/bodyfit/internal/measure"
	"github.com/ayusman/bodyfit/internal/pose"
)

// Kind is a garment type.
type Kind string

const (
	Shirt    Kind = "shirt"
	Trousers Kind = "trousers"
	Suit     Kind = "suit"
)

// Region is the part of the body a garment covers.
type Region string

const (
	Upper Region = "upper"
	Lower Region = "lower"
	Full  Region = "full"
)

// Profile describes what a garment type needs from a pose.
type Profile struct {
	Kind         Kind
	Region       Region
	Required     []int
	Measurements []measure.Kind
}

var (
	upperMeasurements = []measure.Kind{
		measure.ShoulderWidth,
		measure.NeckCircumference,
		measure.Chest,
		measure.Waist,
		measure.SleeveLength,
		measure.Bicep,
	}
	lowerMeasurements = []measure.Kind{
		measure.Waist,
		measure.Hip,
		measure.Outseam,
		measure.Inseam,
		measure.Thigh,
		measure.Calf,
	}

	upperRequired = []int{
		pose.LeftShoulder, pose.RightShoulder,
		pose.LeftElbow, pose.RightElbow,
		pose.LeftWrist, pose.RightWrist,
		pose.LeftHip, pose.RightHip,
	}
	// Shoulders anchor the scale factor, so lower-body garments need them too.
	lowerRequired = []int{
		pose.LeftShoulder, pose.RightShoulder,
		pose.LeftHip, pose.RightHip,
		pose.LeftKnee, pose.RightKnee,
		pose.LeftAnkle, pose.RightAnkle,
	}
)

var profiles = map[Kind]Profile{
	Shirt: {
		Kind:         Shirt,
		Region:       Upper,
		Required:     upperRequired,
		Measurements: upperMeasurements,
	},
	Trousers: {
		Kind:         Trousers,
		Region:       Lower,
		Required:     lowerRequired,
		Measurements: lowerMeasurements,
	},
	Suit: {
		Kind:         Suit,
		Region:       Full,
		Required:     union(upperRequired, lowerRequired),
		Measurements: unionKinds(upperMeasurements, lowerMeasurements),
	},
}

// Lookup returns the profile for a garment kind.
func Lookup(k Kind) (Profile, bool) {
	p, ok := profiles[k]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// Parse returns the garment kind named by s, case-insensitively.
func Parse(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[k]; !ok {
		return "", fmt.Errorf("unknown garment %q", s)
	}
	return k, nil
}

// Kinds returns every known garment kind in alphabetical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p Profile) clone() Profile {
	p.Required = append([]int(nil), p.Required...)
	p.Measurements = append([]measure.Kind(nil), p.Measurements...)
	return p
}

func union(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, s := range [][]int{a, b} {
		for _, i := range s {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

func unionKinds(a, b []measure.Kind) []measure.Kind {
	seen := make(map[measure.Kind]bool, len(a)+len(b))
	var out []measure.Kind
	for _, s := range [][]measure.Kind{a, b} {
		for _, k := range s {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
