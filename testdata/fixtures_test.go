package testdata

import (
	"testing"

	"github.com/ayusman/bodyfit/internal/pose"
)

func TestLoadPose(t *testing.T) {
	tests := []struct {
		name      string
		landmarks int
	}{
		{Standing, pose.NumLandmarks},
		{UpperBody, 25},
		{ArmHidden, pose.NumLandmarks},
		{TooClose, pose.NumLandmarks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LoadPose(tt.name)
			if err != nil {
				t.Fatalf("LoadPose() error = %v", err)
			}
			if len(d.Landmarks) != tt.landmarks {
				t.Errorf("landmarks = %d, want %d", len(d.Landmarks), tt.landmarks)
			}
		})
	}

	if _, err := LoadPose("missing"); err == nil {
		t.Error("expected error for a missing fixture")
	}
}

func TestStandingMatchesPreset(t *testing.T) {
	fixture := MustLoadPose(Standing)
	preset := pose.StandingPose()
	for i, l := range preset.Landmarks {
		if fixture.Landmarks[i] != l {
			t.Fatalf("landmark %d = %+v, preset %+v", i, fixture.Landmarks[i], l)
		}
	}
}

func TestPoses(t *testing.T) {
	names, err := Poses()
	if err != nil {
		t.Fatalf("Poses() error = %v", err)
	}
	if len(names) != 4 {
		t.Errorf("Poses() = %v", names)
	}
}
