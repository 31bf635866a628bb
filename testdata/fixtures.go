// Package testdata provides recorded pose detections for tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/bodyfit/internal/pose"
)

//go:embed poses/*.json
var posesFS embed.FS

// Pose fixture names.
const (
	// Standing is a full-body subject square to the camera.
	Standing = "standing"
	// UpperBody stops at the hips, as when the legs are out of frame.
	UpperBody = "upper_body"
	// ArmHidden has the left arm barely visible.
	ArmHidden = "arm_hidden"
	// TooClose overflows the frame on every side.
	TooClose = "too_close"
)

// LoadPose loads a pose fixture by name.
func LoadPose(name string) (pose.Detection, error) {
	data, err := posesFS.ReadFile(path.Join("poses", name+".json"))
	if err != nil {
		return pose.Detection{}, fmt.Errorf("load pose %s: %w", name, err)
	}

	var d pose.Detection
	if err := json.Unmarshal(data, &d); err != nil {
		return pose.Detection{}, fmt.Errorf("decode pose %s: %w", name, err)
	}
	return d, nil
}

// MustLoadPose is LoadPose for tests; it panics on error.
func MustLoadPose(name string) pose.Detection {
	d, err := LoadPose(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Poses lists the available fixture names.
func Poses() ([]string, error) {
	entries, err := posesFS.ReadDir("poses")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}
