// Package plugin discovers and runs exporter plugins. An exporter is an
// executable that receives one finished capture as JSON on stdin and
// answers with a JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"time"
)

// EventCapture is the only event exporters currently receive.
const EventCapture = "capture"

// Manifest describes a plugin's metadata and capabilities. It is read from
// plugin.json in the plugin's directory.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	Garments     []string        `json:"garments,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin wants event for garment. An empty
// Events list means every event; an empty Garments list means every garment.
func (m Manifest) Handles(event, garment string) bool {
	return contains(m.Events, event) && contains(m.Garments, garment)
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Measurement is one capture measurement as exporters see it.
type Measurement struct {
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	ValueCm    float64 `json:"value_cm"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// Capture is the capture payload sent to exporters.
type Capture struct {
	ID           string        `json:"id"`
	Garment      string        `json:"garment"`
	Unit         string        `json:"unit"`
	HeightHintCm float64       `json:"height_hint_cm,omitempty"`
	ImagePath    string        `json:"image_path,omitempty"`
	CapturedAt   time.Time     `json:"captured_at"`
	Measurements []Measurement `json:"measurements"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Event   string          `json:"event"`
	Capture Capture         `json:"capture"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Result is the outcome of running one plugin for one capture.
type Result struct {
	Plugin   string
	Success  bool
	Message  string
	Duration time.Duration
}
