// Command csv-export is an exporter plugin that appends every measurement of
// a capture as one row of a CSV file.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/bodyfit/internal/plugin"
)

const defaultPath = "captures.csv"

// Config is read from the request's config field.
type Config struct {
	Path string `json:"path"`
}

var header = []string{
	"capture_id", "captured_at", "garment", "kind", "label",
	"value", "unit", "value_cm", "confidence",
}

func main() {
	resp := run(os.Stdin)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(r io.Reader) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}
	if req.Event != plugin.EventCapture {
		return failure(fmt.Sprintf("unsupported event: %s", req.Event))
	}

	cfg := Config{Path: defaultPath}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return failure(fmt.Sprintf("invalid config: %v", err))
		}
	}

	n, err := appendRows(cfg.Path, req.Capture)
	if err != nil {
		return failure(err.Error())
	}
	return plugin.Response{
		Success: true,
		Message: fmt.Sprintf("wrote %d rows to %s", n, filepath.Base(cfg.Path)),
	}
}

func appendRows(path string, c plugin.Capture) (int, error) {
	info, statErr := os.Stat(path)
	writeHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return 0, err
		}
	}
	for _, m := range c.Measurements {
		row := []string{
			c.ID,
			c.CapturedAt.UTC().Format(time.RFC3339),
			c.Garment,
			m.Kind,
			m.Label,
			strconv.FormatFloat(m.Value, 'f', 1, 64),
			m.Unit,
			strconv.FormatFloat(m.ValueCm, 'f', 2, 64),
			strconv.FormatFloat(m.Confidence, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return len(c.Measurements), w.Error()
}

func failure(msg string) plugin.Response {
	return plugin.Response{Success: false, Error: msg}
}
