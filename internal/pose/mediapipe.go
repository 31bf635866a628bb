package pose

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// idleShutdown is how long the worker may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe Pose worker.
// Frames go to the worker as length-prefixed msgpack requests on stdin and
// landmarks come back the same way on stdout.
type MediaPipeDetector struct {
	config    Config
	logger    *zap.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe pose detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, logger *zap.Logger) (*MediaPipeDetector, error) {
	if findPoseScript() == "" {
		return nil, fmt.Errorf("pose_service.py not found")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MediaPipeDetector{
		config: config,
		logger: logger.With(zap.String("component", "mediapipe")),
	}, nil
}

type workerRequest struct {
	FrameData       []byte  `msgpack:"frame_data"`
	Width           int     `msgpack:"width"`
	Height          int     `msgpack:"height"`
	TimestampMs     int64   `msgpack:"timestamp_ms"`
	ModelComplexity int     `msgpack:"model_complexity"`
	MinConfidence   float64 `msgpack:"min_confidence"`
	MinTrackingConf float64 `msgpack:"min_tracking_confidence"`
}

type workerResponse struct {
	Landmarks      [][4]float64 `msgpack:"landmarks"`
	WorldLandmarks [][4]float64 `msgpack:"world_landmarks"`
	Error          string       `msgpack:"error"`
}

// Detect sends a frame to the worker and returns the detected pose.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) (Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Detection{TimestampMs: timestampMs}, nil
	}

	if err := d.ensureStarted(); err != nil {
		return Detection{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return Detection{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	payload, err := msgpack.Marshal(workerRequest{
		FrameData:       buf.GetBytes(),
		Width:           frame.Cols(),
		Height:          frame.Rows(),
		TimestampMs:     timestampMs,
		ModelComplexity: d.config.ModelComplexity,
		MinConfidence:   d.config.MinConfidence,
		MinTrackingConf: d.config.MinTrackingConf,
	})
	if err != nil {
		return Detection{}, fmt.Errorf("marshal request: %w", err)
	}

	if err := writeFrame(d.stdin, payload); err != nil {
		return Detection{}, err
	}

	data, err := readFrame(d.stdout)
	if err != nil {
		return Detection{}, err
	}

	var resp workerResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return Detection{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return Detection{}, fmt.Errorf("pose worker: %s", resp.Error)
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return Detection{
		Landmarks:      toLandmarks(resp.Landmarks),
		WorldLandmarks: toLandmarks(resp.WorldLandmarks),
		TimestampMs:    timestampMs,
	}, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// writeFrame writes a 4-byte big-endian length prefix followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed message.
func readFrame(r io.Reader) ([]byte, error) {
	length := make([]byte, 4)
	if _, err := io.ReadFull(r, length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	data := make([]byte, binary.BigEndian.Uint32(length))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return data, nil
}

func toLandmarks(points [][4]float64) []Landmark {
	if len(points) == 0 {
		return nil
	}
	out := make([]Landmark, len(points))
	for i, p := range points {
		out[i] = Landmark{X: p[0], Y: p[1], Z: p[2], Visibility: p[3]}
	}
	return out
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findPoseScript()
	if scriptPath == "" {
		return fmt.Errorf("pose_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	d.logger.Info("pose worker started",
		zap.String("python", pythonPath),
		zap.String("script", scriptPath),
		zap.Int("pid", d.cmd.Process.Pid))

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.logger.Info("pose worker stopped", zap.Duration("idle", time.Since(d.lastUsed)))

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.logger.Warn("pose worker exited with error", zap.Error(err))
		}
	})
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".bodyfit/scripts/pose_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".bodyfit/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
