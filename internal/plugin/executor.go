package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single plugin run.
const DefaultTimeout = 5 * time.Second

// Executor runs plugin executables with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout uses DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Timeout returns the per-run limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute sends req to the plugin on stdin and parses its stdout as a
// Response. The plugin runs in its own directory.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("plugin execution timeout after %s", e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}
	return &response, nil
}

// Dispatcher runs every interested exporter for a capture.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. logger may be nil.
func NewDispatcher(manager *Manager, executor *Executor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{manager: manager, executor: executor, logger: logger}
}

// Export runs the capture through every plugin that handles it, in
// parallel, and returns one Result per plugin in name order.
func (d *Dispatcher) Export(ctx context.Context, c Capture) []Result {
	plugins := d.manager.For(EventCapture, c.Garment)
	results := make([]Result, len(plugins))

	var wg sync.WaitGroup
	for i, p := range plugins {
		wg.Add(1)
		go func(i int, p *Plugin) {
			defer wg.Done()
			results[i] = d.run(ctx, p, c)
		}(i, p)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) run(ctx context.Context, p *Plugin, c Capture) Result {
	start := time.Now()
	res := Result{Plugin: p.Manifest.Name}

	resp, err := d.executor.Execute(ctx, p, &Request{Event: EventCapture, Capture: c})
	res.Duration = time.Since(start)

	switch {
	case err != nil:
		res.Message = err.Error()
	case !resp.Success:
		res.Message = resp.Error
	default:
		res.Success = true
		res.Message = resp.Message
	}

	if res.Success {
		d.logger.Info("capture exported",
			zap.String("plugin", res.Plugin),
			zap.String("capture_id", c.ID),
			zap.Duration("took", res.Duration))
	} else {
		d.logger.Warn("capture export failed",
			zap.String("plugin", res.Plugin),
			zap.String("capture_id", c.ID),
			zap.String("reason", res.Message))
	}
	return res
}
