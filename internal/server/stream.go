package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Preview holds the most recent JPEG preview frame. The frame loop only
// encodes previews while someone is watching.
type Preview struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   []byte
	seq     uint64
	viewers atomic.Int32
}

func NewPreview() *Preview {
	p := &Preview{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Wanted reports whether any stream client is connected.
func (p *Preview) Wanted() bool {
	return p.viewers.Load() > 0
}

// Publish replaces the current preview frame.
func (p *Preview) Publish(jpeg []byte) {
	p.mu.Lock()
	p.frame = jpeg
	p.seq++
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Latest returns the current frame and its sequence number.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.seq
}

// next blocks until a frame newer than seq is published or timeout passes.
func (p *Preview) next(seq uint64, timeout time.Duration) ([]byte, uint64, bool) {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		p.mu.Unlock()
		p.cond.Broadcast()
	})
	defer timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.seq == seq {
		if !time.Now().Before(deadline) {
			return nil, seq, false
		}
		p.cond.Wait()
	}
	return p.frame, p.seq, true
}

// StreamHandler serves the preview as an MJPEG stream.
type StreamHandler struct {
	preview *Preview
}

// NewStreamHandler creates a new StreamHandler for preview.
func NewStreamHandler(preview *Preview) *StreamHandler {
	return &StreamHandler{preview: preview}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.preview.viewers.Add(1)
	defer h.preview.viewers.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var seq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame, next, ok := h.preview.next(seq, time.Second)
		if !ok {
			continue
		}
		seq = next
		if len(frame) == 0 {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
		if _, err := w.Write(frame); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if flusher != nil {
			flusher.Flush()
		}
	}
}
