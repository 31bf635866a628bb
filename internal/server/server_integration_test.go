package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/bodyfit/internal/autocapture"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/store"
	"github.com/ayusman/bodyfit/internal/units"
)

type stubSession struct {
	status session.Status
}

func (s *stubSession) Status() session.Status { return s.status }

func (s *stubSession) SetGarment(k garment.Kind) error {
	s.status.Garment = k
	return nil
}

func (s *stubSession) SetUnit(u units.Unit) error {
	s.status.Unit = u
	return nil
}

func (s *stubSession) SetHeightHint(cm float64) error {
	s.status.HeightHintCm = cm
	return nil
}

func TestAPI_CaptureWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	err = s.Captures().Create(&store.Capture{
		ID:          "cap-1",
		Garment:     "shirt",
		Unit:        "cm",
		TimestampMs: 3000,
		CapturedAt:  time.Now().UTC(),
		Measurements: []store.Measurement{
			{Kind: "chest", Label: "Chest", ValueCm: 98.2, Confidence: 0.8},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List captures
	resp, err := client.Get(ts.URL + "/api/captures")
	if err != nil {
		t.Fatalf("GET /api/captures error = %v", err)
	}
	var listed struct {
		Captures []struct {
			ID string `json:"id"`
		} `json:"captures"`
		Total int `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || listed.Total != 1 || len(listed.Captures) != 1 {
		t.Fatalf("GET /api/captures = %d %+v", resp.StatusCode, listed)
	}

	// 2. Get single capture
	resp, _ = client.Get(ts.URL + "/api/captures/cap-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/captures/cap-1 status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 3. Delete capture
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/captures/cap-1", nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/captures/cap-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_SessionWorkflow(t *testing.T) {
	stub := &stubSession{status: session.Status{Garment: garment.Shirt, Unit: units.Cm, State: autocapture.Idle}}
	ts := httptest.NewServer(New(Config{Session: stub}))
	defer ts.Close()

	body := `{"garment":"trousers","unit":"in"}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/session", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/session error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, _ = ts.Client().Get(ts.URL + "/api/session")
	var status session.Status
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if status.Garment != garment.Trousers || status.Unit != units.Inch {
		t.Errorf("status = %+v", status)
	}

	resp, _ = ts.Client().Get(ts.URL + "/api/garments")
	var garments struct {
		Garments []struct {
			Kind string `json:"kind"`
		} `json:"garments"`
	}
	json.NewDecoder(resp.Body).Decode(&garments)
	resp.Body.Close()
	if len(garments.Garments) != len(garment.Kinds()) {
		t.Errorf("len(garments) = %d, want %d", len(garments.Garments), len(garment.Kinds()))
	}
}

func TestAPI_LiveFeed(t *testing.T) {
	hub := NewHub(nil, nil)
	counts := make(chan int, 4)
	hub.OnClientsChanged(func(n int) { counts <- n })

	srv := New(Config{Hub: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case n := <-counts:
		if n != 1 {
			t.Fatalf("clients = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
	}

	if err := hub.BroadcastJSON(map[string]string{"instruction": "Hold still"}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(msg) != `{"instruction":"Hold still"}` {
		t.Errorf("message = %s", msg)
	}

	conn.Close()
	select {
	case n := <-counts:
		if n != 0 {
			t.Errorf("clients after close = %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Error("client never unregistered")
	}
}

func TestAPI_LiveFeed_RejectsOrigin(t *testing.T) {
	ts := httptest.NewServer(New(Config{Hub: NewHub([]string{"http://tablet.local"}, nil)}))
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://elsewhere"}}
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected dial to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestAPI_PreviewStream(t *testing.T) {
	preview := NewPreview()
	ts := httptest.NewServer(New(Config{Preview: preview}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !preview.Wanted() {
		if time.Now().After(deadline) {
			t.Fatal("stream client not counted as a viewer")
		}
		time.Sleep(10 * time.Millisecond)
	}

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	preview.Publish(jpeg)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read boundary: %v", err)
	}
	if line != "--frame\r\n" {
		t.Errorf("boundary = %q", line)
	}
	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		if line == "\r\n" {
			break
		}
	}
	got := make([]byte, len(jpeg))
	if _, err := reader.Read(got); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !bytes.Equal(got, jpeg) {
		t.Errorf("frame = %x, want %x", got, jpeg)
	}
}

func TestPreview_Latest(t *testing.T) {
	p := NewPreview()
	if frame, seq := p.Latest(); frame != nil || seq != 0 {
		t.Fatalf("Latest() = %v, %d on empty preview", frame, seq)
	}

	p.Publish([]byte("a"))
	p.Publish([]byte("b"))
	frame, seq := p.Latest()
	if string(frame) != "b" || seq != 2 {
		t.Errorf("Latest() = %q, %d", frame, seq)
	}

	if _, _, ok := p.next(seq, 20*time.Millisecond); ok {
		t.Error("next() should time out without a new frame")
	}
	if frame, _, ok := p.next(1, time.Second); !ok || string(frame) != "b" {
		t.Errorf("next(1) = %q, %v", frame, ok)
	}
}
