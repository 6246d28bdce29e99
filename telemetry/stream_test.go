package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"github.com/pthm-cable/puddle/systems"
)

func testField() *systems.VelocityField {
	f := systems.NewVelocityField(4)
	for i := range f.Data {
		f.Data[i] = mgl32.Vec2{float32(i) * 0.01, -float32(i) * 0.02}
	}
	return f
}

func TestFrameRoundTrip(t *testing.T) {
	field := testField()
	tick, got, err := DecodeFrame(EncodeFrame(17, field))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if tick != 17 || got.Res != 4 {
		t.Fatalf("expected tick 17 res 4, got tick %d res %d", tick, got.Res)
	}
	for i := range field.Data {
		if got.Data[i] != field.Data[i] {
			t.Fatalf("cell %d: got %v, want %v", i, got.Data[i], field.Data[i])
		}
	}
}

func TestDecodeFrameRejectsBadSize(t *testing.T) {
	buf := EncodeFrame(1, testField())
	if _, _, err := DecodeFrame(buf[:len(buf)-3]); err == nil {
		t.Error("expected an error for a truncated frame")
	}
	if _, _, err := DecodeFrame(buf[:4]); err == nil {
		t.Error("expected an error for a missing header")
	}
}

func TestStreamerDeliversLatestFrame(t *testing.T) {
	s := NewStreamer(5 * time.Millisecond)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	s.Publish(3, testField())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("expected a binary message, got type %d", mt)
	}
	tick, field, err := DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if tick != 3 || field.Res != 4 {
		t.Errorf("expected tick 3 res 4, got tick %d res %d", tick, field.Res)
	}
}

func TestStreamerCloseDisconnectsClients(t *testing.T) {
	s := NewStreamer(5 * time.Millisecond)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// The server registers the client just after the handshake
	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Clients() != 1 {
		t.Fatalf("expected 1 client before Close, got %d", s.Clients())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	start := time.Now()
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsCloseError(err, websocket.CloseGoingAway) {
			break
		}
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			t.Fatalf("client still connected %v after Close", time.Since(start))
		}
		break
	}

	deadline = time.Now().Add(2 * time.Second)
	for s.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Clients() != 0 {
		t.Errorf("expected 0 clients after Close, got %d", s.Clients())
	}

	// Second Close is a no-op
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStreamerNilSafe(t *testing.T) {
	var s *Streamer
	s.Publish(1, testField())
	if s.Clients() != 0 || s.Addr() != "" {
		t.Error("expected nil streamer to report nothing")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil streamer: %v", err)
	}
}
