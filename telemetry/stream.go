package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/puddle/systems"
)

// frameHeaderSize is tick (uint32) + resolution (uint32).
const frameHeaderSize = 8

const maxStreamClients = 8

// Streamer broadcasts the latest velocity snapshot to websocket clients as
// little-endian binary frames: tick, res, then res*res (vx, vy) float32 pairs.
// Publish is called from the tick thread; each client has its own writer.
type Streamer struct {
	interval time.Duration
	upgrader websocket.Upgrader

	frame   atomic.Pointer[[]byte]
	clients atomic.Int32

	server   *http.Server
	listener net.Listener

	// Live connections, closed by Close
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	done   chan struct{}
}

// NewStreamer creates a streamer that pushes at most one frame per interval
// to each client.
func NewStreamer(interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Streamer{
		interval: interval,
		conns:    make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start listens on addr and serves the stream at /ws in the background.
func (s *Streamer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening for stream: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())

	s.listener = ln
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("stream server stopped", "error", err)
		}
	}()
	slog.Info("field stream listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or "" if not started.
func (s *Streamer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected clients.
func (s *Streamer) Clients() int {
	if s == nil {
		return 0
	}
	return int(s.clients.Load())
}

// Publish encodes field as the frame sent to clients from now on.
func (s *Streamer) Publish(tick int32, field *systems.VelocityField) {
	if s == nil || field == nil {
		return
	}
	frame := EncodeFrame(tick, field)
	s.frame.Store(&frame)
}

// Handler upgrades requests to websocket connections and streams frames.
func (s *Streamer) Handler() http.Handler {
	return http.HandlerFunc(s.serveClient)
}

func (s *Streamer) serveClient(w http.ResponseWriter, r *http.Request) {
	if s.clients.Add(1) > maxStreamClients {
		s.clients.Add(-1)
		http.Error(w, "too many stream clients", http.StatusServiceUnavailable)
		return
	}
	defer s.clients.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	// Drain reads so close frames are noticed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var sent *[]byte
	for {
		select {
		case <-done:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-s.done:
			return
		case <-ticker.C:
			frame := s.frame.Load()
			if frame == nil || frame == sent {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, *frame); err != nil {
				slog.Warn("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
			sent = frame
		}
	}
}

// track registers a live connection. It refuses connections that arrive
// after Close.
func (s *Streamer) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Streamer) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops the server and disconnects clients with a close frame.
// Hijacked websocket connections outlive http.Server.Close, so they are
// closed here one by one. Safe to call twice.
func (s *Streamer) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if s.server != nil {
		err = s.server.Close()
	}

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed")
	for _, c := range conns {
		c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(100*time.Millisecond))
		c.Close()
	}
	return err
}

// EncodeFrame serializes a velocity field into a stream frame.
func EncodeFrame(tick int32, field *systems.VelocityField) []byte {
	buf := make([]byte, frameHeaderSize+len(field.Data)*8)
	binary.LittleEndian.PutUint32(buf[0:], uint32(tick))
	binary.LittleEndian.PutUint32(buf[4:], uint32(field.Res))
	off := frameHeaderSize
	for _, v := range field.Data {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v[1]))
		off += 8
	}
	return buf
}

// DecodeFrame parses a stream frame back into a velocity field.
func DecodeFrame(buf []byte) (tick int32, field *systems.VelocityField, err error) {
	if len(buf) < frameHeaderSize {
		return 0, nil, fmt.Errorf("frame too short: %d bytes", len(buf))
	}
	tick = int32(binary.LittleEndian.Uint32(buf[0:]))
	res := int(binary.LittleEndian.Uint32(buf[4:]))
	if want := frameHeaderSize + res*res*8; len(buf) != want {
		return 0, nil, fmt.Errorf("frame size %d does not match resolution %d", len(buf), res)
	}

	field = systems.NewVelocityField(res)
	off := frameHeaderSize
	for i := range field.Data {
		field.Data[i][0] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		field.Data[i][1] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4:]))
		off += 8
	}
	return tick, field, nil
}
