package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chambersim.ai/internal/observerproto"
	"chambersim.ai/internal/persistence/indexdb"
	persistlog "chambersim.ai/internal/persistence/log"
	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/encoding"
)

// RunRecorder receives a summary of every run the server completes.
type RunRecorder interface {
	RecordRun(indexdb.RunRow)
}

type Config struct {
	MaxWidth    int
	MaxSessions int
	// DefaultInterval paces clients that do not ask for an interval.
	DefaultInterval time.Duration
	// MaxInterval caps the per-frame delay a client may request.
	MaxInterval time.Duration

	// FramesDir, when set, receives a frame log for every completed run.
	FramesDir string
	// OnFrameLog is called with the path of each closed frame log.
	OnFrameLog func(path string)
}

func (c *Config) applyDefaults() {
	if c.MaxWidth <= 0 {
		c.MaxWidth = 1 << 20
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 64
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
}

// Server streams chamber runs to websocket observers, one run per connection.
type Server struct {
	cfg Config
	rec RunRecorder
	log *log.Logger

	upgrader websocket.Upgrader
	sessions atomic.Int64
}

func NewServer(cfg Config, rec RunRecorder, logger *log.Logger) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg: cfg,
		rec: rec,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions is the number of connections currently streaming.
func (s *Server) Sessions() int64 { return s.sessions.Load() }

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if n := s.sessions.Add(1); n > int64(s.cfg.MaxSessions) {
			s.sessions.Add(-1)
			s.reject(conn, websocket.CloseTryAgainLater, observerproto.ErrServerBusy, "server busy")
			return
		}
		defer s.sessions.Add(-1)

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := observerproto.DecodeSubscribe(msg)
		if err != nil {
			s.reject(conn, websocket.ClosePolicyViolation, observerproto.ErrProtoBadRequest, err.Error())
			return
		}
		if sub.ProtocolVersion != observerproto.Version {
			s.reject(conn, websocket.ClosePolicyViolation, observerproto.ErrProtoBadRequest, "bad protocol_version")
			return
		}
		if len(sub.Chamber) > s.cfg.MaxWidth {
			s.reject(conn, websocket.ClosePolicyViolation, observerproto.ErrTooWide,
				fmt.Sprintf("chamber width %d exceeds %d", len(sub.Chamber), s.cfg.MaxWidth))
			return
		}
		st, err := chamber.NewStepper(sub.Speed, chamber.Desc(sub.Chamber))
		if err != nil {
			code := observerproto.ErrBadInput
			if errors.Is(err, chamber.ErrInvalidSpeed) {
				code = observerproto.ErrBadSpeed
			}
			s.reject(conn, websocket.ClosePolicyViolation, code, err.Error())
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader goroutine: the client sends nothing after SUBSCRIBE, so any
		// read result means it went away.
		go func() {
			_ = conn.SetReadDeadline(time.Time{})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		runID := uuid.NewString()
		var frameLog *persistlog.FrameLogger
		if s.cfg.FramesDir != "" {
			frameLog, err = persistlog.NewFrameLogger(s.cfg.FramesDir, runID, sub.Speed, []byte(sub.Chamber))
			if err != nil {
				s.log.Printf("observer run=%s: frame log: %v", runID, err)
				s.reject(conn, websocket.CloseInternalServerErr, observerproto.ErrInternal, "frame log unavailable")
				return
			}
		}

		start := time.Now()
		left, right := st.Active()
		var sink chamber.FrameSink
		if frameLog != nil {
			sink = frameLog
		}
		done, err := s.stream(ctx, conn, st, sub, sink)
		framesPath := s.closeFrameLog(frameLog, err == nil)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Printf("observer run=%s: %v", runID, err)
			}
			return
		}
		done.RunID = runID
		if err := writeJSON(conn, done); err != nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		elapsed := time.Since(start)
		s.log.Printf("observer run=%s speed=%d width=%d ticks=%d elapsed=%s", runID, sub.Speed, st.Width(), done.Ticks, elapsed)
		if s.rec != nil {
			s.rec.RecordRun(indexdb.RunRow{
				RunID:      runID,
				Source:     "observer",
				Speed:      sub.Speed,
				Width:      st.Width(),
				Left:       left,
				Right:      right,
				Ticks:      done.Ticks,
				ElapsedUS:  elapsed.Microseconds(),
				Digest:     done.Digest,
				FramesPath: framesPath,
			})
		}
	}
}

// closeFrameLog finishes a run's frame log. Logs of runs that did not
// complete are removed; kept logs are handed to OnFrameLog.
func (s *Server) closeFrameLog(l *persistlog.FrameLogger, complete bool) string {
	if l == nil {
		return ""
	}
	path := l.Path()
	if err := l.Close(); err != nil {
		s.log.Printf("observer: close %s: %v", path, err)
		complete = false
	}
	if !complete {
		_ = os.Remove(path)
		return ""
	}
	if s.cfg.OnFrameLog != nil {
		s.cfg.OnFrameLog(path)
	}
	return path
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, st *chamber.Stepper, sub observerproto.SubscribeMsg, sink chamber.FrameSink) (observerproto.DoneMsg, error) {
	interval := time.Duration(sub.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}
	if interval > s.cfg.MaxInterval {
		interval = s.cfg.MaxInterval
	}
	var tickC <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	digest := chamber.NewRunDigest()
	send := func(tick uint64, frame []byte, left, right int) error {
		if tickC != nil && tick > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		digest.Add(frame)
		if sink != nil {
			if err := sink.WriteFrame(tick, frame); err != nil {
				return fmt.Errorf("frame log: %w", err)
			}
		}
		msg := observerproto.FrameMsg{
			Type:            observerproto.TypeFrame,
			ProtocolVersion: observerproto.Version,
			Tick:            tick,
			ActiveLeft:      left,
			ActiveRight:     right,
			Encoding:        sub.Encoding,
		}
		if sub.Encoding == observerproto.EncodingRLE {
			msg.Data = encoding.EncodeFrame(frame)
		} else {
			msg.Frame = string(frame)
		}
		return writeJSON(conn, msg)
	}

	for {
		tick := st.Tick()
		left, right := st.Active()
		frame, ok := st.Next()
		if !ok {
			break
		}
		if err := send(tick, frame, left, right); err != nil {
			return observerproto.DoneMsg{}, err
		}
	}
	if err := send(st.Tick(), chamber.Blank(st.Width()), 0, 0); err != nil {
		return observerproto.DoneMsg{}, err
	}
	return observerproto.DoneMsg{
		Type:            observerproto.TypeDone,
		ProtocolVersion: observerproto.Version,
		Ticks:           st.Tick(),
		Digest:          digest.Sum(),
	}, nil
}

func (s *Server) reject(conn *websocket.Conn, closeCode int, code, msg string) {
	_ = writeJSON(conn, observerproto.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
