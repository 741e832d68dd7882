package observer

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chambersim.ai/internal/observerproto"
	"chambersim.ai/internal/persistence/indexdb"
	persistlog "chambersim.ai/internal/persistence/log"
	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/encoding"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []indexdb.RunRow
}

func (m *memRecorder) RecordRun(r indexdb.RunRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
}

func (m *memRecorder) snapshot() []indexdb.RunRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]indexdb.RunRow(nil), m.rows...)
}

func newTestServer(t *testing.T, cfg Config, rec RunRecorder) *httptest.Server {
	t.Helper()
	srv := NewServer(cfg, rec, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.WSHandler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readRun collects FRAME messages until DONE or ERROR.
func readRun(t *testing.T, conn *websocket.Conn) ([]observerproto.FrameMsg, *observerproto.DoneMsg, *observerproto.ErrorMsg) {
	t.Helper()
	var frames []observerproto.FrameMsg
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		base, err := observerproto.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		switch base.Type {
		case observerproto.TypeFrame:
			var f observerproto.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				t.Fatalf("frame: %v", err)
			}
			frames = append(frames, f)
		case observerproto.TypeDone:
			var d observerproto.DoneMsg
			if err := json.Unmarshal(msg, &d); err != nil {
				t.Fatalf("done: %v", err)
			}
			return frames, &d, nil
		case observerproto.TypeError:
			var e observerproto.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				t.Fatalf("error msg: %v", err)
			}
			return frames, nil, &e
		default:
			t.Fatalf("unexpected message type %q", base.Type)
		}
	}
}

func subscribe(t *testing.T, conn *websocket.Conn, sub observerproto.SubscribeMsg) {
	t.Helper()
	sub.Type = observerproto.TypeSubscribe
	if sub.ProtocolVersion == "" {
		sub.ProtocolVersion = observerproto.Version
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("send SUBSCRIBE: %v", err)
	}
}

func TestObserver_StreamsRun(t *testing.T) {
	rec := &memRecorder{}
	ts := newTestServer(t, Config{}, rec)
	conn := dial(t, ts)
	subscribe(t, conn, observerproto.SubscribeMsg{Speed: 3, Chamber: "RR..LRL"})

	frames, done, errMsg := readRun(t, conn)
	if errMsg != nil {
		t.Fatalf("server error: %+v", errMsg)
	}
	want, _ := chamber.Simulate(3, []byte("RR..LRL"))
	if len(frames) != len(want) {
		t.Fatalf("frames=%d want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Frame != want[i] || f.Tick != uint64(i) || f.Encoding != observerproto.EncodingText {
			t.Fatalf("frame %d: %+v want %q", i, f, want[i])
		}
	}
	if frames[0].ActiveLeft != 2 || frames[0].ActiveRight != 3 {
		t.Fatalf("first frame active=(%d,%d)", frames[0].ActiveLeft, frames[0].ActiveRight)
	}

	sum, _ := chamber.Run(3, []byte("RR..LRL"), nil)
	if done.Ticks != 3 || done.Digest != sum.Digest || done.RunID == "" {
		t.Fatalf("done=%+v want digest %s", done, sum.Digest)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	rows := rec.snapshot()
	if len(rows) != 1 || rows[0].RunID != done.RunID || rows[0].Source != "observer" || rows[0].Width != 7 {
		t.Fatalf("recorded=%+v", rows)
	}
}

func TestObserver_RLEEncoding(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	conn := dial(t, ts)
	in := strings.Repeat(".", 300) + "R" + strings.Repeat(".", 300)
	subscribe(t, conn, observerproto.SubscribeMsg{Speed: 150, Chamber: in, Encoding: observerproto.EncodingRLE})

	frames, done, errMsg := readRun(t, conn)
	if errMsg != nil || done == nil {
		t.Fatalf("err=%+v", errMsg)
	}
	want, _ := chamber.Animate(150, in)
	if len(frames) != len(want) {
		t.Fatalf("frames=%d want %d", len(frames), len(want))
	}
	for i, f := range frames {
		got, err := encoding.DecodeFrame(f.Data)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(got) != want[i] {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

func TestObserver_PacesFrames(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	conn := dial(t, ts)
	start := time.Now()
	subscribe(t, conn, observerproto.SubscribeMsg{Speed: 1, Chamber: "R...", IntervalMs: 20})

	frames, done, _ := readRun(t, conn)
	if done == nil || len(frames) != 5 {
		t.Fatalf("frames=%d done=%v", len(frames), done)
	}
	// Four waits between five frames.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("run finished too quickly: %s", elapsed)
	}
}

func TestObserver_RejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, Config{MaxWidth: 8}, nil)

	cases := []struct {
		sub  observerproto.SubscribeMsg
		code string
	}{
		{observerproto.SubscribeMsg{Speed: 0, Chamber: "R"}, observerproto.ErrBadSpeed},
		{observerproto.SubscribeMsg{Speed: 1, Chamber: "R........"}, observerproto.ErrTooWide},
		{observerproto.SubscribeMsg{Speed: 1, Chamber: "R", ProtocolVersion: "9.9"}, observerproto.ErrProtoBadRequest},
	}
	for _, c := range cases {
		conn := dial(t, ts)
		subscribe(t, conn, c.sub)
		frames, done, errMsg := readRun(t, conn)
		if errMsg == nil || errMsg.Code != c.code {
			t.Fatalf("sub=%+v: expected %s, got err=%+v done=%+v", c.sub, c.code, errMsg, done)
		}
		if len(frames) != 0 {
			t.Fatalf("sub=%+v: got %d frames before error", c.sub, len(frames))
		}
	}

	conn := dial(t, ts)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, errMsg := readRun(t, conn)
	if errMsg == nil || errMsg.Code != observerproto.ErrProtoBadRequest {
		t.Fatalf("expected bad request, got %+v", errMsg)
	}
}

func TestObserver_DefaultInterval(t *testing.T) {
	ts := newTestServer(t, Config{DefaultInterval: 20 * time.Millisecond}, nil)
	conn := dial(t, ts)
	start := time.Now()
	subscribe(t, conn, observerproto.SubscribeMsg{Speed: 1, Chamber: "...L"})

	frames, done, _ := readRun(t, conn)
	if done == nil || len(frames) != 5 {
		t.Fatalf("frames=%d done=%v", len(frames), done)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("default interval not applied: %s", elapsed)
	}
}

func TestObserver_WritesFrameLog(t *testing.T) {
	dir := t.TempDir()
	logged := make(chan string, 1)
	rec := &memRecorder{}
	ts := newTestServer(t, Config{
		FramesDir:  dir,
		OnFrameLog: func(path string) { logged <- path },
	}, rec)
	conn := dial(t, ts)
	subscribe(t, conn, observerproto.SubscribeMsg{Speed: 2, Chamber: "LRLR.LRLR"})

	frames, done, errMsg := readRun(t, conn)
	if errMsg != nil || done == nil {
		t.Fatalf("err=%+v", errMsg)
	}

	var path string
	select {
	case path = <-logged:
	case <-time.After(2 * time.Second):
		t.Fatalf("OnFrameLog not called")
	}
	if path != persistlog.FrameLogPath(dir, done.RunID) {
		t.Fatalf("path=%s", path)
	}
	header, entries, err := persistlog.ReadFrameLog(path)
	if err != nil {
		t.Fatalf("ReadFrameLog: %v", err)
	}
	if header.Chamber != "LRLR.LRLR" || len(entries) != len(frames) {
		t.Fatalf("header=%+v entries=%d frames=%d", header, len(entries), len(frames))
	}
	for i, e := range entries {
		if e.Digest != chamber.FrameDigest([]byte(frames[i].Frame)) {
			t.Fatalf("entry %d digest mismatch", i)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rows := rec.snapshot(); len(rows) != 1 || rows[0].FramesPath != path {
		t.Fatalf("rows=%+v", rows)
	}
}
