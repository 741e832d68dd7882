package observerproto

import "encoding/json"

// Version is the observer protocol version.
const Version = "0.1"

// Message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeDone      = "DONE"
	TypeError     = "ERROR"
)

// Frame encodings.
const (
	EncodingText = "TEXT"
	EncodingRLE  = "RLE"
)

// BaseMessage lets clients route messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Client -> Server. First and only message on the connection: the chamber to
// run and how to pace it.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Speed           int    `json:"speed"`
	Chamber         string `json:"chamber"`

	// Optional: delay between frames; 0 streams as fast as the socket allows.
	IntervalMs int `json:"interval_ms,omitempty"`
	// Optional: TEXT (default) or RLE for wide chambers.
	Encoding string `json:"encoding,omitempty"`
}

// Server -> Client. One per tick plus the trailing empty frame.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	ActiveLeft      int    `json:"active_left"`
	ActiveRight     int    `json:"active_right"`
	Encoding        string `json:"encoding"`
	Frame           string `json:"frame,omitempty"`
	Data            string `json:"data,omitempty"`
}

// Server -> Client. Sent after the trailing empty frame.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Ticks           uint64 `json:"ticks"`
	Digest          string `json:"digest"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
