package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// MaxFrameWidth bounds the decoded length of a frame.
const MaxFrameWidth = math.MaxInt32

// EncodeFrame encodes a frame into base64(varint pairs).
// The pairs are (symbol, run_len) repeated.
func EncodeFrame(frame []byte) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(frame) {
		b := frame[i]
		run := 1
		for j := i + 1; j < len(frame) && frame[j] == b; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeFrame reverses EncodeFrame. All pairs are validated, and the total
// width checked against MaxFrameWidth, before anything is allocated.
func DecodeFrame(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	type pair struct {
		sym byte
		run int
	}
	var ps []pair
	total := 0
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFF {
			return nil, fmt.Errorf("symbol too large: %d", b)
		}
		if run == 0 {
			return nil, fmt.Errorf("empty run at %d", i)
		}
		if run > uint64(MaxFrameWidth-total) {
			return nil, fmt.Errorf("run of %d at %d exceeds max frame width %d", run, i, MaxFrameWidth)
		}
		total += int(run)
		ps = append(ps, pair{sym: byte(b), run: int(run)})
	}
	out := make([]byte, 0, total)
	for _, p := range ps {
		out = append(out, bytes.Repeat([]byte{p.sym}, p.run)...)
	}
	return out, nil
}
