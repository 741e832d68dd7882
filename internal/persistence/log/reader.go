package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"chambersim.ai/internal/sim/encoding"
)

// ReadFrameLog loads a frame log written by FrameLogger.
func ReadFrameLog(path string) (Entry, []Entry, error) {
	var header Entry
	f, err := os.Open(path)
	if err != nil {
		return header, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return header, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var frames []Entry
	line := 0
	for sc.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return header, nil, fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		switch {
		case line == 1:
			if e.Type != EntryRun {
				return header, nil, fmt.Errorf("%s: first entry is %q, want %s", filepath.Base(path), e.Type, EntryRun)
			}
			header = e
		case e.Type == EntryFrame:
			frames = append(frames, e)
		default:
			return header, nil, fmt.Errorf("%s:%d: unexpected entry %q", filepath.Base(path), line, e.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return header, nil, err
	}
	if line == 0 {
		return header, nil, fmt.Errorf("%s: empty frame log", filepath.Base(path))
	}
	return header, frames, nil
}

// Frame decodes the frame carried by a FRAME entry.
func (e Entry) Frame() ([]byte, error) {
	if e.Encoding != "RLE" {
		return nil, fmt.Errorf("unsupported frame encoding %q", e.Encoding)
	}
	return encoding.DecodeFrame(e.Data)
}
