package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "chambersim.ai/internal/persistence/log"
	"chambersim.ai/internal/sim/chamber"
)

func main() {
	var (
		framesPath = flag.String("frames", "", "path to a frames-*.jsonl.zst log")
		dir        = flag.String("dir", "", "verify every frame log in this directory")
		checkData  = flag.Bool("check_data", true, "also compare decoded frame data, not only digests")
	)
	flag.Parse()

	var files []string
	switch {
	case *framesPath != "":
		files = []string{*framesPath}
	case *dir != "":
		var err error
		files, err = listFrameLogs(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list frame logs:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no frame logs found in", *dir)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "missing -frames or -dir")
		os.Exit(2)
	}

	for _, path := range files {
		res, err := verifyLog(path, *checkData)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("replay ok: run=%s speed=%d width=%d frames=%d digest=%s\n",
			res.RunID, res.Speed, res.Width, res.Frames, res.Digest)
	}
}

func listFrameLogs(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "frames-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type result struct {
	RunID  string
	Speed  int
	Width  int
	Frames int
	Digest string
}

// verifier re-checks recorded frames as the simulation produces them again.
type verifier struct {
	entries   []persistlog.Entry
	checkData bool
	next      int
}

func (v *verifier) WriteFrame(tick uint64, frame []byte) error {
	if v.next >= len(v.entries) {
		return fmt.Errorf("log ends before tick %d", tick)
	}
	e := v.entries[v.next]
	v.next++
	if e.Tick != tick {
		return fmt.Errorf("tick mismatch: want=%d got=%d", tick, e.Tick)
	}
	if got := chamber.FrameDigest(frame); got != e.Digest {
		return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, e.Digest)
	}
	if v.checkData {
		recorded, err := e.Frame()
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		if !bytes.Equal(recorded, frame) {
			return fmt.Errorf("frame mismatch at tick %d", tick)
		}
	}
	return nil
}

func verifyLog(path string, checkData bool) (result, error) {
	header, entries, err := persistlog.ReadFrameLog(path)
	if err != nil {
		return result{}, err
	}
	if header.Width != len(header.Chamber) {
		return result{}, fmt.Errorf("%s: header width %d does not match chamber length %d",
			filepath.Base(path), header.Width, len(header.Chamber))
	}
	v := &verifier{entries: entries, checkData: checkData}
	sum, err := chamber.Run(header.Speed, chamber.Desc(header.Chamber), v)
	if err != nil {
		return result{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if v.next != len(entries) {
		return result{}, fmt.Errorf("%s: log has %d frames, simulation produced %d",
			filepath.Base(path), len(entries), v.next)
	}
	return result{
		RunID:  header.RunID,
		Speed:  header.Speed,
		Width:  header.Width,
		Frames: len(entries),
		Digest: sum.Digest,
	}, nil
}
