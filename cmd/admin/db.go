package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chambersim.ai/internal/persistence/indexdb"

	_ "modernc.org/sqlite"
)

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/runs.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	source := fs.String("source", "", "only runs from this source (animate|bench|observer)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := listRuns(ctx, path, *limit, *source, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

// listRuns prints index rows newest first, one JSON object per line.
func listRuns(ctx context.Context, path string, limit int, source string, w io.Writer) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if limit <= 0 {
		limit = 20
	}
	// Filter after the query; fetch extra rows so a source filter can still fill the page.
	fetch := limit
	if source != "" {
		fetch = limit * 10
	}
	rows, err := indexdb.QueryRecent(ctx, db, fetch)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range rows {
		if source != "" && r.Source != source {
			continue
		}
		if err := printJSON(w, r); err != nil {
			return err
		}
		n++
		if n >= limit {
			break
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
