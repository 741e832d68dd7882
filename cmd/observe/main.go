package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"chambersim.ai/internal/observerproto"
	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/encoding"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/observe", "observer ws url")
		speed      = flag.Int("speed", 1, "particle speed")
		desc       = flag.String("chamber", "", "chamber description")
		intervalMs = flag.Int("interval_ms", 0, "delay between frames requested from the server")
		enc        = flag.String("encoding", observerproto.EncodingText, "frame encoding: TEXT|RLE")
		verify     = flag.Bool("verify", true, "recompute the run digest locally and compare")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[observe] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done, err := observe(ctx, *url, observerproto.SubscribeMsg{
		Speed:      *speed,
		Chamber:    *desc,
		IntervalMs: *intervalMs,
		Encoding:   *enc,
	}, os.Stdout, *verify)
	if err != nil {
		var perr *protocolError
		if errors.As(err, &perr) {
			logger.Printf("server rejected run: %s: %s", perr.Code, perr.Message)
		} else {
			logger.Printf("%v", err)
		}
		os.Exit(1)
	}
	logger.Printf("DONE run=%s ticks=%d digest=%s", done.RunID, done.Ticks, done.Digest)
}

// protocolError is an ERROR message received from the server.
type protocolError struct {
	Code    string
	Message string
}

func (e *protocolError) Error() string { return e.Code + ": " + e.Message }

// observe subscribes to one run and prints every frame to out.
func observe(ctx context.Context, url string, sub observerproto.SubscribeMsg, out io.Writer, verify bool) (observerproto.DoneMsg, error) {
	var done observerproto.DoneMsg
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return done, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sub.Type = observerproto.TypeSubscribe
	sub.ProtocolVersion = observerproto.Version
	if err := conn.WriteJSON(sub); err != nil {
		return done, fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	digest := chamber.NewRunDigest()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			return done, fmt.Errorf("read: %w", err)
		}
		base, err := observerproto.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case observerproto.TypeFrame:
			var f observerproto.FrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				return done, fmt.Errorf("frame: %w", err)
			}
			frame := []byte(f.Frame)
			if f.Encoding == observerproto.EncodingRLE {
				frame, err = encoding.DecodeFrame(f.Data)
				if err != nil {
					return done, fmt.Errorf("frame %d: %w", f.Tick, err)
				}
			}
			digest.Add(frame)
			if _, err := fmt.Fprintf(out, "%s\n", frame); err != nil {
				return done, err
			}

		case observerproto.TypeDone:
			if err := json.Unmarshal(msg, &done); err != nil {
				return done, fmt.Errorf("done: %w", err)
			}
			if verify && done.Digest != digest.Sum() {
				return done, fmt.Errorf("digest mismatch: server=%s local=%s", done.Digest, digest.Sum())
			}
			return done, nil

		case observerproto.TypeError:
			var e observerproto.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				return done, fmt.Errorf("error message: %w", err)
			}
			return done, &protocolError{Code: e.Code, Message: e.Message}
		}
	}
}
