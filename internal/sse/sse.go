// Package sse writes Server-Sent Event streams.
package sse

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// Heartbeat is how often an idle stream sends a comment line to keep proxies
// from closing it.
const Heartbeat = 25 * time.Second

// Writer writes events to one client.
type Writer struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewWriter sends the event-stream headers. Streams are long-lived, so the
// server's write deadline is lifted for this response where supported.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &Writer{w: w, rc: rc}
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing stream headers: %w", err)
	}
	return s, nil
}

// Event writes one named event. Multi-line data is split over several data
// fields.
func (s *Writer) Event(name string, data []byte) error {
	var buf bytes.Buffer
	if name != "" {
		fmt.Fprintf(&buf, "event: %s\n", name)
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes a comment line, which clients ignore.
func (s *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Pump writes one event per value received from ch until ch closes, ctx is
// done or a write fails. Idle periods are filled with heartbeats.
func Pump[T any](ctx context.Context, s *Writer, event string, ch <-chan T, encode func(T) ([]byte, error)) error {
	ticker := time.NewTicker(Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := encode(v)
			if err != nil {
				return fmt.Errorf("encoding %s event: %w", event, err)
			}
			if err := s.Event(event, data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.Comment("ping"); err != nil {
				return err
			}
		}
	}
}
