package sse

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestEventFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	if err := s.Event("snapshot", []byte("line one\nline two")); err != nil {
		t.Fatal(err)
	}
	want := "event: snapshot\ndata: line one\ndata: line two\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("unexpected framing:\n%q\nwant\n%q", got, want)
	}
}

func TestPump(t *testing.T) {
	rec := httptest.NewRecorder()
	s, _ := NewWriter(rec)

	ch := make(chan int, 2)
	ch <- 1
	ch <- 2
	close(ch)

	err := Pump(context.Background(), s, "n", ch, func(v int) ([]byte, error) {
		return []byte(strconv.Itoa(v)), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "event: n\ndata: 1\n\nevent: n\ndata: 2\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPumpEncodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	s, _ := NewWriter(rec)

	ch := make(chan int, 1)
	ch <- 1
	boom := errors.New("boom")
	err := Pump(context.Background(), s, "n", ch, func(int) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected encode error, got %v", err)
	}
}

func TestPumpStopsOnCancel(t *testing.T) {
	rec := httptest.NewRecorder()
	s, _ := NewWriter(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Pump(ctx, s, "n", make(chan int), func(int) ([]byte, error) { return nil, nil }); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
}
