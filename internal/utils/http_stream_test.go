package utils

import (
	"io"
	"strings"
	"testing"
)

func TestSSEScanner_BasicEvents(t *testing.T) {
	input := "data: first\n\ndata: second\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	first, err := scanner.Next()
	if err != nil || first != "first" {
		t.Fatalf("expected 'first', got %q (err %v)", first, err)
	}

	second, err := scanner.Next()
	if err != nil || second != "second" {
		t.Fatalf("expected 'second', got %q (err %v)", second, err)
	}

	if _, err := scanner.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestSSEScanner_DoneSentinel(t *testing.T) {
	input := "data: payload\n\ndata: [DONE]\n\ndata: after\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	if payload, err := scanner.Next(); err != nil || payload != "payload" {
		t.Fatalf("expected 'payload', got %q (err %v)", payload, err)
	}

	// [DONE] terminates the stream even when more data follows.
	if _, err := scanner.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF on [DONE], got %v", err)
	}
}

func TestSSEScanner_SkipsCommentsAndOtherFields(t *testing.T) {
	input := ": keep-alive comment\nevent: message\nid: 42\ndata: real\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil || payload != "real" {
		t.Fatalf("expected 'real', got %q (err %v)", payload, err)
	}
}

func TestSSEScanner_MultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "line one\nline two" {
		t.Fatalf("expected joined multi-line payload, got %q", payload)
	}
}

func TestSSEScanner_TrailingDataWithoutBlankLine(t *testing.T) {
	input := "data: dangling"
	scanner := NewSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil || payload != "dangling" {
		t.Fatalf("expected trailing payload flush, got %q (err %v)", payload, err)
	}
}
