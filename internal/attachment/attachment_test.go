package attachment

import (
	"strings"
	"testing"
)

func TestExtract_PlainTextPassesThrough(t *testing.T) {
	out, err := Extract(strings.NewReader("hello world"), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if out != "hello world" {
		t.Errorf("expected passthrough, got %q", out)
	}
}

func TestExtract_HTMLConvertedToMarkdown(t *testing.T) {
	html := `<html><body><h1>Title</h1><p>Some <strong>bold</strong> text.</p></body></html>`
	out, err := Extract(strings.NewReader(html), "page.html", "text/html")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !strings.Contains(out, "# Title") {
		t.Errorf("expected markdown heading, got %q", out)
	}
	if !strings.Contains(out, "**bold**") {
		t.Errorf("expected markdown emphasis, got %q", out)
	}
}

func TestExtract_ContentTypeGuessedFromExtension(t *testing.T) {
	out, err := Extract(strings.NewReader("a,b,c"), "data.csv", "")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if out != "a,b,c" {
		t.Errorf("expected csv passthrough, got %q", out)
	}
}

func TestExtract_BinaryDescribedInline(t *testing.T) {
	out, err := Extract(strings.NewReader("\x00\x01\x02"), "photo.png", "image/png")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := "[Attached file: photo.png (image/png) - content not extracted]"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestExtract_OversizedAttachmentRejected(t *testing.T) {
	_, err := Extract(strings.NewReader(strings.Repeat("x", MaxSize+1)), "big.txt", "text/plain")
	if err == nil {
		t.Fatal("expected error for oversized attachment")
	}
}

func TestAnnotate(t *testing.T) {
	combined := Annotate("look at this", "notes.txt", "file body")
	if !strings.Contains(combined, "look at this") || !strings.Contains(combined, "file body") {
		t.Errorf("expected message and extract combined, got %q", combined)
	}

	if got := Annotate("just a message", "notes.txt", ""); got != "just a message" {
		t.Errorf("expected message unchanged without extract, got %q", got)
	}
}
