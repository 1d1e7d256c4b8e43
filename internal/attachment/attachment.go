// Package attachment turns uploaded files into text suitable for a
// conversation turn. Plain text passes through, HTML is converted to
// Markdown, and everything else is described inline so the model knows a
// file was provided even when its content cannot be read.
package attachment

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MaxSize caps the bytes read from an uploaded attachment (10MB).
const MaxSize = 10 * 1024 * 1024

// Extract reads the attachment and returns its textual representation.
// contentType may be empty, in which case it is guessed from the filename
// extension.
func Extract(reader io.Reader, filename, contentType string) (string, error) {
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch {
	case isHTML(mediaType, filename):
		data, err := readCapped(reader)
		if err != nil {
			return "", err
		}
		markdown, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			return "", fmt.Errorf("converting HTML attachment %q: %w", filename, err)
		}
		return markdown, nil

	case isText(mediaType, filename):
		data, err := readCapped(reader)
		if err != nil {
			return "", err
		}
		return string(data), nil

	default:
		return Describe(filename, mediaType), nil
	}
}

// Describe returns the inline placeholder used for attachments whose content
// cannot be extracted.
func Describe(filename, mediaType string) string {
	if mediaType == "" {
		mediaType = "unknown type"
	}
	return fmt.Sprintf("[Attached file: %s (%s) - content not extracted]", filename, mediaType)
}

// Annotate combines a user message with an extracted attachment into a single
// conversation turn.
func Annotate(message, filename, extracted string) string {
	if extracted == "" {
		return message
	}
	block := fmt.Sprintf("--- Attached file: %s ---\n%s\n--- End of file ---", filename, extracted)
	if message == "" {
		return block
	}
	return message + "\n\n" + block
}

func isHTML(mediaType, filename string) bool {
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

func isText(mediaType, filename string) bool {
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/yaml", "application/x-yaml", "application/javascript":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".csv", ".json", ".yaml", ".yml", ".xml", ".log", ".go", ".py", ".js", ".ts":
		return true
	}
	return false
}

func readCapped(reader io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("attachment exceeds maximum size of %d bytes", MaxSize)
	}
	return data, nil
}
