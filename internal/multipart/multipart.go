// Package multipart extracts the single uploaded file from a
// multipart/form-data request body. The body is treated as raw bytes
// throughout: image payloads contain NUL and CR/LF bytes, so boundary
// detection must be a true substring search, never a string routine.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotMultipart    = errors.New("multipart: content type is not multipart/form-data")
	ErrMissingBoundary = errors.New("multipart: boundary parameter not found")
	ErrMissingFile     = errors.New("multipart: file part not found")
	ErrTruncated       = errors.New("multipart: terminating boundary not found")
	ErrEmptyPayload    = errors.New("multipart: file payload is empty")
)

var (
	crlf          = []byte("\r\n")
	headerEndMark = []byte("\r\n\r\n")
	filenameMark  = []byte("filename=")
)

// Part is the uploaded file extracted from the request body.
type Part struct {
	Filename string
	Payload  []byte
}

// Boundary extracts the boundary parameter from a Content-Type header value.
func Boundary(contentType string) (string, error) {
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return "", ErrNotMultipart
	}
	_, rest, ok := strings.Cut(contentType, "boundary=")
	if !ok {
		return "", ErrMissingBoundary
	}
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.Trim(strings.TrimSpace(rest), `"`)
	if rest == "" {
		return "", ErrMissingBoundary
	}
	return rest, nil
}

// Parse locates the first file part in body and returns its filename and raw
// payload. The payload spans from the end of the part headers to the CRLF
// preceding the next boundary delimiter.
func Parse(contentType string, body []byte) (*Part, error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return nil, err
	}
	delimiter := append([]byte("--"), boundary...)

	disp := bytes.Index(body, filenameMark)
	if disp < 0 {
		return nil, ErrMissingFile
	}
	head := body[:disp]
	if !bytes.Contains(head, []byte("Content-Disposition")) || !bytes.Contains(head, []byte("form-data")) {
		return nil, ErrMissingFile
	}

	filename, err := parseFilename(body[disp+len(filenameMark):], delimiter)
	if err != nil {
		return nil, err
	}

	headerEnd := bytes.Index(body[disp:], headerEndMark)
	if headerEnd < 0 {
		return nil, fmt.Errorf("multipart: part headers not terminated")
	}
	start := disp + headerEnd + len(headerEndMark)

	end := bytes.Index(body[start:], delimiter)
	if end < 0 {
		return nil, ErrTruncated
	}
	// Strip the CRLF that separates the payload from the boundary line.
	end -= len(crlf)
	if end <= 0 {
		return nil, ErrEmptyPayload
	}
	return &Part{Filename: filename, Payload: body[start : start+end]}, nil
}

// parseFilename reads the filename value starting right after "filename=".
// Quoted values end at the closing quote; bare values end at CRLF or at the
// boundary delimiter.
func parseFilename(rest []byte, delimiter []byte) (string, error) {
	if len(rest) == 0 {
		return "", ErrMissingFile
	}
	if rest[0] == '"' {
		rest = rest[1:]
		end := bytes.IndexByte(rest, '"')
		if end < 0 {
			return "", fmt.Errorf("multipart: unterminated filename quote")
		}
		return string(rest[:end]), nil
	}
	end := bytes.Index(rest, crlf)
	if b := bytes.Index(rest, delimiter); b >= 0 && (end < 0 || b < end) {
		end = b
	}
	if end < 0 {
		return "", fmt.Errorf("multipart: filename not terminated")
	}
	return string(rest[:end]), nil
}
