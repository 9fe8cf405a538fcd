// Package stream turns a chunked chat response body into text increments.
//
// The body is a sequence of frames separated by a blank line. A frame of the form
// "data: <json>" carries an object whose "text" field is one increment.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	Delimiter  = "\n\n"
	DataPrefix = "data: "
)

// Payload is the JSON object carried by a data frame
type Payload struct {
	Text string `json:"text,omitempty"`
}

// ParseError reports a data frame whose payload is not valid JSON
type ParseError struct {
	Frame string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Frame, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser splits a byte stream into frames.
// Bytes after the last delimiter are kept until a later chunk completes them.
type Parser struct {
	pending []byte
}

// Feed appends chunk and returns the frames it completes, in arrival order
func (p *Parser) Feed(chunk []byte) []string {
	p.pending = append(p.pending, chunk...)

	var frames []string
	for {
		idx := bytes.Index(p.pending, []byte(Delimiter))
		if idx < 0 {
			break
		}
		frames = append(frames, string(p.pending[:idx]))
		p.pending = p.pending[idx+len(Delimiter):]
	}

	if len(p.pending) == 0 {
		p.pending = nil
	}
	return frames
}

// Flush returns the undelimited tail, if any, and empties the buffer
func (p *Parser) Flush() []string {
	if len(p.pending) == 0 {
		return nil
	}
	tail := string(p.pending)
	p.pending = nil
	return []string{tail}
}

// Scanner consumes a cumulative buffer: every call receives the whole body seen so far.
// Only the suffix past the cursor is parsed, so rescanning never yields a frame twice.
type Scanner struct {
	cursor int
	parser Parser
}

// Scan parses buffer[cursor:] and advances the cursor to len(buffer).
// A buffer shorter than the cursor is treated as no progress.
func (s *Scanner) Scan(buffer []byte) []string {
	if len(buffer) <= s.cursor {
		return nil
	}
	delta := buffer[s.cursor:]
	s.cursor = len(buffer)
	return s.parser.Feed(delta)
}

// Cursor is the buffer length observed at the previous scan
func (s *Scanner) Cursor() int {
	return s.cursor
}

// Flush returns the undelimited tail once the body is complete
func (s *Scanner) Flush() []string {
	return s.parser.Flush()
}

// Decode extracts the increment carried by frame.
// ok is false for frames without the data prefix and for payloads without text.
func Decode(frame string) (text string, ok bool, err error) {
	if !strings.HasPrefix(frame, DataPrefix) {
		return "", false, nil
	}

	raw := frame[len(DataPrefix):]
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", false, &ParseError{Frame: frame, Err: err}
	}
	if payload.Text == "" {
		return "", false, nil
	}
	return payload.Text, true, nil
}
