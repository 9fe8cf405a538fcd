package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"Feedlytic/internal/stream"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// readBufferSize bounds a single read from the response body
const readBufferSize = 32 * 1024

type EventType int

const (
	EventIncrement EventType = iota
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventIncrement:
		return "increment"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one step of a chat stream: an increment, or the terminal done/error
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream is a subscription to one streamed chat response.
// Increments arrive in order, followed by exactly one terminal event, then the channel closes.
type Stream struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the channel the stream delivers on
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close cancels the request and waits for the reader to exit
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

// StreamChat posts query for sessionID and returns immediately; the response is
// read in the background and delivered through the stream's events
func (c *Client) StreamChat(ctx context.Context, sessionID, query string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.runStream(ctx, s, sessionID, query)
	return s
}

// Chat streams a reply, calling onIncrement synchronously for each increment in arrival order
func (c *Client) Chat(ctx context.Context, sessionID, query string, onIncrement func(string)) error {
	s := c.StreamChat(ctx, sessionID, query)
	defer s.Close()

	for ev := range s.Events() {
		switch ev.Type {
		case EventIncrement:
			onIncrement(ev.Text)
		case EventDone:
			return nil
		case EventError:
			return ev.Err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("chat stream closed without completion")
}

func (c *Client) runStream(ctx context.Context, s *Stream, sessionID, query string) {
	defer close(s.done)
	defer close(s.events)

	ctx, span := c.tracer.Start(ctx, "chat_stream", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	defer c.recordDuration(ctx, "chat", start)

	endpoint := c.baseURL + "/chat"
	fail := func(statusCode int, err error) {
		terr := &TransportError{Op: "chat", URL: endpoint, StatusCode: statusCode, Err: err}
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Error())
		c.logger.Error("chat stream failed", "session_id", sessionID, "error", terr)
		s.finish(ctx, Event{Type: EventError, Err: terr})
	}

	jsonData, err := json.Marshal(ChatRequest{SessionID: sessionID, Query: query})
	if err != nil {
		fail(0, fmt.Errorf("failed to marshal request: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		fail(0, fmt.Errorf("failed to create request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fail(0, fmt.Errorf("failed to send request: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fail(resp.StatusCode, statusError(resp.Status, body))
		return
	}

	// body is the response received so far; the scanner only parses what is new
	var (
		scanner stream.Scanner
		body    []byte
		count   int
		buf     = make([]byte, readBufferSize)
	)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
			if !c.deliver(ctx, s, scanner.Scan(body), &count) {
				return
			}
		}
		if errors.Is(readErr, io.EOF) {
			if !c.deliver(ctx, s, scanner.Flush(), &count) {
				return
			}
			break
		}
		if readErr != nil {
			fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", readErr))
			return
		}
	}

	span.SetAttributes(
		attribute.Int("chat.increments", count),
		attribute.Int("http.response.body.size", scanner.Cursor()),
	)
	c.logger.Info("chat stream completed", "session_id", sessionID, "increments", count, "bytes", scanner.Cursor(), "duration", time.Since(start))
	s.finish(ctx, Event{Type: EventDone})
}

// deliver decodes frames and sends their increments; false means the consumer went away
func (c *Client) deliver(ctx context.Context, s *Stream, frames []string, count *int) bool {
	for _, frame := range frames {
		text, ok, err := stream.Decode(frame)
		if err != nil {
			c.logger.Debug("skipping stream frame", "error", err)
			if c.dropped != nil {
				c.dropped.Add(ctx, 1)
			}
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.events <- Event{Type: EventIncrement, Text: text}:
			*count++
			if c.increments != nil {
				c.increments.Add(ctx, 1)
			}
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// finish sends the terminal event; after cancellation it is only sent if there is room
func (s *Stream) finish(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
		select {
		case s.events <- ev:
		default:
		}
	}
}
