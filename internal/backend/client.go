package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Feedlytic/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "feedlytic"

// Client talks to the remote chat service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	duration   metric.Float64Histogram
	increments metric.Int64Counter
	dropped    metric.Int64Counter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

// NewClient creates a client for the service rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for streamed responses
		},
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.duration, err = c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	c.increments, err = c.meter.Int64Counter(
		"chat.stream.increments",
		metric.WithDescription("Text increments delivered from chat streams"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}
	c.dropped, err = c.meter.Int64Counter(
		"chat.stream.frames.dropped",
		metric.WithDescription("Malformed chat stream frames that were skipped"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}

	return c
}

// BaseURL returns the service root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) sessionURL(sessionID string) string {
	return c.baseURL + "/session/" + url.PathEscape(sessionID)
}

// FetchHistory retrieves the prior exchanges of a session as alternating user/assistant messages
func (c *Client) FetchHistory(ctx context.Context, sessionID string) ([]session.Message, error) {
	ctx, span := c.tracer.Start(ctx, "history", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	endpoint := c.sessionURL(sessionID) + "/history"
	body, err := c.do(ctx, "history", http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var apiResp HistoryResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		err = &TransportError{Op: "history", URL: endpoint, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	messages := make([]session.Message, 0, 2*len(apiResp.History))
	for _, entry := range apiResp.History {
		messages = append(messages,
			session.Message{Role: session.RoleUser, Text: entry.Query},
			session.Message{Role: session.RoleAssistant, Text: entry.Answer},
		)
	}

	span.SetAttributes(attribute.Int("history.entries", len(apiResp.History)))
	c.logger.Info("loaded session history", "session_id", sessionID, "entries", len(apiResp.History))
	return messages, nil
}

// ResetSession asks the server to drop all state kept for sessionID
func (c *Client) ResetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "reset_session", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	body, err := c.do(ctx, "reset_session", http.MethodDelete, c.sessionURL(sessionID), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("reset remote session", "session_id", sessionID)
	return json.RawMessage(body), nil
}

// do sends a request and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	start := time.Now()
	defer c.recordDuration(ctx, op, start)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: statusError(resp.Status, body)}
	}

	return body, nil
}

func (c *Client) recordDuration(ctx context.Context, op string, start time.Time) {
	if c.duration == nil {
		return
	}
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("op", op)))
}

func statusError(status string, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512]
	}
	if text == "" {
		return fmt.Errorf("API error: %s", status)
	}
	return fmt.Errorf("API error: %s - %s", status, text)
}
