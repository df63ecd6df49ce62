package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Calculator input fields, in the order they are filled.
const (
	fieldElevation = "elevation"
	fieldDistance  = "distance"
	fieldTime      = "time"
)

// Client implements domain.Oracle against the altitude conversion calculator service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	settleDelay time.Duration
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a calculator client. timeout bounds every HTTP call;
// settleDelay is how long the calculator needs to recompute after its inputs change.
func NewClient(baseURL string, timeout, settleDelay time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     baseURL,
		settleDelay: settleDelay,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
}

// Open establishes a new calculator session.
func (c *Client) Open(ctx context.Context) (domain.OracleSession, error) {
	start := c.clock.Now()
	defer c.observe("open", start)

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/sessions", nil, &resp); err != nil {
		return nil, fmt.Errorf("open oracle session: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("open oracle session: empty session id")
	}
	c.logger.Debug("oracle session opened", "session", resp.ID)
	return &Session{client: c, id: resp.ID}, nil
}

// Session is one calculator session. It is not safe for concurrent use.
type Session struct {
	client *Client
	id     string
}

// Convert clears and fills the three inputs, waits for the calculator to
// settle, and reads the converted time.
func (s *Session) Convert(ctx context.Context, req domain.ConversionRequest) (string, error) {
	c := s.client
	start := c.clock.Now()
	defer c.observe("convert", start)

	inputs := []struct{ name, value string }{
		{fieldElevation, strconv.Itoa(req.Elevation)},
		{fieldDistance, req.DistanceFactor},
		{fieldTime, req.InputTime},
	}
	for _, in := range inputs {
		u := s.url("/fields/" + url.PathEscape(in.name))
		if err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
			return "", fmt.Errorf("clear %s: %w", in.name, err)
		}
		if err := c.do(ctx, http.MethodPut, u, fieldValue{Value: in.value}, nil); err != nil {
			return "", fmt.Errorf("write %s: %w", in.name, err)
		}
	}

	if err := c.settle(ctx); err != nil {
		return "", err
	}

	var out resultResponse
	if err := c.do(ctx, http.MethodGet, s.url("/result"), nil, &out); err != nil {
		return "", fmt.Errorf("read result: %w", err)
	}
	converted := domain.NormalizeOracleOutput(out.Text)
	if converted == "" {
		return "", fmt.Errorf("read result: unusable output %q", out.Text)
	}
	return converted, nil
}

// Close tears the session down on the calculator side.
func (s *Session) Close(ctx context.Context) error {
	start := s.client.clock.Now()
	defer s.client.observe("close", start)

	if err := s.client.do(ctx, http.MethodDelete, s.url(""), nil, nil); err != nil {
		return fmt.Errorf("close oracle session %s: %w", s.id, err)
	}
	return nil
}

func (s *Session) url(suffix string) string {
	return s.client.baseURL + "/sessions/" + url.PathEscape(s.id) + suffix
}

func (c *Client) settle(ctx context.Context) error {
	if c.settleDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.settleDelay):
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, fullURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("oracle API error: status %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.OracleDuration.WithLabelValues(op).Observe(c.clock.Since(start).Seconds())
}

// Calculator API payloads.

type sessionResponse struct {
	ID string `json:"id"`
}

type fieldValue struct {
	Value string `json:"value"`
}

type resultResponse struct {
	Text string `json:"text"`
}
