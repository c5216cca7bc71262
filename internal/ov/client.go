package ov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
	"github.com/reiswijzer/reiswijzer-go/internal/nsapi"
)

const (
	defaultTimeout = 8 * time.Second

	// the departure board is cheap and idempotent, so a timed-out fetch
	// gets one more attempt (unlike trip searches)
	maxAttempts = 2
)

// Client fetches per-stop departure boards from the transit API
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the upstream base URL
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a departure-board client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    "https://v0.ovapi.nl",
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// boardResponse is the raw departure-board payload
type boardResponse struct {
	Departures []rawPass `json:"departures"`
}

// rawPass is one raw board row
type rawPass struct {
	LineNumber            string `json:"lineNumber"`
	DestinationName       string `json:"destinationName"`
	PlannedDepartureTime  string `json:"plannedDepartureTime"`
	ExpectedDepartureTime string `json:"expectedDepartureTime"`
	TransportType         string `json:"transportType"`
}

// Departures fetches the departure board for one stop code. Rows that
// fail to parse are dropped; a timed-out fetch is retried once.
func (c *Client) Departures(ctx context.Context, station string) ([]models.DepartureRecord, error) {
	var (
		body []byte
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err = c.fetchBoard(ctx, station)
		if err == nil || !errors.Is(err, nsapi.ErrTimeout) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	var resp boardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse departure board: %w", err)
	}

	records := make([]models.DepartureRecord, 0, len(resp.Departures))
	for _, p := range resp.Departures {
		planned, perr := models.ParseTime(p.PlannedDepartureTime)
		if perr != nil {
			continue
		}
		expected := planned
		if p.ExpectedDepartureTime != "" {
			if t, eerr := models.ParseTime(p.ExpectedDepartureTime); eerr == nil {
				expected = t
			}
		}
		records = append(records, models.DepartureRecord{
			Line:          p.LineNumber,
			Destination:   p.DestinationName,
			PlannedTime:   planned,
			ExpectedTime:  expected,
			TransportType: p.TransportType,
			DelayMinutes:  models.MinutesBetween(planned, expected),
		})
	}
	return records, nil
}

func (c *Client) fetchBoard(ctx context.Context, station string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + "/stop/" + url.PathEscape(station) + "/departures"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", nsapi.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nsapi.NewAPIError(resp.StatusCode, resp.Status, "/stop/departures")
	}

	return io.ReadAll(resp.Body)
}
