package nsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/reiswijzer/reiswijzer-go/internal/models"
)

const (
	defaultTimeout = 9 * time.Second

	// Independent concurrency caps keep the via-station fan-out from
	// tripping the upstream rate limit.
	defaultTripSlots    = 6
	defaultStationSlots = 4

	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

	// upstream timestamps are sent without a colon in the offset
	queryTimeLayout = "2006-01-02T15:04:05-0700"
)

// Client is the gateway to the rail trip-search and station-search API.
// Every call is a single timed, cancellable HTTP GET gated by a weighted
// semaphore per endpoint family.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	tripSem    *semaphore.Weighted
	stationSem *semaphore.Weighted
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

// WithTripConcurrency caps concurrent trip-search calls
func WithTripConcurrency(n int64) ClientOption {
	return func(c *Client) {
		c.tripSem = semaphore.NewWeighted(n)
	}
}

// WithStationConcurrency caps concurrent station-search calls
func WithStationConcurrency(n int64) ClientOption {
	return func(c *Client) {
		c.stationSem = semaphore.NewWeighted(n)
	}
}

// NewClient creates a new API client. The subscription key is required;
// without it the upstream rejects every call.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("nsapi: subscription key required")
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    "https://gateway.apiportal.ns.nl",
		apiKey:     apiKey,
		timeout:    defaultTimeout,
		tripSem:    semaphore.NewWeighted(defaultTripSlots),
		stationSem: semaphore.NewWeighted(defaultStationSlots),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// TripRequest describes one trip-search call
type TripRequest struct {
	From             string
	To               string
	DateTime         time.Time
	SearchForArrival bool
}

// SearchTrips runs one trip search and returns normalized options.
// Malformed upstream trips are dropped, never fatal.
func (c *Client) SearchTrips(ctx context.Context, req TripRequest) ([]models.Option, error) {
	if err := c.tripSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	defer c.tripSem.Release(1)

	params := url.Values{}
	params.Set("fromStation", req.From)
	params.Set("toStation", req.To)
	params.Set("dateTime", req.DateTime.Format(queryTimeLayout))
	params.Set("searchForArrival", strconv.FormatBool(req.SearchForArrival))

	body, err := c.doGET(ctx, "/reisinformatie-api/api/v3/trips", params)
	if err != nil {
		return nil, err
	}

	var resp tripsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse trips response: %w", err)
	}

	options := make([]models.Option, 0, len(resp.Trips))
	for _, trip := range resp.Trips {
		if opt := NormalizeTrip(trip); opt != nil {
			options = append(options, *opt)
		}
	}
	return options, nil
}

// SearchStations resolves a free-text query to station records
func (c *Client) SearchStations(ctx context.Context, query string) ([]models.StationRecord, error) {
	if err := c.stationSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	defer c.stationSem.Release(1)

	params := url.Values{}
	params.Set("q", query)

	body, err := c.doGET(ctx, "/reisinformatie-api/api/v2/stations", params)
	if err != nil {
		return nil, err
	}

	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse stations response: %w", err)
	}

	records := make([]models.StationRecord, 0, len(resp.Payload))
	for _, s := range resp.Payload {
		name := s.Namen["lang"]
		if name == "" {
			for _, n := range s.Namen {
				name = n
				break
			}
		}
		if s.Code == "" || name == "" {
			continue
		}
		records = append(records, models.StationRecord{Code: s.Code, DisplayName: name})
	}
	return records, nil
}

// doGET performs one timed GET against the upstream
func (c *Client) doGET(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(subscriptionKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewAPIError(resp.StatusCode, resp.Status, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
