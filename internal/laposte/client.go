// Package laposte is a client for the La Poste Suivi v2 tracking API, which covers
// Colissimo and Chronopost parcels.
package laposte

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/obs"
	"github.com/noah-isme/toko-carriers/internal/resilience"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.laposte.fr"

// probeID is a syntactically valid number that never exists; it lets a key be
// checked without touching a real parcel.
const probeID = "0000000000"

const (
	metricsCarrier = "laposte"
	maxBodySize    = 1 << 20
	dedupWindow    = time.Minute
)

var (
	// ErrInvalidKey is returned for 401 and 403 responses.
	ErrInvalidKey = errors.New("laposte: invalid API key")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("laposte: shipment not found")
	// ErrUnavailable covers transport failures, timeouts and an open breaker.
	ErrUnavailable = errors.New("laposte: service unavailable")
	// ErrMalformedResponse means the body could not be decoded.
	ErrMalformedResponse = errors.New("laposte: malformed response")
)

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("laposte: API error %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidKey
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// ReturnCodeError is a 2xx answer whose returnCode reports a failure.
type ReturnCodeError struct {
	Code    int
	Message string
}

func (e *ReturnCodeError) Error() string {
	return fmt.Sprintf("laposte: %s (code %d)", e.Message, e.Code)
}

// Event is one step of the parcel history.
type Event struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Code        string    `json:"code,omitempty"`
}

// TrackingResult is the normalised view of a shipment.
type TrackingResult struct {
	TrackingNumber string         `json:"trackingNumber"`
	Carrier        string         `json:"carrier"`
	Status         carrier.Status `json:"status"`
	IsFinal        bool           `json:"isFinal"`
	Events         []Event        `json:"events"`
}

// ConnectionResult is the outcome of a key check.
type ConnectionResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Client calls the Suivi API.
type Client struct {
	HTTP    resilience.Doer
	BaseURL string
}

// NewClient returns a client for baseURL, or DefaultBaseURL when blank.
func NewClient(doer resilience.Doer, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{HTTP: doer, BaseURL: baseURL}
}

// Track fetches the history of a parcel.
func (c *Client) Track(ctx context.Context, apiKey, trackingNumber string) (TrackingResult, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return TrackingResult{}, errors.New("laposte: tracking number is required")
	}

	var payload response
	if err := c.get(ctx, "track", apiKey, trackingNumber, &payload); err != nil {
		return TrackingResult{}, err
	}
	if payload.ReturnCode != http.StatusOK && payload.ReturnCode != http.StatusMultiStatus {
		return TrackingResult{}, &ReturnCodeError{Code: payload.ReturnCode, Message: payload.ReturnMessage}
	}
	if payload.Shipment == nil {
		return TrackingResult{}, fmt.Errorf("%w: missing shipment", ErrMalformedResponse)
	}
	return payload.Shipment.result(), nil
}

// TestConnection checks that apiKey authenticates. It never returns an error: every
// failure is reported in the result.
func (c *Client) TestConnection(ctx context.Context, apiKey string) ConnectionResult {
	if strings.TrimSpace(apiKey) == "" {
		return ConnectionResult{OK: false, Error: "API key is required"}
	}
	err := c.get(ctx, "test_connection", apiKey, probeID, nil)
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ConnectionResult{OK: true}
	case errors.Is(err, ErrInvalidKey):
		return ConnectionResult{OK: false, Error: "invalid API key"}
	case errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusBadRequest):
		// the probe number is unknown, but the key was accepted
		return ConnectionResult{OK: true}
	default:
		return ConnectionResult{OK: false, Error: err.Error()}
	}
}

func (c *Client) get(ctx context.Context, operation, apiKey, id string, out any) (err error) {
	ctx, span := otel.Tracer("laposte.Client").Start(ctx, "LaPoste."+operation)
	started := time.Now()
	defer func() {
		obs.ObserveCarrierCall(metricsCarrier, operation, resultLabel(err), started)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.HTTP == nil {
		return fmt.Errorf("%w: http client not configured", ErrUnavailable)
	}
	endpoint := c.BaseURL + "/suivi/v2/idships/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("laposte: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Okapi-Key", apiKey)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func resultLabel(err error) string {
	var httpErr *HTTPError
	var rcErr *ReturnCodeError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidKey):
		return "auth_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &rcErr):
		return "provider_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &httpErr):
		return "http_error"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

type response struct {
	ReturnCode    int       `json:"returnCode"`
	ReturnMessage string    `json:"returnMessage"`
	Shipment      *shipment `json:"shipment"`
}

type shipment struct {
	IDShip   string          `json:"idShip"`
	Product  string          `json:"product"`
	IsFinal  bool            `json:"isFinal"`
	Timeline []timelineEntry `json:"timeline"`
	Event    []detailEvent   `json:"event"`
}

type timelineEntry struct {
	ShortLabel string `json:"shortLabel"`
	LongLabel  string `json:"longLabel"`
	Date       string `json:"date"`
	Country    string `json:"country"`
	Status     bool   `json:"status"`
	Type       int    `json:"type"`
}

type detailEvent struct {
	Date  string `json:"date"`
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (s *shipment) result() TrackingResult {
	events := make([]Event, 0, len(s.Timeline)+len(s.Event))
	for _, entry := range s.Timeline {
		if !entry.Status {
			continue
		}
		desc := entry.LongLabel
		if desc == "" {
			desc = entry.ShortLabel
		}
		events = append(events, Event{Date: parseDate(entry.Date), Description: desc, Location: entry.Country})
	}
	for _, evt := range s.Event {
		candidate := Event{Date: parseDate(evt.Date), Description: evt.Label, Code: evt.Code}
		if !isDuplicate(events, candidate) {
			events = append(events, candidate)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })

	product := s.Product
	if product == "" {
		product = carrier.Colissimo.DisplayName()
	}
	return TrackingResult{
		TrackingNumber: s.IDShip,
		Carrier:        product,
		Status:         s.status(),
		IsFinal:        s.IsFinal,
		Events:         events,
	}
}

func isDuplicate(events []Event, candidate Event) bool {
	for _, e := range events {
		if e.Description != candidate.Description {
			continue
		}
		delta := e.Date.Sub(candidate.Date)
		if delta < 0 {
			delta = -delta
		}
		if delta < dedupWindow {
			return true
		}
	}
	return false
}

// status prefers the timeline; parcels without a reached step fall back to the
// code of their latest detailed event.
func (s *shipment) status() carrier.Status {
	if st := currentStatus(s.Timeline); st != carrier.StatusPending {
		return st
	}
	var latest *detailEvent
	var latestAt time.Time
	for i := range s.Event {
		evt := &s.Event[i]
		if strings.TrimSpace(evt.Code) == "" {
			continue
		}
		if at := parseDate(evt.Date); latest == nil || at.After(latestAt) {
			latest, latestAt = evt, at
		}
	}
	if latest == nil {
		return carrier.StatusPending
	}
	return carrier.MapExternalStatus(latest.Code)
}

// currentStatus derives the status from the highest reached timeline step.
func currentStatus(timeline []timelineEntry) carrier.Status {
	reached := false
	highest := 0
	for _, entry := range timeline {
		if !entry.Status {
			continue
		}
		if !reached || entry.Type > highest {
			highest = entry.Type
		}
		reached = true
	}
	if !reached {
		return carrier.StatusPending
	}
	return TimelineStatus(highest)
}

// TimelineStatus maps a La Poste timeline step type to a Status.
func TimelineStatus(step int) carrier.Status {
	switch step {
	case 1:
		return carrier.StatusPickedUp
	case 2:
		return carrier.StatusInTransit
	case 3:
		return carrier.StatusOutForDelivery
	case 4:
		return carrier.StatusDelivered
	case 5:
		return carrier.StatusReturned
	default:
		return carrier.StatusInTransit
	}
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t
	}
	return time.Time{}
}
