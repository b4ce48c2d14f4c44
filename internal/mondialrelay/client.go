// Package mondialrelay talks to the Mondial Relay SOAP web service: relay-point
// search and shipping label creation.
package mondialrelay

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/obs"
	"github.com/noah-isme/toko-carriers/internal/resilience"
)

const (
	// DefaultEndpoint is the production web service.
	DefaultEndpoint = "https://api.mondialrelay.com/Web_Services.asmx"
	// Namespace qualifies every action and forms the SOAPAction header.
	Namespace = "http://www.mondialrelay.fr/webservice/"

	soapEnvelopeNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	maxResponseSize = 2 << 20
)

// Client calls the web service through a resilient HTTP doer.
type Client struct {
	HTTP     resilience.Doer
	Endpoint string
}

// NewClient returns a client for endpoint, or DefaultEndpoint when blank.
func NewClient(doer resilience.Doer, endpoint string) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{HTTP: doer, Endpoint: endpoint}
}

func (c *Client) call(ctx context.Context, action string, params []Param, out any) (err error) {
	ctx, span := otel.Tracer("mondialrelay.Client").Start(ctx, "MondialRelay."+action)
	started := time.Now()
	defer func() {
		obs.ObserveCarrierCall(carrier.MondialRelay.String(), action, resultLabel(err), started)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("carrier.action", action))

	if c.HTTP == nil {
		return fmt.Errorf("%w: http client not configured", ErrUnavailable)
	}
	payload, err := encodeEnvelope(action, params)
	if err != nil {
		return fmt.Errorf("mondialrelay: encode %s: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", Namespace+action)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// encodeEnvelope renders a SOAP 1.1 request whose body element is the action in the
// Mondial Relay namespace, with one child per parameter in order.
func encodeEnvelope(action string, params []Param) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soap:Envelope xmlns:soap="` + soapEnvelopeNS + `"><soap:Body>`)

	enc := xml.NewEncoder(&buf)
	start := xml.StartElement{Name: xml.Name{Space: Namespace, Local: action}}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	for _, p := range params {
		if err := enc.EncodeElement(p.Value, xml.StartElement{Name: xml.Name{Local: p.Name}}); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteString(`</soap:Body></soap:Envelope>`)
	return buf.Bytes(), nil
}

func checkStatus(action, stat string) error {
	stat = strings.TrimSpace(stat)
	switch stat {
	case "0":
		return nil
	case "":
		return fmt.Errorf("%w: %s result without STAT", ErrMalformedResponse, action)
	default:
		return &StatusError{Action: action, Code: stat}
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthentication):
		return "auth_failed"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
