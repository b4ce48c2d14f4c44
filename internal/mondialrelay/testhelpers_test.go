package mondialrelay_test

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/resilience"
)

var testAccount = credentials.MondialRelay{Enseigne: "BDTEST", PrivateKey: "TestKey"}

type capturedRequest struct {
	soapAction string
	params     []mondialrelay.Param
}

type fakeService struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	body     string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{soapAction: r.Header.Get("SOAPAction"), params: decodeParams(string(raw))})
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeService) last(t *testing.T) capturedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newFake(t *testing.T, status int, body string) (*fakeService, *mondialrelay.Client) {
	t.Helper()
	fake := &fakeService{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	doer := resilience.HTTPClient{
		Client:      srv.Client(),
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		Timeout:     2 * time.Second,
	}
	return fake, mondialrelay.NewClient(doer, srv.URL)
}

// decodeParams returns the children of the SOAP action element in document order.
func decodeParams(body string) []mondialrelay.Param {
	dec := xml.NewDecoder(strings.NewReader(body))
	var params []mondialrelay.Param
	depth := 0
	var current *mondialrelay.Param
	for {
		tok, err := dec.Token()
		if err != nil {
			return params
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			// Envelope(1) > Body(2) > action(3) > param(4)
			if depth == 4 {
				current = &mondialrelay.Param{Name: el.Name.Local}
			}
		case xml.CharData:
			if current != nil {
				current.Value += string(el)
			}
		case xml.EndElement:
			if depth == 4 && current != nil {
				params = append(params, *current)
				current = nil
			}
			depth--
		}
	}
}

func paramNames(params []mondialrelay.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

func paramValue(params []mondialrelay.Param, name string) string {
	for _, p := range params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

func searchResponse(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <WSI4_PointRelais_RechercheResponse xmlns="http://www.mondialrelay.fr/webservice/">
      <WSI4_PointRelais_RechercheResult>` + inner + `</WSI4_PointRelais_RechercheResult>
    </WSI4_PointRelais_RechercheResponse>
  </soap:Body>
</soap:Envelope>`
}

func labelResponse(inner string) string {
	return `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <WSI2_CreationEtiquetteResponse xmlns="http://www.mondialrelay.fr/webservice/">
      <WSI2_CreationEtiquetteResult>` + inner + `</WSI2_CreationEtiquetteResult>
    </WSI2_CreationEtiquetteResponse>
  </soap:Body>
</soap:Envelope>`
}
