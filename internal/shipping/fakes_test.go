package shipping_test

import (
	"context"
	"sync"

	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
)

type fakeCredentials struct {
	relay   credentials.MondialRelay
	laposte credentials.LaPoste
	err     error
}

func (f fakeCredentials) MondialRelay(context.Context) (credentials.MondialRelay, bool, error) {
	if f.err != nil {
		return credentials.MondialRelay{}, false, f.err
	}
	return f.relay, f.relay.Enseigne != "" && f.relay.PrivateKey != "", nil
}

func (f fakeCredentials) LaPoste(context.Context) (credentials.LaPoste, bool, error) {
	if f.err != nil {
		return credentials.LaPoste{}, false, f.err
	}
	return f.laposte, f.laposte.APIKey != "", nil
}

type fakeRelayClient struct {
	mu     sync.Mutex
	points []mondialrelay.RelayPoint
	err    error
	seen   []mondialrelay.SearchParams
}

func (f *fakeRelayClient) SearchRelayPoints(_ context.Context, p mondialrelay.SearchParams) ([]mondialrelay.RelayPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, p)
	return f.points, f.err
}

func (f *fakeRelayClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type fakeLaPoste struct {
	result  laposte.TrackingResult
	err     error
	keys    []string
	numbers []string
	conn    laposte.ConnectionResult
}

func (f *fakeLaPoste) Track(_ context.Context, apiKey, number string) (laposte.TrackingResult, error) {
	f.keys = append(f.keys, apiKey)
	f.numbers = append(f.numbers, number)
	return f.result, f.err
}

func (f *fakeLaPoste) TestConnection(_ context.Context, apiKey string) laposte.ConnectionResult {
	f.keys = append(f.keys, apiKey)
	return f.conn
}

var samplePoints = []mondialrelay.RelayPoint{
	{ID: "012345", Name: "TABAC DU CENTRE", Address: "1 RUE DE RIVOLI", City: "PARIS", ZipCode: "75001", Country: "FR"},
	{ID: "067890", Name: "LAVERIE DU MARCHE", Address: "12 RUE SAINT-HONORE", City: "PARIS", ZipCode: "75001", Country: "FR"},
}

var validRelayAccount = credentials.MondialRelay{Enseigne: "BDTEST13", PrivateKey: "mr-s3cr3t"}
