package shipping_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/shipping"
)

func TestConnectionLaPosteFamily(t *testing.T) {
	for _, name := range []string{"laposte", "La Poste", "colissimo", "CHRONOPOST"} {
		lp := &fakeLaPoste{conn: laposte.ConnectionResult{OK: true}}
		tester := shipping.ConnectionTester{LaPoste: lp, MondialRelay: &fakeRelayClient{}}

		res := tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: name, APIKey: " key "})
		require.True(t, res.OK, name)
		require.Equal(t, []string{"key"}, lp.keys, name)
	}
}

func TestConnectionLaPosteFailureIsReported(t *testing.T) {
	lp := &fakeLaPoste{conn: laposte.ConnectionResult{OK: false, Error: "invalid API key"}}
	tester := shipping.ConnectionTester{LaPoste: lp}

	res := tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "laposte", APIKey: "bad"})
	require.False(t, res.OK)
	require.Equal(t, "invalid API key", res.Error)
}

func TestConnectionMondialRelay(t *testing.T) {
	client := &fakeRelayClient{points: samplePoints[:1]}
	tester := shipping.ConnectionTester{MondialRelay: client}

	res := tester.Test(context.Background(), shipping.ConnectionTestRequest{
		Carrier: "mondial-relay", Enseigne: "BDTEST13", PrivateKey: "mr-s3cr3t",
	})
	require.True(t, res.OK)
	require.Equal(t, 1, client.calls())
	require.Equal(t, 1, client.seen[0].MaxResults)
	require.Equal(t, "BDTEST13", client.seen[0].Account.Enseigne)
}

func TestConnectionMondialRelayFailures(t *testing.T) {
	tester := shipping.ConnectionTester{MondialRelay: &fakeRelayClient{}}
	res := tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "mondialrelay", Enseigne: "BDTEST13"})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "required")

	tester = shipping.ConnectionTester{MondialRelay: &fakeRelayClient{err: &mondialrelay.StatusError{Code: "8"}}}
	res = tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "mondial relay", Enseigne: "X", PrivateKey: "Y"})
	require.False(t, res.OK)
	require.Equal(t, "invalid Mondial Relay credentials", res.Error)

	tester = shipping.ConnectionTester{MondialRelay: &fakeRelayClient{err: fmt.Errorf("%w: HTTP 503", mondialrelay.ErrUnavailable)}}
	res = tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "mondial-relay", Enseigne: "X", PrivateKey: "Y"})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "HTTP 503")
}

func TestConnectionUnsupportedCarrier(t *testing.T) {
	tester := shipping.ConnectionTester{LaPoste: &fakeLaPoste{}, MondialRelay: &fakeRelayClient{}}

	res := tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "fedex", APIKey: "k"})
	require.False(t, res.OK)
	require.NotEmpty(t, res.Error)

	res = tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "ups", APIKey: "k"})
	require.False(t, res.OK)
	require.Equal(t, "unsupported carrier", res.Error)
}

func TestConnectionFollowsRegistry(t *testing.T) {
	lp := &fakeLaPoste{conn: laposte.ConnectionResult{OK: true}}
	tester := shipping.ConnectionTester{LaPoste: lp, Registry: carrier.NewRegistry()}

	res := tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "Chronopost", APIKey: "k"})
	require.True(t, res.OK)

	res = tester.Test(context.Background(), shipping.ConnectionTestRequest{Carrier: "DHL", APIKey: "k"})
	require.False(t, res.OK)
	require.Equal(t, "unsupported carrier", res.Error)
}
