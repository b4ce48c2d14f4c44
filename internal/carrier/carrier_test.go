package carrier_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/carrier"
)

func TestTrackingURLKnownCarriers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		carrier string
		number  string
		want    string
	}{
		{"colissimo", "1234567890", "https://www.laposte.fr/outils/suivre-vos-envois?code=1234567890"},
		{"chronopost", "XY123456", "https://www.chronopost.fr/tracking-no-cms/suivi-page?liession=XY123456"},
		{"mondial-relay", "MR12345", "https://www.mondialrelay.fr/suivi-de-colis/?numeroExpedition=MR12345"},
		{"ups", "1Z999", "https://www.ups.com/track?tracknum=1Z999"},
		{"dhl", "JD014600", "https://www.dhl.com/fr-fr/home/tracking.html?tracking-id=JD014600"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.carrier, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, carrier.TrackingURL(tc.carrier, tc.number))
		})
	}
}

func TestTrackingURLVariantsResolveIdentically(t *testing.T) {
	t.Parallel()

	canonical := carrier.TrackingURL("mondial-relay", "MR12345")
	for _, variant := range []string{"Mondial Relay", "mondialrelay", " MONDIAL_RELAY ", "Mondial-Relay", "mondial\trelay"} {
		require.Equal(t, canonical, carrier.TrackingURL(variant, "MR12345"), variant)
	}
	require.Equal(t, carrier.TrackingURL("colissimo", "1234567890"), carrier.TrackingURL("COLISSIMO", "1234567890"))
}

func TestTrackingURLUnknownCarrierFallsBackToSearch(t *testing.T) {
	t.Parallel()

	url := carrier.TrackingURL("unknown-carrier", "TRACK123")
	require.Contains(t, url, "google.com/search")
	require.Contains(t, url, "TRACK123")

	for _, tc := range [][2]string{{"", ""}, {"???", "&x=1"}, {"  ", "a b"}} {
		got := carrier.TrackingURL(tc[0], tc[1])
		require.NotEmpty(t, got)
		require.True(t, strings.HasPrefix(got, "https://www.google.com/search?q="))
		require.NotContains(t, got, "&x=1")
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Mondial Relay", " MONDIAL_RELAY ", "colissimo", "Chrono-Post", "", "x y_z-w"} {
		once := carrier.Normalize(in)
		require.Equal(t, once, carrier.Normalize(once), in)
	}
	require.Equal(t, "mondialrelay", carrier.Normalize(" Mondial_Relay "))
}

func TestParse(t *testing.T) {
	t.Parallel()

	c, ok := carrier.Parse("Mondial Relay")
	require.True(t, ok)
	require.Equal(t, carrier.MondialRelay, c)
	require.Equal(t, "Mondial Relay", c.DisplayName())

	_, ok = carrier.Parse("pony express")
	require.False(t, ok)
}

func TestSupportedCarriersIsStable(t *testing.T) {
	t.Parallel()

	want := []carrier.Carrier{carrier.Colissimo, carrier.Chronopost, carrier.MondialRelay}
	first := carrier.SupportedCarriers()
	require.Equal(t, want, first)

	first[0] = carrier.DHL
	require.Equal(t, want, carrier.SupportedCarriers())
	require.Len(t, carrier.Default().SupportedCarriers(), 3)
}

func TestTrackedByLaPoste(t *testing.T) {
	t.Parallel()

	require.True(t, carrier.Colissimo.TrackedByLaPoste())
	require.True(t, carrier.Chronopost.TrackedByLaPoste())
	require.False(t, carrier.MondialRelay.TrackedByLaPoste())
}

func TestMapExternalStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, carrier.StatusInTransit, carrier.MapExternalStatus(" Shipped "))
	require.Equal(t, carrier.StatusDelivered, carrier.MapExternalStatus("delivered"))
	require.Equal(t, carrier.StatusOutForDelivery, carrier.MapExternalStatus("out-for-delivery"))
	require.Equal(t, carrier.StatusPending, carrier.MapExternalStatus("???"))
	require.Equal(t, carrier.StatusLabelCreated, carrier.MapExternalStatus("DR1"))
	require.Equal(t, carrier.StatusPickedUp, carrier.MapExternalStatus("pc1"))
	require.Equal(t, carrier.StatusDelivered, carrier.MapExternalStatus("DI1"))
	require.Equal(t, carrier.StatusReturned, carrier.MapExternalStatus("RE1"))
	require.True(t, carrier.StatusReturned.IsFinal())
	require.False(t, carrier.StatusInTransit.IsFinal())
}
