package shipping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/shipping"
)

func TestTrackerUsesStoredKey(t *testing.T) {
	client := &fakeLaPoste{result: laposte.TrackingResult{TrackingNumber: "6A123", Carrier: "Colissimo", Status: carrier.StatusInTransit}}
	tracker := shipping.Tracker{Provider: shipping.LaPosteProvider{
		Credentials: fakeCredentials{laposte: credentials.LaPoste{APIKey: "okapi"}},
		Client:      client,
	}}

	res, err := tracker.Track(context.Background(), "Colissimo", " 6A123 ")
	require.NoError(t, err)
	require.Equal(t, []string{"okapi"}, client.keys)
	require.Equal(t, []string{"6A123"}, client.numbers)
	require.Equal(t, carrier.StatusInTransit, res.Status)
	require.NotNil(t, res.Events)
	require.Equal(t, "https://www.laposte.fr/outils/suivre-vos-envois?code=6A123", res.TrackingURL)
}

func TestTrackerRejectsCarriersOutsideLaPoste(t *testing.T) {
	client := &fakeLaPoste{}
	tracker := shipping.Tracker{Provider: shipping.LaPosteProvider{
		Credentials: fakeCredentials{laposte: credentials.LaPoste{APIKey: "okapi"}},
		Client:      client,
	}}

	_, err := tracker.Track(context.Background(), "mondial relay", "123")
	require.ErrorIs(t, err, shipping.ErrNotTrackable)

	_, err = tracker.Track(context.Background(), "pigeon", "123")
	require.ErrorIs(t, err, shipping.ErrNotTrackable)
	require.Empty(t, client.keys)
}

func TestTrackerWithoutKey(t *testing.T) {
	client := &fakeLaPoste{}
	tracker := shipping.Tracker{Provider: shipping.LaPosteProvider{Credentials: fakeCredentials{}, Client: client}}

	_, err := tracker.Track(context.Background(), "chronopost", "XY123")
	require.ErrorIs(t, err, shipping.ErrNotConfigured)
	require.Empty(t, client.keys)
}
