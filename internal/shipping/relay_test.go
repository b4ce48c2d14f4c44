package shipping_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/shipping"
)

func TestFindWithoutCredentialsSkipsNetwork(t *testing.T) {
	client := &fakeRelayClient{points: samplePoints}
	locator := shipping.RelayLocator{Credentials: fakeCredentials{}, Client: client, MaxResults: 10}

	res, err := locator.Find(context.Background(), shipping.RelayQuery{ZipCode: "75001"})
	require.NoError(t, err)
	require.False(t, res.Configured)
	require.NotNil(t, res.Points)
	require.Empty(t, res.Points)
	require.Zero(t, client.calls())
	require.Equal(t, shipping.OutcomeNotConfigured, shipping.Classify(res, err))
}

func TestFindPassesNormalisedQuery(t *testing.T) {
	client := &fakeRelayClient{points: samplePoints}
	locator := shipping.RelayLocator{Credentials: fakeCredentials{relay: validRelayAccount}, Client: client, MaxResults: 7}

	res, err := locator.Find(context.Background(), shipping.RelayQuery{ZipCode: " 1000 ", Country: "be"})
	require.NoError(t, err)
	require.True(t, res.Configured)
	require.Len(t, res.Points, 2)
	require.Equal(t, shipping.OutcomeOK, shipping.Classify(res, err))

	require.Equal(t, 1, client.calls())
	got := client.seen[0]
	require.Equal(t, "BE", got.Country)
	require.Equal(t, "1000", got.ZipCode)
	require.Equal(t, 7, got.MaxResults)
	require.Equal(t, validRelayAccount, got.Account)
}

func TestFindDefaultsCountry(t *testing.T) {
	client := &fakeRelayClient{}
	locator := shipping.RelayLocator{Credentials: fakeCredentials{relay: validRelayAccount}, Client: client}

	res, err := locator.Find(context.Background(), shipping.RelayQuery{ZipCode: "75001"})
	require.NoError(t, err)
	require.NotNil(t, res.Points)
	require.Equal(t, "FR", client.seen[0].Country)
	require.Equal(t, shipping.OutcomeEmpty, shipping.Classify(res, err))
}

func TestFindSurfacesProviderErrors(t *testing.T) {
	authErr := &mondialrelay.StatusError{Action: "WSI4_PointRelais_Recherche", Code: "2"}
	client := &fakeRelayClient{err: authErr}
	locator := shipping.RelayLocator{Credentials: fakeCredentials{relay: validRelayAccount}, Client: client}

	res, err := locator.Find(context.Background(), shipping.RelayQuery{ZipCode: "75001"})
	require.ErrorIs(t, err, mondialrelay.ErrAuthentication)
	require.True(t, res.Configured)
	require.Empty(t, res.Points)
	require.Equal(t, shipping.OutcomeAuthFailed, shipping.Classify(res, err))
}

func TestFindCredentialStoreFailure(t *testing.T) {
	client := &fakeRelayClient{}
	locator := shipping.RelayLocator{Credentials: fakeCredentials{err: errors.New("db down")}, Client: client}

	_, err := locator.Find(context.Background(), shipping.RelayQuery{ZipCode: "75001"})
	require.ErrorIs(t, err, shipping.ErrCredentialsLookup)
	require.Zero(t, client.calls())
}

func TestClassify(t *testing.T) {
	configured := shipping.RelaySearch{Configured: true}
	cases := []struct {
		res  shipping.RelaySearch
		err  error
		want string
	}{
		{shipping.RelaySearch{}, nil, shipping.OutcomeNotConfigured},
		{configured, nil, shipping.OutcomeEmpty},
		{shipping.RelaySearch{Configured: true, Points: samplePoints}, nil, shipping.OutcomeOK},
		{configured, &mondialrelay.StatusError{Code: "97"}, shipping.OutcomeAuthFailed},
		{configured, fmt.Errorf("%w: HTTP 503", mondialrelay.ErrUnavailable), shipping.OutcomeUnavailable},
		{configured, &mondialrelay.StatusError{Code: "9"}, shipping.OutcomeError},
		{configured, mondialrelay.ErrMalformedResponse, shipping.OutcomeError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, shipping.Classify(tc.res, tc.err), "%v", tc.err)
	}
}
