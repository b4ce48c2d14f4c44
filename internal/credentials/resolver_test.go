package credentials_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/credentials"
)

type failingStore struct{}

func (failingStore) Values(context.Context, string) (map[string]string, error) {
	return nil, errors.New("connection refused")
}

type countingStore struct {
	*credentials.MemoryStore
	calls int
}

func (c *countingStore) Values(ctx context.Context, prefix string) (map[string]string, error) {
	c.calls++
	return c.MemoryStore.Values(ctx, prefix)
}

func TestMondialRelayAbsentIsNotAnError(t *testing.T) {
	r := credentials.Resolver{Store: credentials.NewMemoryStore(nil)}

	creds, ok, err := r.MondialRelay(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, creds.Enseigne)
}

func TestMondialRelayRequiresBothFields(t *testing.T) {
	store := credentials.NewMemoryStore(map[string]string{
		credentials.KeyMondialRelayEnseigne:   "BDTEST13",
		credentials.KeyMondialRelayPrivateKey: "   ",
	})
	_, ok, err := credentials.Resolver{Store: store}.MondialRelay(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoredValueWinsOverFallbackPerField(t *testing.T) {
	store := credentials.NewMemoryStore(map[string]string{
		credentials.KeyMondialRelayEnseigne: "STORED01",
		credentials.KeyLaPosteAPIKey:        "",
	})
	fallback := credentials.NewMemoryStore(map[string]string{
		credentials.KeyMondialRelayEnseigne:   "ENV00001",
		credentials.KeyMondialRelayPrivateKey: "envkey",
		credentials.KeyLaPosteAPIKey:          "okapi-env",
	})
	r := credentials.Resolver{Store: store, Fallback: fallback}

	mr, ok, err := r.MondialRelay(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "STORED01", mr.Enseigne)
	require.Equal(t, "envkey", mr.PrivateKey)

	lp, ok, err := r.LaPoste(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "okapi-env", lp.APIKey)
}

func TestStoreFailureIsAnError(t *testing.T) {
	r := credentials.Resolver{Store: failingStore{}}

	_, ok, err := r.MondialRelay(context.Background())
	require.Error(t, err)
	require.False(t, ok)

	_, err = r.Configured(context.Background())
	require.Error(t, err)
}

func TestCredentialsAreReadOnEveryCall(t *testing.T) {
	store := &countingStore{MemoryStore: credentials.NewMemoryStore(nil)}
	r := credentials.Resolver{Store: store}

	_, ok, _ := r.LaPoste(context.Background())
	require.False(t, ok)

	store.Set(credentials.KeyLaPosteAPIKey, "fresh")
	lp, ok, err := r.LaPoste(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", lp.APIKey)
	require.Equal(t, 2, store.calls)
}

func TestConfigured(t *testing.T) {
	store := credentials.NewMemoryStore(map[string]string{
		credentials.KeyLaPosteAPIKey:          "okapi",
		credentials.KeyMondialRelayEnseigne:   "BDTEST13",
		credentials.KeyMondialRelayPrivateKey: "mr-s3cr3t",
	})
	got, err := credentials.Resolver{Store: store}.Configured(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[carrier.Carrier]bool{
		carrier.Colissimo:    true,
		carrier.Chronopost:   true,
		carrier.MondialRelay: true,
	}, got)

	got, err = credentials.Resolver{}.Configured(context.Background())
	require.NoError(t, err)
	require.False(t, got[carrier.MondialRelay])
	require.False(t, got[carrier.Colissimo])
}

func TestColissimoNeedsContractAndPassword(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore(map[string]string{credentials.KeyColissimoContract: "123456"})

	_, ok, err := credentials.Resolver{Store: store}.Colissimo(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	fallback := credentials.NewMemoryStore(map[string]string{credentials.KeyColissimoPassword: "co-s3cr3t"})
	r := credentials.Resolver{Store: store, Fallback: fallback}
	creds, ok, err := r.Colissimo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "123456", creds.ContractNumber)
	require.Equal(t, "co-s3cr3t", creds.Password)

	got, err := r.Configured(ctx)
	require.NoError(t, err)
	require.True(t, got[carrier.Colissimo])
	require.False(t, got[carrier.Chronopost])
	require.False(t, got[carrier.MondialRelay])
}

func TestSecretsAreRedacted(t *testing.T) {
	mr := credentials.MondialRelay{Enseigne: "BDTEST13", PrivateKey: "mr-s3cr3t"}
	require.NotContains(t, fmt.Sprint(mr), "mr-s3cr3t")
	require.Contains(t, fmt.Sprint(mr), "BDTEST13")

	raw, err := json.Marshal(mr)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "mr-s3cr3t")

	raw, err = json.Marshal(credentials.LaPoste{APIKey: "okapi-secret"})
	require.NoError(t, err)
	require.NotContains(t, string(raw), "okapi-secret")

	require.NotContains(t, fmt.Sprintf("%v", credentials.Colissimo{ContractNumber: "123", Password: "hunter2"}), "hunter2")
}
