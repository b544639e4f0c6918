package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
	rcaprovider "github.com/akshatgg/vibe-monitor-back/internal/rca/provider"
)

type fakeCredentialStore struct {
	creds []domain.IntegrationCredential
	err   error
}

func (f *fakeCredentialStore) LoadCredential(ctx context.Context, workspace string, provider domain.IntegrationProvider) (domain.IntegrationCredential, error) {
	for _, c := range f.creds {
		if c.Provider == provider {
			return c, nil
		}
	}
	return domain.IntegrationCredential{}, domain.ErrIntegrationNotConfigured
}

func (f *fakeCredentialStore) ListCredentials(ctx context.Context, workspace string) ([]domain.IntegrationCredential, error) {
	return f.creds, f.err
}

type fakeAdapter struct {
	capability rcaprovider.Capability
	provider   rcaprovider.Name
}

func (a *fakeAdapter) Capability() rcaprovider.Capability { return a.capability }
func (a *fakeAdapter) Provider() rcaprovider.Name         { return a.provider }
func (a *fakeAdapter) Call(ctx context.Context, input []byte) ([]byte, error) {
	return []byte(`{}`), nil
}

type fakeOpener struct {
	name rcaprovider.Name
	err  error
}

func (o *fakeOpener) Open(ctx context.Context, workspace string, h rcaprovider.Handle) (rcaprovider.Adapter, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &fakeAdapter{capability: h.Capability, provider: o.name}, nil
}

func TestListCapabilities_ExcludesFailedHealth(t *testing.T) {
	store := &fakeCredentialStore{creds: []domain.IntegrationCredential{
		{Workspace: "ws-1", Provider: domain.IntegrationCloudWatch, Health: domain.HealthHealthy},
		{Workspace: "ws-1", Provider: domain.IntegrationPrometheus, Health: domain.HealthFailed},
	}}
	reg := New(store, &fakeOpener{name: "cloudwatch"}, &fakeOpener{name: "prometheus"}, nil)

	handles, err := reg.ListCapabilities(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, handles, 2) // cloudwatch's two capabilities only
	for _, h := range handles {
		require.Equal(t, rcaprovider.Name("cloudwatch"), h.Provider)
	}
}

func TestListCapabilities_SkipsProvidersWithoutAnOpener(t *testing.T) {
	store := &fakeCredentialStore{creds: []domain.IntegrationCredential{
		{Workspace: "ws-1", Provider: domain.IntegrationGitHub, Health: domain.HealthHealthy},
	}}
	reg := New(store, nil, nil, nil) // no github opener configured

	handles, err := reg.ListCapabilities(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Empty(t, handles)
}

func TestListCapabilities_PropagatesStoreError(t *testing.T) {
	store := &fakeCredentialStore{err: errors.New("mongo down")}
	reg := New(store, nil, nil, nil)

	_, err := reg.ListCapabilities(context.Background(), "ws-1")
	require.Error(t, err)
}

func TestOpen_DispatchesToTheRightOpener(t *testing.T) {
	store := &fakeCredentialStore{}
	reg := New(store, &fakeOpener{name: "cloudwatch"}, &fakeOpener{name: "prometheus"}, &fakeOpener{name: "github"})

	adapter, err := reg.Open(context.Background(), "ws-1", rcaprovider.Handle{Provider: "prometheus", Capability: rcaprovider.CapMetricsQuery})
	require.NoError(t, err)
	require.Equal(t, rcaprovider.Name("prometheus"), adapter.Provider())
}

func TestOpen_UnknownProvider(t *testing.T) {
	reg := New(&fakeCredentialStore{}, nil, nil, nil)

	_, err := reg.Open(context.Background(), "ws-1", rcaprovider.Handle{Provider: "cloudwatch", Capability: rcaprovider.CapLogsSearch})
	require.Error(t, err)
}

var _ domain.IntegrationCredentialStore = (*fakeCredentialStore)(nil)
