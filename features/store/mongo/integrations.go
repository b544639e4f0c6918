package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

// LoadCredential implements domain.IntegrationCredentialStore.LoadCredential.
func (s *Store) LoadCredential(ctx context.Context, workspace string, provider domain.IntegrationProvider) (domain.IntegrationCredential, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc integrationCredentialDoc
	err := s.integrationCredentials.FindOne(ctx, bson.M{"workspace": workspace, "provider": string(provider)}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.IntegrationCredential{}, domain.ErrIntegrationNotConfigured
	}
	if err != nil {
		return domain.IntegrationCredential{}, err
	}
	return toIntegrationCredential(doc), nil
}

// ListCredentials implements domain.IntegrationCredentialStore.ListCredentials.
func (s *Store) ListCredentials(ctx context.Context, workspace string) ([]domain.IntegrationCredential, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.integrationCredentials.Find(ctx, bson.M{"workspace": workspace})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.IntegrationCredential
	for cur.Next(ctx) {
		var doc integrationCredentialDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toIntegrationCredential(doc))
	}
	return out, cur.Err()
}

func toIntegrationCredential(d integrationCredentialDoc) domain.IntegrationCredential {
	return domain.IntegrationCredential{
		Workspace: d.Workspace, Provider: domain.IntegrationProvider(d.Provider),
		Region: d.Region, BaseURL: d.BaseURL, SecretValue: d.SecretValue,
		Health: domain.HealthStatus(d.Health),
	}
}
