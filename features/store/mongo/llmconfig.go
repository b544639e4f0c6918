package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/akshatgg/vibe-monitor-back/internal/rca/domain"
)

// ErrLLMConfigNotFound is returned when a workspace has no configured LLM
// backend yet (the out-of-scope Billing/Workspace CRUD layer owns writes).
var ErrLLMConfigNotFound = errors.New("llm config not found")

// LoadLLMConfig implements domain.LLMConfigStore.LoadLLMConfig.
func (s *Store) LoadLLMConfig(ctx context.Context, workspace string) (domain.LLMConfig, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc llmConfigDoc
	err := s.llmConfigs.FindOne(ctx, bson.M{"workspace": workspace}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return domain.LLMConfig{}, ErrLLMConfigNotFound
	}
	if err != nil {
		return domain.LLMConfig{}, err
	}
	return domain.LLMConfig{
		Workspace: doc.Workspace, Provider: domain.LLMProvider(doc.Provider), Model: doc.Model,
		APIKey: doc.APIKey, BaseURL: doc.BaseURL, APIVersion: doc.APIVersion, Health: domain.HealthStatus(doc.Health),
	}, nil
}
