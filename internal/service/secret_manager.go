package service

import (
	"context"
	"fmt"

	"app/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretManagerService fetches provider credentials that must not live in
// the environment of production deployments.
type SecretManagerService interface {
	// FetchProviderToken returns the latest version of the telephony
	// provider API token secret.
	FetchProviderToken(ctx context.Context) (string, error)
}

type secretManagerService struct {
	client     *secretmanager.Client
	projectID  string
	secretName string
}

// NewSecretManagerService creates a Secret Manager client. When
// SecretManagerEndpoint is set (local emulator) the client skips
// authentication and talks to that endpoint instead.
func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}

	var opts []option.ClientOption
	if cfg.SecretManagerEndpoint != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.SecretManagerEndpoint),
			option.WithoutAuthentication(),
		)
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:     client,
		projectID:  cfg.GCPProjectID,
		secretName: cfg.ProviderTokenSecret,
	}, nil
}

func (s *secretManagerService) FetchProviderToken(ctx context.Context) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretName)

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version %s: %w", resourceName, err)
	}
	return string(result.Payload.Data), nil
}
