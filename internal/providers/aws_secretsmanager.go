package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/ashebanow/secretspec/internal/providers/contracts"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// AWSConfig holds the connection settings shared by the AWS providers.
type AWSConfig struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string
	// Static credentials, only used when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSConfig) load(ctx context.Context) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// AWSSecretsManagerProvider stores each secret as an AWS Secrets Manager
// secret named "{project}/{profile}/{key}".
type AWSSecretsManagerProvider struct {
	client func() (contracts.SecretsManagerClient, error)
}

var _ provider.Provider = (*AWSSecretsManagerProvider)(nil)

// AWSSecretsManagerOption configures an AWSSecretsManagerProvider.
type AWSSecretsManagerOption func(*AWSSecretsManagerProvider)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client contracts.SecretsManagerClient) AWSSecretsManagerOption {
	return func(p *AWSSecretsManagerProvider) {
		p.client = func() (contracts.SecretsManagerClient, error) { return client, nil }
	}
}

// NewAWSSecretsManagerProvider creates the provider. The SDK client is built
// on first use so that construction never needs credentials.
func NewAWSSecretsManagerProvider(cfg AWSConfig, opts ...AWSSecretsManagerOption) *AWSSecretsManagerProvider {
	p := &AWSSecretsManagerProvider{
		client: sync.OnceValues(func() (contracts.SecretsManagerClient, error) {
			awsCfg, err := cfg.load(context.Background())
			if err != nil {
				return nil, err
			}
			return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
				}
			}), nil
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *AWSSecretsManagerProvider) Name() string {
	return "awssm"
}

// AllowsSet returns true
func (p *AWSSecretsManagerProvider) AllowsSet() bool {
	return true
}

// Get fetches the current version of the secret.
func (p *AWSSecretsManagerProvider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	client, err := p.client()
	if err != nil {
		return nil, false, err
	}

	name := scopedName("/", project, profile, key)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return nil, false, nil
		}
		return nil, false, p.handleError(err, name)
	}

	switch {
	case out.SecretString != nil:
		return secure.NewString(*out.SecretString), true, nil
	case out.SecretBinary != nil:
		return secure.NewStringFromBytes(out.SecretBinary), true, nil
	default:
		return nil, false, nil
	}
}

// Set puts a new version of the secret, creating the secret on first use.
func (p *AWSSecretsManagerProvider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}
	client, err := p.client()
	if err != nil {
		return err
	}

	name := scopedName("/", project, profile, key)
	_, err = client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(plain),
	})
	if err == nil {
		return nil
	}
	if !isAWSNotFound(err) {
		return p.handleError(err, name)
	}

	_, err = client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(plain),
		Description:  aws.String("SecretSpec managed secret: " + project + "/" + key),
	})
	if err != nil {
		return p.handleError(err, name)
	}
	return nil
}

func (p *AWSSecretsManagerProvider) handleError(err error, secretName string) error {
	if isAWSAuthError(err) {
		return provider.AuthError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("AWS authentication/authorization failed for %s: %v", secretName, err),
		}
	}
	return fmt.Errorf("AWS Secrets Manager error for %s: %w", secretName, err)
}

func isAWSNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

func isAWSAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "UnauthorizedOperation") ||
		strings.Contains(errStr, "InvalidUserID") ||
		strings.Contains(errStr, "UnrecognizedClientException") ||
		strings.Contains(errStr, "ExpiredToken")
}
