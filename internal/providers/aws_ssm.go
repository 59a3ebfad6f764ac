package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/ashebanow/secretspec/internal/providers/contracts"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// AWSSSMProvider stores secrets as SecureString parameters in AWS Systems
// Manager Parameter Store, under "/{project}/{profile}/{key}".
type AWSSSMProvider struct {
	client func() (contracts.SSMClient, error)
}

var _ provider.Provider = (*AWSSSMProvider)(nil)

// AWSSSMOption configures an AWSSSMProvider.
type AWSSSMOption func(*AWSSSMProvider)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client contracts.SSMClient) AWSSSMOption {
	return func(p *AWSSSMProvider) {
		p.client = func() (contracts.SSMClient, error) { return client, nil }
	}
}

// NewAWSSSMProvider creates the provider; the SDK client is built lazily.
func NewAWSSSMProvider(cfg AWSConfig, opts ...AWSSSMOption) *AWSSSMProvider {
	p := &AWSSSMProvider{
		client: sync.OnceValues(func() (contracts.SSMClient, error) {
			awsCfg, err := cfg.load(context.Background())
			if err != nil {
				return nil, err
			}
			return ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
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
func (p *AWSSSMProvider) Name() string {
	return "awsssm"
}

// AllowsSet returns true
func (p *AWSSSMProvider) AllowsSet() bool {
	return true
}

// Get reads and decrypts the parameter.
func (p *AWSSSMProvider) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	client, err := p.client()
	if err != nil {
		return nil, false, err
	}

	name := parameterName(project, key, profile)
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, p.handleError(err, name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, false, nil
	}
	return secure.NewString(*out.Parameter.Value), true, nil
}

// Set writes the parameter as a SecureString, overwriting any previous value.
func (p *AWSSSMProvider) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	plain, err := value.Expose()
	if err != nil {
		return err
	}
	client, err := p.client()
	if err != nil {
		return err
	}

	name := parameterName(project, key, profile)
	_, err = client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(plain),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return p.handleError(err, name)
	}
	return nil
}

func (p *AWSSSMProvider) handleError(err error, name string) error {
	if isAWSAuthError(err) {
		return provider.AuthError{
			Provider: p.Name(),
			Message:  fmt.Sprintf("AWS authentication/authorization failed for %s: %v", name, err),
		}
	}
	return fmt.Errorf("AWS SSM error for %s: %w", name, err)
}

func parameterName(project, key, profile string) string {
	return "/" + scopedName("/", project, profile, key)
}
