package encryption

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used to load keys.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerKeySource reads the encryption key from AWS Secrets Manager.
// The secret may hold the base64 key directly or a JSON object with an
// "EncryptionKey" (or "encryptionKey") field.
type SecretsManagerKeySource struct {
	client   SecretsManagerAPI
	secretID string
}

// SecretsOption configures the Secrets Manager client.
type SecretsOption func(*secretsOptions)

type secretsOptions struct {
	region   string
	endpoint string
}

// WithRegion sets the AWS region.
func WithRegion(region string) SecretsOption {
	return func(o *secretsOptions) {
		o.region = region
	}
}

// WithEndpoint overrides the service endpoint (LocalStack and similar).
func WithEndpoint(endpoint string) SecretsOption {
	return func(o *secretsOptions) {
		o.endpoint = endpoint
	}
}

// NewSecretsManagerKeySource builds a key source using the default AWS
// credential chain.
func NewSecretsManagerKeySource(ctx context.Context, secretID string, opts ...SecretsOption) (*SecretsManagerKeySource, error) {
	if secretID == "" {
		return nil, fmt.Errorf("secret id is required")
	}
	o := &secretsOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(so *secretsmanager.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
	})
	return NewSecretsManagerKeySourceWithClient(client, secretID), nil
}

// NewSecretsManagerKeySourceWithClient wraps an existing client.
func NewSecretsManagerKeySourceWithClient(client SecretsManagerAPI, secretID string) *SecretsManagerKeySource {
	return &SecretsManagerKeySource{client: client, secretID: secretID}
}

// Key returns the base64-encoded key stored in the secret.
func (s *SecretsManagerKeySource) Key(ctx context.Context) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %q: %w", s.secretID, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case out.SecretBinary != nil:
		raw = string(out.SecretBinary)
	default:
		return "", fmt.Errorf("secret %q has no value", s.secretID)
	}
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		var doc map[string]string
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("secret %q is not a valid JSON object: %w", s.secretID, err)
		}
		for _, field := range []string{"EncryptionKey", "encryptionKey"} {
			if v := doc[field]; v != "" {
				return v, nil
			}
		}
		return "", fmt.Errorf("secret %q has no EncryptionKey field", s.secretID)
	}
	return raw, nil
}
