package encryption

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsClient struct {
	out *secretsmanager.GetSecretValueOutput
	err error
	id  string
}

func (f *fakeSecretsClient) GetSecretValue(
	_ context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.id = aws.ToString(params.SecretId)
	return f.out, f.err
}

func TestSecretsManagerKeySource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		out     *secretsmanager.GetSecretValueOutput
		err     error
		want    string
		wantErr bool
	}{
		{
			name: "plain string",
			out:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(" a2V5\n")},
			want: "a2V5",
		},
		{
			name: "json document",
			out:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"EncryptionKey":"a2V5"}`)},
			want: "a2V5",
		},
		{
			name: "json document lower camel",
			out:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"encryptionKey":"a2V5"}`)},
			want: "a2V5",
		},
		{
			name: "binary",
			out:  &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("a2V5")},
			want: "a2V5",
		},
		{
			name:    "json without key",
			out:     &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"other":"x"}`)},
			wantErr: true,
		},
		{
			name:    "malformed json",
			out:     &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"other":`)},
			wantErr: true,
		},
		{
			name:    "empty secret",
			out:     &secretsmanager.GetSecretValueOutput{},
			wantErr: true,
		},
		{
			name:    "client error",
			err:     errors.New("access denied"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeSecretsClient{out: tt.out, err: tt.err}
			src := NewSecretsManagerKeySourceWithClient(client, "ods-admin/encryption-key")

			got, err := src.Key(t.Context())
			assert.Equal(t, "ods-admin/encryption-key", client.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSecretsManagerKeySourceRequiresID(t *testing.T) {
	t.Parallel()

	_, err := NewSecretsManagerKeySource(t.Context(), "")
	assert.Error(t, err)
}
