package app

import (
	"fmt"

	"github.com/spf13/cobra"

	adminapp "github.com/ed-fi-alliance/ods-admin-api/internal/app"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/encryption"
)

func newEncryptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Encrypt an ODS connection string",
		Long: `Encrypt an ODS instance connection string with the configured key and print
the value to store in dbo.OdsInstances. The key is resolved from --config when
given, otherwise from ` + config.EncryptionKeyEnvVar + `.

With --generate-key a new random key is printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncrypt,
	}
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	cmd.Flags().Bool("generate-key", false, "Print a new base64 encryption key")
	return cmd
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	generate, err := cmd.Flags().GetBool("generate-key")
	if err != nil {
		return fmt.Errorf("failed to get generate-key flag: %w", err)
	}
	if generate {
		key, err := encryption.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	}

	if len(args) != 1 {
		return fmt.Errorf("encrypt requires the plaintext connection string")
	}

	cfg := &config.Config{}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
	}

	encoded, err := cfg.ResolveEncryptionKey(cmd.Context(), adminapp.SecretKeySource)
	if err != nil {
		return err
	}
	key, err := encryption.DecodeKey(encoded)
	if err != nil {
		return err
	}

	ciphertext, err := encryption.NewProvider().Encrypt(args[0], key)
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), ciphertext)
	return err
}
