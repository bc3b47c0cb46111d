package cmd

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkgmeta/repometa/internal/secret"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the key used to encrypt repository passwords",
}

var secretGenerateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Print a new random key (hex) for secret.key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secret.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
		return err
	},
}

var secretEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a repository password read from stdin",
	Long: `Encrypt a repository password with the configured secret key. The
plaintext is read from the first line of stdin; the output can be pasted into
the password field of a repositories file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		decryptor, err := loadDecryptor(cfg.Secret)
		if err != nil {
			return err
		}
		if decryptor == nil {
			return errors.New("secret.key or secret.key_file must be configured")
		}

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		plaintext := strings.TrimRight(line, "\r\n")
		if plaintext == "" {
			if err != nil {
				return fmt.Errorf("read plaintext: %w", err)
			}
			return errors.New("plaintext is empty")
		}

		sealed, err := decryptor.Encrypt(plaintext)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return err
	},
}

func init() {
	secretCmd.AddCommand(secretGenerateKeyCmd)
	secretCmd.AddCommand(secretEncryptCmd)
	rootCmd.AddCommand(secretCmd)
}
