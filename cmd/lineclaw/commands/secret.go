package commands

import (
	"fmt"
	"strings"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/config"
	"github.com/spf13/cobra"
)

// newSecretCmd creates the `lineclaw secret` command group for managing
// credentials in the OS keyring.
func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials in the OS keyring",
		Long: fmt.Sprintf(`Store the LINE and Gemini credentials in the OS keyring
(Linux: Secret Service, macOS: Keychain, Windows: Credential Manager)
so they never sit in config.yaml as plaintext.

Keys: %s

Examples:
  lineclaw secret set channel_token
  lineclaw secret rm gemini_api_key
  lineclaw secret check`, strings.Join(config.SecretKeys(), ", ")),
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretRmCmd(),
		newSecretCheckCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Prompt for a credential and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := args[0]
			if err := validSecretKey(key); err != nil {
				return err
			}
			if !config.KeyringAvailable() {
				return fmt.Errorf("no usable OS keyring on this system; set the %s environment variable instead", envHint(key))
			}

			value, err := config.ReadSecret(fmt.Sprintf("Value for %s: ", key))
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("empty value, nothing stored")
			}

			if err := config.StoreSecret(key, value); err != nil {
				return err
			}
			fmt.Printf("Stored %s in the OS keyring.\n", key)
			return nil
		},
	}
}

func newSecretRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a credential from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := args[0]
			if err := validSecretKey(key); err != nil {
				return err
			}
			if err := config.DeleteSecret(key); err != nil {
				return err
			}
			fmt.Printf("Removed %s from the OS keyring.\n", key)
			return nil
		},
	}
}

func newSecretCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show which credentials the keyring holds",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !config.KeyringAvailable() {
				fmt.Println("OS keyring: unavailable")
				return nil
			}
			fmt.Println("OS keyring: available")
			for _, key := range config.SecretKeys() {
				state := "not set"
				if config.LoadSecret(key) != "" {
					state = "set"
				}
				fmt.Printf("  %-16s %s\n", key, state)
			}
			return nil
		},
	}
}

// validSecretKey rejects keys the loader would never read back.
func validSecretKey(key string) error {
	for _, known := range config.SecretKeys() {
		if key == known {
			return nil
		}
	}
	return fmt.Errorf("unknown key %q (expected one of: %s)", key, strings.Join(config.SecretKeys(), ", "))
}

// envHint maps a keyring key to the environment variable that overrides it.
func envHint(key string) string {
	switch key {
	case config.KeyChannelSecret:
		return "LINE_CHANNEL_SECRET"
	case config.KeyChannelToken:
		return "LINE_CHANNEL_TOKEN"
	default:
		return "GEMINI_API_KEY"
	}
}
