package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// keyringService namespaces the bot's entries in the OS keyring.
const keyringService = "lineclaw"

// Keyring keys for the three channel credentials, shared by the loader
// and the secret command.
const (
	KeyChannelSecret = "channel_secret"
	KeyChannelToken  = "channel_token"
	KeyGeminiAPIKey  = "gemini_api_key"
)

// SecretKeys lists the credentials the secret command manages.
func SecretKeys() []string {
	return []string{KeyChannelSecret, KeyChannelToken, KeyGeminiAPIKey}
}

// StoreSecret writes a credential to the OS keyring.
func StoreSecret(key, value string) error {
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", key, err)
	}
	return nil
}

// LoadSecret reads a credential from the OS keyring. Absence and keyring
// errors both come back as ""; the loader treats the keyring as one
// optional stage of the resolution chain.
func LoadSecret(key string) string {
	value, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return value
}

// DeleteSecret removes a credential from the OS keyring. Deleting a key
// that is not stored is not an error.
func DeleteSecret(key string) error {
	err := keyring.Delete(keyringService, key)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting %s from keyring: %w", key, err)
	}
	return nil
}

// KeyringAvailable probes the OS keyring with a write/delete pair. Some
// headless systems have no usable backend.
func KeyringAvailable() bool {
	const probe = "lineclaw-availability-probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// ReadSecret prompts for a secret without echoing when stdin is a
// terminal, and falls back to a plain line read when it is not (pipes,
// CI).
func ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
