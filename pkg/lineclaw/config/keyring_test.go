package config

import (
	"os"
	"testing"

	"github.com/zalando/go-keyring"
)

// TestMain swaps the OS keyring for an in-memory mock so the package
// tests never read or write the host's credential store.
func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func TestSecretRoundTrip(t *testing.T) {
	if err := StoreSecret(KeyGeminiAPIKey, "kr-gemini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = DeleteSecret(KeyGeminiAPIKey) })

	if got := LoadSecret(KeyGeminiAPIKey); got != "kr-gemini" {
		t.Errorf("expected the stored value back, got %q", got)
	}

	if err := DeleteSecret(KeyGeminiAPIKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := LoadSecret(KeyGeminiAPIKey); got != "" {
		t.Errorf("expected no value after delete, got %q", got)
	}
}

func TestDeleteSecretMissingKey(t *testing.T) {
	if err := DeleteSecret(KeyChannelToken); err != nil {
		t.Errorf("deleting an absent key should not fail: %v", err)
	}
}

func TestLoadKeyringBeatsFileValue(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	if err := StoreSecret(KeyGeminiAPIKey, "kr-gemini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = DeleteSecret(KeyGeminiAPIKey) })

	path := writeConfig(t, `
gemini:
  api_key: file-gemini
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "kr-gemini" {
		t.Errorf("expected the keyring to override the file value, got %q", cfg.Gemini.APIKey)
	}
}

func TestLoadEnvBeatsKeyring(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	if err := StoreSecret(KeyGeminiAPIKey, "kr-gemini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = DeleteSecret(KeyGeminiAPIKey) })

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "env-gemini" {
		t.Errorf("expected the environment to win over the keyring, got %q", cfg.Gemini.APIKey)
	}
}
