package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPattern matches environment references in config values:
//
//	${VAR}          use VAR, keep the placeholder when unset
//	${VAR:-default} use VAR, or "default" when unset
//	${VAR:?message} use VAR, or fail the load with message
//	$VAR            bare form, no modifier support
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads the YAML file at path, expands environment references and
// overlays the result onto Default. Credentials left empty by the file
// are resolved from the environment and the OS keyring.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnv(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	resolveSecrets(cfg)
	resolvePaths(cfg, path)
	checkFilePermissions(path)

	return cfg, nil
}

// FindConfigFile searches the working directory for a config file in the
// usual spots. Returns "" when none exists.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"lineclaw.yaml",
		"lineclaw.yml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadEnvFiles loads .env files from the working directory. godotenv
// never overwrites variables that are already set, so .env.local loads
// first to take precedence over .env.
func loadEnvFiles() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}

// expandEnv substitutes environment references in the raw YAML text. A
// ${VAR:?message} reference with VAR unset fails the whole load; every
// missing required variable is reported at once.
func expandEnv(input string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envPattern.FindStringSubmatch(match)
		name, modifier, arg, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if val, ok := os.LookupEnv(bare); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return arg
		case "?":
			msg := arg
			if msg == "" {
				msg = "required environment variable not set"
			}
			missing = append(missing, fmt.Sprintf("%s (%s)", name, msg))
		}
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("config: missing required variables: %s", strings.Join(missing, "; "))
	}
	return out, nil
}

// resolveSecrets runs each credential through the resolution chain:
// environment first, then the OS keyring, then whatever the YAML
// carried. The config file is the last resort; plaintext credentials
// on disk are the least trusted source.
func resolveSecrets(cfg *Config) {
	cfg.Line.ChannelSecret = resolveSecret(cfg.Line.ChannelSecret,
		[]string{"LINE_CHANNEL_SECRET"}, KeyChannelSecret)
	cfg.Line.ChannelToken = resolveSecret(cfg.Line.ChannelToken,
		[]string{"LINE_CHANNEL_TOKEN"}, KeyChannelToken)
	cfg.Gemini.APIKey = resolveSecret(cfg.Gemini.APIKey,
		[]string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, KeyGeminiAPIKey)
}

func resolveSecret(current string, envVars []string, keyringKey string) string {
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	if val := LoadSecret(keyringKey); val != "" {
		return val
	}
	// An unexpanded ${...} placeholder must never be used as a
	// credential.
	if isEnvReference(current) {
		return ""
	}
	return current
}

// isEnvReference reports whether s still looks like an environment
// reference rather than a real value.
func isEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// resolvePaths makes relative file paths absolute against the config
// file's directory, so starting the bot from another working directory
// keeps pointing at the same data.
func resolvePaths(cfg *Config, configPath string) {
	configDir := filepath.Dir(configPath)
	if cfg.Activity.SnapshotPath != "" {
		cfg.Activity.SnapshotPath = resolvePath(cfg.Activity.SnapshotPath, configDir)
	}
}

func resolvePath(path, configDir string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

// checkFilePermissions warns when the config file is readable by group or
// others. Config files can carry credentials.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
