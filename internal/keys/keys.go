package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar is checked before any config file.
const EnvVar = "OPENROUTER_API_KEY"

const configKey = "OPENROUTER_API_KEY"

var ErrNotFound = errors.New("API key not found")

// ConfigLocations returns the candidate config file paths in priority order:
// current directory, XDG config directory, home dotfile.
func ConfigLocations(getenv func(string) string) []string {
	var locations []string

	if cwd, err := os.Getwd(); err == nil {
		locations = append(locations, filepath.Join(cwd, ".openrouter-config"))
	}

	configHome := getenv("XDG_CONFIG_HOME")
	home, homeErr := os.UserHomeDir()
	if configHome == "" && homeErr == nil {
		configHome = filepath.Join(home, ".config")
	}
	if configHome != "" {
		locations = append(locations, filepath.Join(configHome, "openrouter", "config"))
	}

	if homeErr == nil {
		locations = append(locations, filepath.Join(home, ".openrouter-config"))
	}

	return locations
}

// Resolve returns the API key and a description of where it came from.
// Priority: explicit flag, environment variable, then config files in
// ConfigLocations order. First match wins.
func Resolve(explicitKey string, getenv func(string) string) (string, string, error) {
	if explicitKey != "" {
		return explicitKey, "command-line flag", nil
	}

	if envKey := getenv(EnvVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", EnvVar), nil
	}

	locations := ConfigLocations(getenv)
	for _, path := range locations {
		key, err := readConfigKey(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if key != "" {
			return key, fmt.Sprintf("config file (%s)", path), nil
		}
	}

	return "", "", fmt.Errorf("%w: set the %s environment variable, or create a config file at one of:\n%s\n\nConfig file format:\n  %s=your-key-here",
		ErrNotFound, EnvVar, formatLocations(locations), configKey)
}

// readConfigKey parses a KEY=VALUE config file. Blank lines and lines
// starting with # are ignored.
func readConfigKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(name) == configKey {
			value = strings.TrimSpace(value)
			if value == "" || value == "your-api-key-here" {
				return "", nil
			}
			return value, nil
		}
	}
	return "", nil
}

func formatLocations(locations []string) string {
	lines := make([]string, 0, len(locations))
	for _, loc := range locations {
		lines = append(lines, "  - "+loc)
	}
	return strings.Join(lines, "\n")
}
