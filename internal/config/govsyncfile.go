package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// knownSections are the tables accepted in govsync.toml
var knownSections = map[string]bool{
	"database":  true,
	"network":   true,
	"signer":    true,
	"reconcile": true,
	"events":    true,
	"metrics":   true,
}

// loadEnvFiles loads .env files first for variable expansion. Existing
// environment variables win over file values.
func loadEnvFiles(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// mergeConfigFile decodes govsync.toml and merges it below env and flags.
// A missing file is only an error when the path was given explicitly.
// Returns the path that was loaded, empty if none.
func mergeConfigFile(v *viper.Viper, path string, explicit bool) (string, error) {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for section, value := range raw {
		if !knownSections[section] {
			return "", fmt.Errorf("unknown section [%s] in %s", section, path)
		}
		if _, ok := value.(map[string]any); !ok {
			return "", fmt.Errorf("%s must be a table in %s", section, path)
		}
	}

	expanded, err := expandEnv(raw, "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if err := v.MergeConfigMap(expanded); err != nil {
		return "", fmt.Errorf("failed to merge %s: %w", path, err)
	}
	return path, nil
}

// envVarPattern matches ${VAR_NAME} references in TOML values
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references in every string value. A reference
// to an unset variable is an error naming the key that holds it.
func expandEnv(m map[string]any, prefix string) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := val.(type) {
		case string:
			for _, match := range envVarPattern.FindAllStringSubmatch(t, -1) {
				if _, ok := os.LookupEnv(match[1]); !ok {
					return nil, fmt.Errorf("%s references ${%s} which is not set", key, match[1])
				}
			}
			out[k] = os.ExpandEnv(t)
		case map[string]any:
			nested, err := expandEnv(t, key)
			if err != nil {
				return nil, err
			}
			out[k] = nested
		default:
			out[k] = val
		}
	}
	return out, nil
}
