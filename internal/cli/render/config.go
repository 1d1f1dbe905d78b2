package render

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/daoservice/govsync/internal/domain/config"
)

// ConfigRenderer renders the effective runtime configuration
type ConfigRenderer struct {
	out io.Writer
}

// NewConfigRenderer creates a new config renderer
func NewConfigRenderer(out io.Writer) *ConfigRenderer {
	return &ConfigRenderer{out: out}
}

// getRelativePath returns the relative path from current directory
func getRelativePath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	relPath, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}
	return relPath
}

// Render prints the config as YAML with the database password masked
func (r *ConfigRenderer) Render(cfg *config.RuntimeConfig) error {
	if cfg.ConfigSource != "" {
		fmt.Fprintf(r.out, "# loaded from %s\n", getRelativePath(cfg.ConfigSource))
	} else {
		fmt.Fprintln(r.out, "# no govsync.toml found, using defaults and environment")
	}

	masked := MaskConfig(cfg)
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// MaskConfig returns a copy of cfg safe to print
func MaskConfig(cfg *config.RuntimeConfig) *config.RuntimeConfig {
	masked := *cfg
	masked.Signer.PrivateKey = ""
	if u, err := url.Parse(masked.Database.DSN); err == nil && u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			masked.Database.DSN = u.String()
		}
	}
	return &masked
}
