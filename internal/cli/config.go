package cli

import (
	"github.com/spf13/cobra"

	"github.com/daoservice/govsync/internal/cli/render"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
		Long: `Inspect the configuration resolved from flags, GOVSYNC_* environment
variables, .env files and govsync.toml, in that order of precedence.

When run without subcommands, displays the current config.`,
		Annotations: map[string]string{annotationConfigOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOnly: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	})

	return cmd
}

func showConfig(cmd *cobra.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSON {
		return render.JSON(cmd.OutOrStdout(), render.MaskConfig(cfg))
	}
	return render.NewConfigRenderer(cmd.OutOrStdout()).Render(cfg)
}
