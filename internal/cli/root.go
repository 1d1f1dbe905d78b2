package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daoservice/govsync/internal/app"
	"github.com/daoservice/govsync/internal/config"
	domainconfig "github.com/daoservice/govsync/internal/domain/config"
)

// contextKey is the type for context keys
type contextKey string

const (
	// sessionKey is the context key for the per-invocation session
	sessionKey contextKey = "session"

	// annotationConfigOnly marks commands that need the resolved config but
	// must not open the database or the ledger
	annotationConfigOnly = "govsync/config-only"
)

// session holds what PersistentPreRunE built for one invocation
type session struct {
	app     *app.App
	cfg     *domainconfig.RuntimeConfig
	cleanup func()
}

func (s *session) close() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Execute runs the root command and releases the app afterwards
func Execute(ctx context.Context) error {
	s := &session{}
	defer s.close()
	return NewRootCmd().ExecuteContext(context.WithValue(ctx, sessionKey, s))
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "govsync",
		Short: "DAO governor proposal cache, guard and executor",
		Long: `govsync keeps a local cache of DAO governor proposals in step with the
ledger, decides which governance actions a proposal allows, and submits
propose, delegate, vote, queue and execute transactions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			s, ok := cmd.Context().Value(sessionKey).(*session)
			if !ok {
				// Executed without Execute, e.g. from tests
				s = &session{}
				cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, s))
				cmd.Root().PersistentPostRun = func(*cobra.Command, []string) { s.close() }
			}

			projectRoot, _ := cmd.Flags().GetString("project-root")
			if projectRoot == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				projectRoot = wd
			}

			// Set up viper
			v := config.SetupViper(projectRoot, cmd)

			if cmd.Annotations[annotationConfigOnly] == "true" {
				cfg, err := config.Provider(v)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				s.cfg = cfg
				return nil
			}

			// Initialize app with DI
			appInstance, cleanup, err := app.InitApp(v)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			s.app = appInstance
			s.cfg = appInstance.Config
			s.cleanup = cleanup
			return nil
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug output")
	flags.Bool("non-interactive", false, "Disable interactive prompts")
	flags.Bool("json", false, "Output results as JSON")
	flags.BoolP("yes", "y", false, "Skip confirmation before ledger writes")
	flags.String("project-root", "", "Directory holding govsync.toml and .govsync/ (defaults to the working directory)")
	flags.String("config", "", "Path to govsync.toml")
	flags.String("rpc-url", "", "Ledger RPC endpoint")
	flags.Uint64("chain-id", 0, "Expected chain id (0 asks the node)")
	flags.String("db-driver", "", "Proposal cache driver (sqlite, postgres)")
	flags.String("db-dsn", "", "Proposal cache DSN or sqlite file")
	flags.String("nats-url", "", "Publish state changes to this NATS server")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address while watching")
	flags.Duration("poll-interval", 0, "Reconciliation poll interval")

	// Add command groups
	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "actions",
		Title: "Governance Actions",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	// Main commands
	daoCmd := NewDAOCmd()
	daoCmd.GroupID = "main"
	rootCmd.AddCommand(daoCmd)

	proposalCmd := NewProposalCmd()
	proposalCmd.GroupID = "main"
	rootCmd.AddCommand(proposalCmd)

	// Governance actions
	for _, actionCmd := range []*cobra.Command{
		NewProposeCmd(),
		NewDelegateCmd(),
		NewVoteCmd(),
		NewQueueCmd(),
		NewExecuteCmd(),
	} {
		actionCmd.GroupID = "actions"
		rootCmd.AddCommand(actionCmd)
	}

	// Management commands
	configCmd := NewConfigCmd()
	configCmd.GroupID = "management"
	rootCmd.AddCommand(configCmd)

	// Version command
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	s, ok := cmd.Context().Value(sessionKey).(*session)
	if !ok || s.app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return s.app, nil
}

// getConfig retrieves the resolved config, available to config-only commands
func getConfig(cmd *cobra.Command) (*domainconfig.RuntimeConfig, error) {
	s, ok := cmd.Context().Value(sessionKey).(*session)
	if !ok || s.cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return s.cfg, nil
}
