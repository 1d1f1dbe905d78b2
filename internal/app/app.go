package app

import (
	"log/slog"

	"github.com/daoservice/govsync/internal/adapters/metrics"
	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	Tracker       *usecase.ProposalTracker
	MetricsServer *metrics.Server

	// Use cases
	RegisterDAO        *usecase.RegisterDAO
	ListDAOs           *usecase.ListDAOs
	ResolveDAO         *usecase.ResolveDAO
	ListProposals      *usecase.ListProposals
	SaveProposal       *usecase.SaveProposal
	ShowProposal       *usecase.ShowProposal
	ReconcileProposals *usecase.ReconcileProposals
	Executor           *usecase.ExecuteGovernanceAction
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	tracker *usecase.ProposalTracker,
	metricsServer *metrics.Server,
	registerDAO *usecase.RegisterDAO,
	listDAOs *usecase.ListDAOs,
	resolveDAO *usecase.ResolveDAO,
	listProposals *usecase.ListProposals,
	saveProposal *usecase.SaveProposal,
	showProposal *usecase.ShowProposal,
	reconcileProposals *usecase.ReconcileProposals,
	executor *usecase.ExecuteGovernanceAction,
) *App {
	return &App{
		Config:             cfg,
		Log:                log,
		Tracker:            tracker,
		MetricsServer:      metricsServer,
		RegisterDAO:        registerDAO,
		ListDAOs:           listDAOs,
		ResolveDAO:         resolveDAO,
		ListProposals:      listProposals,
		SaveProposal:       saveProposal,
		ShowProposal:       showProposal,
		ReconcileProposals: reconcileProposals,
		Executor:           executor,
	}
}

// ProvideTracker creates the proposal tracker and stops it on cleanup
func ProvideTracker(
	reader usecase.LedgerReader,
	repo usecase.ProposalRepository,
	publisher usecase.EventPublisher,
	metrics usecase.Metrics,
	cfg *config.RuntimeConfig,
	log *slog.Logger,
) (*usecase.ProposalTracker, func()) {
	tracker := usecase.NewProposalTracker(reader, repo, publisher, metrics, cfg, log)
	return tracker, func() {
		if err := tracker.Stop(); err != nil {
			log.Warn("tracker stopped with error", "error", err)
		}
	}
}
