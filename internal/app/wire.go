//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/daoservice/govsync/internal/adapters"
	"github.com/daoservice/govsync/internal/config"
	"github.com/daoservice/govsync/internal/logging"
	"github.com/daoservice/govsync/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper) (*App, func(), error) {
	wire.Build(
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		ProvideTracker,
		usecase.NewRegisterDAO,
		usecase.NewListDAOs,
		usecase.NewResolveDAO,
		usecase.NewListProposals,
		usecase.NewSaveProposal,
		usecase.NewShowProposal,
		usecase.NewReconcileProposals,
		usecase.NewExecuteGovernanceAction,

		// App
		NewApp,
	)
	return nil, nil, nil
}
