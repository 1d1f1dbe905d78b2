package adapters

import (
	"github.com/google/wire"

	"github.com/daoservice/govsync/internal/adapters/blockchain"
	"github.com/daoservice/govsync/internal/adapters/calldata"
	"github.com/daoservice/govsync/internal/adapters/events"
	"github.com/daoservice/govsync/internal/adapters/interactive"
	"github.com/daoservice/govsync/internal/adapters/metrics"
	"github.com/daoservice/govsync/internal/adapters/progress"
	"github.com/daoservice/govsync/internal/adapters/repository/proposals"
	"github.com/daoservice/govsync/internal/usecase"
)

// StorageSet provides the proposal cache
var StorageSet = wire.NewSet(
	proposals.ProvideStore,
	wire.Bind(new(usecase.ProposalRepository), new(*proposals.Store)),
)

// BlockchainSet provides governor reads and signed writes
var BlockchainSet = wire.NewSet(
	blockchain.ProvideClient,
	blockchain.NewSigner,

	blockchain.NewGovernorReader,
	wire.Bind(new(usecase.LedgerReader), new(*blockchain.GovernorReader)),

	blockchain.NewGovernorWriter,
	wire.Bind(new(usecase.LedgerWriter), new(*blockchain.GovernorWriter)),
)

// CalldataSet provides the transfer codec
var CalldataSet = wire.NewSet(
	calldata.NewCodec,
	wire.Bind(new(usecase.CalldataCodec), new(*calldata.Codec)),
)

// EventsSet provides the state change publisher
var EventsSet = wire.NewSet(
	events.ProvidePublisher,
)

// MetricsSet provides prometheus collectors and the /metrics server
var MetricsSet = wire.NewSet(
	metrics.ProvideRegistry,
	metrics.ProvideCollector,
	metrics.ProvideServer,
	wire.Bind(new(usecase.Metrics), new(*metrics.Collector)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.DAOSelector), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.Confirmer), new(*interactive.SelectorAdapter)),
)

// ProgressSet provides the spinner or a silent sink
var ProgressSet = wire.NewSet(
	progress.ProvideProgressSink,
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	StorageSet,
	BlockchainSet,
	CalldataSet,
	EventsSet,
	MetricsSet,
	InteractiveSet,
	ProgressSet,
)
