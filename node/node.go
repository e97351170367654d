package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dbm "github.com/tendermint/tm-db"

	"github.com/chaincore/chaincore/config"
	"github.com/chaincore/chaincore/internal/blocksync"
	"github.com/chaincore/chaincore/internal/eventbus"
	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/internal/store"
	"github.com/chaincore/chaincore/libs/log"
	"github.com/chaincore/chaincore/libs/service"
	"github.com/chaincore/chaincore/types"
)

// Registration binds a rule set to the blocks it handles.
type Registration struct {
	Rules   processor.RuleSet
	Matcher processor.Matcher
}

// Node is the chain core of a node: the chain store, the block processor and
// the block synchronization reactor, connected through the event bus.
type Node struct {
	service.BaseService
	logger log.Logger

	config  *config.Config
	genesis *types.Block

	store        *store.ChainStore
	eventBus     *eventbus.EventBus
	processor    *processor.Processor
	synchronizer *blocksync.Synchronizer
	reactor      *blocksync.Reactor

	prometheusSrv *http.Server
}

// New assembles a Node over db. Nothing runs until Start is called.
func New(
	cfg *config.Config,
	logger log.Logger,
	db dbm.DB,
	genesis *types.Block,
	network blocksync.Network,
	finality blocksync.FinalityTracker,
	registrations ...Registration,
) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := genesis.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid genesis block: %w", err)
	}
	if len(registrations) == 0 {
		return nil, processor.ErrNoRuleSets
	}

	processorMetrics, syncMetrics := processor.NopMetrics(), blocksync.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		processorMetrics = processor.PrometheusMetrics(cfg.Instrumentation.Namespace)
		syncMetrics = blocksync.PrometheusMetrics(cfg.Instrumentation.Namespace)
	}

	chainStore := store.NewChainStore(db)
	eventBus := eventbus.NewDefault(logger)

	blockProcessor := processor.NewProcessor(cfg.Processor, logger.With("module", "processor"),
		chainStore, eventBus, processor.WithMetrics(processorMetrics))
	for _, r := range registrations {
		if err := blockProcessor.Register(r.Rules, r.Matcher); err != nil {
			return nil, err
		}
	}

	synchronizer, err := blocksync.NewSynchronizer(cfg.Sync, logger.With("module", "blocksync"),
		chainStore, finality, blockProcessor, network, blocksync.WithSyncMetrics(syncMetrics))
	if err != nil {
		return nil, err
	}
	reactor := blocksync.NewReactor(cfg.Sync, logger.With("module", "blocksync"), eventBus, synchronizer)

	n := &Node{
		logger:       logger,
		config:       cfg,
		genesis:      genesis,
		store:        chainStore,
		eventBus:     eventBus,
		processor:    blockProcessor,
		synchronizer: synchronizer,
		reactor:      reactor,
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// OnStart starts the event bus, brings the chain up from genesis and starts
// the synchronization reactor.
func (n *Node) OnStart(ctx context.Context) error {
	if n.config.Instrumentation.Prometheus {
		srv, err := n.startPrometheusServer(n.config.Instrumentation.PrometheusListenAddr)
		if err != nil {
			return err
		}
		n.prometheusSrv = srv
	}

	if err := n.eventBus.Start(ctx); err != nil {
		return err
	}
	if err := n.processor.Init(ctx, n.genesis); err != nil {
		return fmt.Errorf("initializing processor: %w", err)
	}
	return n.reactor.Start(ctx)
}

// OnStop stops the services started by OnStart.
func (n *Node) OnStop() {
	n.logger.Info("stopping node")

	for _, svc := range []interface{ Stop() error }{n.reactor, n.eventBus} {
		if err := svc.Stop(); err != nil &&
			!errors.Is(err, service.ErrAlreadyStopped) &&
			!errors.Is(err, service.ErrNotStarted) {
			n.logger.Error("failed to stop service", "err", err)
		}
	}

	if n.prometheusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.prometheusSrv.Shutdown(ctx); err != nil {
			n.logger.Error("prometheus HTTP server Shutdown", "err", err)
		}
	}
}

// startPrometheusServer serves the collected metrics under /metrics on addr.
func (n *Node) startPrometheusServer(addr string) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for prometheus on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	n.logger.Info("serving metrics", "addr", listener.Addr().String())
	return srv, nil
}

// Store returns the chain store.
func (n *Node) Store() *store.ChainStore { return n.store }

// EventBus returns the event bus.
func (n *Node) EventBus() *eventbus.EventBus { return n.eventBus }

// Processor returns the block processor.
func (n *Node) Processor() *processor.Processor { return n.processor }

// Synchronizer returns the block synchronizer.
func (n *Node) Synchronizer() *blocksync.Synchronizer { return n.synchronizer }
