// Package node is the main process which handles the lifecycle of the
// runtime services in a relayer process, gracefully shutting everything
// down upon close.
package node

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sidebetlabs/relayer/api"
	"github.com/sidebetlabs/relayer/attestation"
	"github.com/sidebetlabs/relayer/chain"
	"github.com/sidebetlabs/relayer/chainsync"
	"github.com/sidebetlabs/relayer/config"
	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/finalizer"
	"github.com/sidebetlabs/relayer/monitoring/prometheus"
	"github.com/sidebetlabs/relayer/runtime"
	"github.com/sidebetlabs/relayer/scheduler"
)

var log = logrus.WithField("prefix", "node")

// RelayerNode owns every service attached to a running relayer and manages
// their lifecycle as one unit.
type RelayerNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	services *runtime.ServiceRegistry
	store    *db.Store
	gateway  *chain.Gateway
	lock     sync.RWMutex
	stop     chan struct{} // Channel to wait for termination notifications.
}

// New resolves configuration, connects the store and the chain gateway, and
// registers every service of the relayer.
func New(cliCtx *cli.Context) (*RelayerNode, error) {
	level, err := logrus.ParseLevel(cliCtx.String(config.VerbosityFlag.Name))
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)
	logrus.AddHook(prometheus.NewLogrusCollector())

	cfg, err := config.FromCLI(cliCtx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	node := &RelayerNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		services: runtime.NewServiceRegistry(),
		stop:     make(chan struct{}),
	}

	log.WithField("databaseURL", redactURL(cfg.DatabaseURL)).Info("Connecting to store")
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not open store")
	}
	node.store = store

	gateway, err := chain.NewGateway(ctx, cfg.RPCURL, cfg.RelayerPrivateKey, cfg.ChainID, cfg.FactoryAddress, cfg.HasFactory)
	if err != nil {
		cancel()
		if closeErr := store.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Could not close store")
		}
		return nil, errors.Wrap(err, "could not connect chain gateway")
	}
	node.gateway = gateway
	log.WithFields(logrus.Fields{
		"chainId":        cfg.ChainID,
		"relayerAddress": gateway.RelayerAddress().Hex(),
		"hasFactory":     cfg.HasFactory,
	}).Info("Chain gateway connected")

	syncer := chainsync.New(gateway, store, cfg.SyncStaleness)
	attestations := attestation.New(gateway, syncer, store, cfg.MinSignaturesThreshold)
	finalizerSvc := finalizer.New(gateway, store, syncer, cfg.MinSignaturesThreshold, cfg.MaxProposalAge)

	if err := node.services.RegisterService(scheduler.New(ctx, syncer, finalizerSvc, store, scheduler.Intervals{})); err != nil {
		return nil, err
	}
	if err := node.services.RegisterService(api.New(cfg, store, gateway, attestations, syncer)); err != nil {
		return nil, err
	}

	return node, nil
}

// Start every service attached to the node, then block until an interrupt
// arrives.
func (n *RelayerNode) Start() {
	n.lock.Lock()

	log.Info("Starting relayer node")
	n.services.StartAll()

	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic.")
			}
		}
		panic("Panic closing the relayer node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// redactURL strips credentials from a connection string before logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

// Close handles graceful shutdown of the system.
func (n *RelayerNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.services.StopAll()
	n.cancel()
	if err := n.store.Close(); err != nil {
		log.WithError(err).Error("Could not close store")
	}
	n.gateway.Close()
	log.Info("Stopping relayer node")

	close(n.stop)
}
