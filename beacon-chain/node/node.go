// Package node is the main service which launches a beacon node and manages
// the lifecycle of all its associated services at runtime, gracefully closing
// them if the process ends.
package node

import (
	"context"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-ssz"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zephyrlabs/zephyr/beacon-chain/attestation"
	"github.com/zephyrlabs/zephyr/beacon-chain/blockchain"
	"github.com/zephyrlabs/zephyr/beacon-chain/blockmanager"
	"github.com/zephyrlabs/zephyr/beacon-chain/chaindata"
	"github.com/zephyrlabs/zephyr/beacon-chain/core/transition"
	"github.com/zephyrlabs/zephyr/beacon-chain/db"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/iface"
	"github.com/zephyrlabs/zephyr/beacon-chain/db/kv"
	"github.com/zephyrlabs/zephyr/beacon-chain/eth1data"
	"github.com/zephyrlabs/zephyr/beacon-chain/flags"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/attestations"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/slashings"
	"github.com/zephyrlabs/zephyr/beacon-chain/operations/voluntaryexits"
	"github.com/zephyrlabs/zephyr/beacon-chain/p2p"
	"github.com/zephyrlabs/zephyr/beacon-chain/synctracker"
	types "github.com/zephyrlabs/zephyr/consensus/types"
	"github.com/zephyrlabs/zephyr/shared"
	"github.com/zephyrlabs/zephyr/shared/attestationutil"
	"github.com/zephyrlabs/zephyr/shared/bls"
	"github.com/zephyrlabs/zephyr/shared/interop"
	"github.com/zephyrlabs/zephyr/shared/params"
)

var log = logrus.WithField("prefix", "node")

// BeaconNode handles the lifecycle of the entire system and registers
// services to a service registry.
type BeaconNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	services *shared.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{}
	fatal    chan error
	fatalErr error

	db            iface.Database
	chainData     *chaindata.Service
	eth1Data      *eth1data.Service
	attPool       attestations.Pool
	exitPool      voluntaryexits.PoolManager
	slashingsPool slashings.PoolManager

	peers p2p.PeerCounter
	sync  p2p.SyncChecker
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*BeaconNode, error) {
	if cliCtx.Bool(flags.MinimalConfigFlag.Name) {
		params.UseMinimalConfig()
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	beacon := &BeaconNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		services: shared.NewServiceRegistry(),
		stop:     make(chan struct{}),
		fatal:    make(chan error, 1),
	}

	if err := beacon.startDB(cliCtx); err != nil {
		cancel()
		return nil, err
	}
	// The eth1 data service is built first so the chain-data service can
	// take its genesis trigger channel, but registers after it so start
	// and stop follow storage order.
	eth1Svc, err := eth1data.NewService(ctx, &eth1data.Config{DB: beacon.db})
	if err != nil {
		cancel()
		return nil, err
	}
	beacon.eth1Data = eth1Svc
	if err := beacon.registerChainDataService(cliCtx); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.services.RegisterService(eth1Svc); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.registerOperationPools(); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.registerAttestationManager(); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.registerBlockManager(); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.registerSyncTracker(cliCtx); err != nil {
		cancel()
		return nil, err
	}
	if err := beacon.registerOrchestrator(); err != nil {
		cancel()
		return nil, err
	}
	return beacon, nil
}

// Start launches every registered service and blocks until an interrupt or a
// fatal service error arrives.
func (b *BeaconNode) Start() {
	b.lock.Lock()
	log.Info("Starting beacon node")
	b.services.StartAll()
	stop := b.stop
	b.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		select {
		case <-sigc:
			log.Info("Got interrupt, shutting down...")
		case err := <-b.fatal:
			b.lock.Lock()
			b.fatalErr = err
			b.lock.Unlock()
			log.WithError(err).Error("Fatal service error, shutting down...")
		}
		go b.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the beacon node")
	}()

	<-stop
}

// Close stops every service in reverse registration order and releases the
// database.
func (b *BeaconNode) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	log.Info("Stopping beacon node")
	b.services.StopAll()
	if err := b.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close database")
	}
	b.cancel()
	close(b.stop)
}

// FatalError returns the error that triggered shutdown, if any.
func (b *BeaconNode) FatalError() error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.fatalErr
}

func (b *BeaconNode) startDB(cliCtx *cli.Context) error {
	dbPath := filepath.Join(cliCtx.String(flags.DataDirFlag.Name), "beaconchaindata")
	mode, err := storageMode(cliCtx.String(flags.StorageModeFlag.Name))
	if err != nil {
		return err
	}
	log.WithField("databasePath", dbPath).Info("Checking DB")
	d, err := db.NewDB(dbPath, &kv.Config{Mode: mode})
	if err != nil {
		return err
	}
	if cliCtx.Bool(flags.ClearDB.Name) {
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
	}
	b.db = d
	return nil
}

func storageMode(mode string) (iface.StorageMode, error) {
	switch mode {
	case "archive", "Archive":
		return iface.ModeArchive, nil
	case "prune", "Prune":
		return iface.ModePrune, nil
	default:
		return 0, errors.Errorf("unknown storage mode %q", mode)
	}
}

func (b *BeaconNode) registerChainDataService(cliCtx *cli.Context) error {
	initialState, err := loadInitialState(cliCtx)
	if err != nil {
		return err
	}
	svc := chaindata.NewService(b.ctx, &chaindata.Config{
		DB:             b.db,
		InitialState:   initialState,
		GenesisTrigger: b.eth1Data.GenesisTrigger(),
	})
	b.chainData = svc
	return b.services.RegisterService(svc)
}

// loadInitialState resolves the operator-supplied genesis state, if any:
// either a deterministic interop state or an ssz file.
func loadInitialState(cliCtx *cli.Context) (*types.BeaconState, error) {
	if cliCtx.Bool(flags.InteropMode.Name) {
		genesisTime := cliCtx.Uint64(flags.InteropGenesisTime.Name)
		if genesisTime == 0 {
			genesisTime = uint64(time.Now().Unix())
		}
		numValidators := cliCtx.Uint64(flags.InteropNumValidators.Name)
		if numValidators == 0 {
			return nil, errors.New("interop mode requires --interop-num-validators")
		}
		log.WithFields(logrus.Fields{
			"genesisTime": genesisTime,
			"validators":  numValidators,
		}).Info("Generating interop genesis state")
		return interop.GenerateGenesisState(genesisTime, numValidators)
	}
	if path := cliCtx.String(flags.GenesisStatePath.Name); path != "" {
		data, err := ioutil.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, errors.Wrap(err, "could not read genesis state file")
		}
		state := &types.BeaconState{}
		if err := ssz.Unmarshal(data, state); err != nil {
			return nil, errors.Wrap(err, "could not unmarshal genesis state")
		}
		return state, nil
	}
	return nil, nil
}

func (b *BeaconNode) registerOperationPools() error {
	b.slashingsPool = slashings.NewPool()
	b.exitPool = voluntaryexits.NewPool()

	svc, err := attestations.NewService(b.ctx, &attestations.Config{
		Pool: attestations.NewPool(bls.CombineSignatures),
	})
	if err != nil {
		return err
	}
	b.attPool = svc.Pool()
	return b.services.RegisterService(svc)
}

func (b *BeaconNode) registerAttestationManager() error {
	svc, err := attestation.NewService(b.ctx, &attestation.Config{
		ChainData: b.chainData,
		Pool:      b.attPool,
		Resolver:  attestationutil.AttestingIndices,
	})
	if err != nil {
		return err
	}
	return b.services.RegisterService(svc)
}

func (b *BeaconNode) registerBlockManager() error {
	var attManager *attestation.Service
	if err := b.services.FetchService(&attManager); err != nil {
		return err
	}
	svc, err := blockmanager.NewService(b.ctx, &blockmanager.Config{
		ChainData:    b.chainData,
		Attestations: attManager,
		Transition:   transition.ExecuteStateTransition,
	})
	if err != nil {
		return err
	}
	return b.services.RegisterService(svc)
}

func (b *BeaconNode) registerSyncTracker(cliCtx *cli.Context) error {
	tracker := synctracker.NewTracker(b.ctx, &synctracker.Config{
		Peers:           b.peers,
		Sync:            b.sync,
		TargetPeerCount: cliCtx.Int(flags.StartupTargetPeers.Name),
		StartupTimeout:  time.Duration(cliCtx.Int(flags.StartupTimeout.Name)) * time.Second,
	})
	return b.services.RegisterService(tracker)
}

func (b *BeaconNode) registerOrchestrator() error {
	var attManager *attestation.Service
	if err := b.services.FetchService(&attManager); err != nil {
		return err
	}
	var blockManager *blockmanager.Service
	if err := b.services.FetchService(&blockManager); err != nil {
		return err
	}
	var attSvc *attestations.Service
	if err := b.services.FetchService(&attSvc); err != nil {
		return err
	}
	svc := blockchain.NewService(b.ctx, &blockchain.Config{
		ChainData:     b.chainData,
		AttManager:    attManager,
		BlockManager:  blockManager,
		AttPool:       attSvc,
		SlashingsPool: b.slashingsPool,
		ExitPool:      b.exitPool,
		Peers:         b.peers,
		Sync:          b.sync,
		Fatal:         b.fatal,
	})
	return b.services.RegisterService(svc)
}
