package main

import (
	"github.com/sirupsen/logrus"

	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/controller"
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/forkdb"
	"github.com/koinos-go/chain/internal/genesis"
	"github.com/koinos-go/chain/internal/mempool"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/statedelta"
	"github.com/koinos-go/chain/internal/thunks"
	"github.com/koinos-go/chain/internal/vmadapter"
	"github.com/koinos-go/chain/pkg/config"
)

// node bundles every component chaind drives, assembled once at
// startup and shared between the debug HTTP surface and (once wired)
// the indexer and RPC listeners.
type node struct {
	backend    statedb.Backend
	controller *controller.Controller
	mempool    *mempool.Mempool
}

// buildNode opens the storage backend, seeds it from the genesis file
// on a fresh database (or rebuilds the fork database root from the
// already-seeded chain id otherwise), and wires the VM, thunk
// registry, controller, and mempool together exactly as a controller
// submission path expects (spec §4.8).
func buildNode(cfg *config.Config, log *logrus.Entry) (*node, error) {
	backend, err := statedb.OpenBolt(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	var (
		forks *forkdb.ForkDB
		tree  *statedelta.Tree
	)
	chainID, err := genesis.ChainIDFromBackend(backend)
	if err != nil {
		log.WithField("genesis_file", cfg.Chain.GenesisFile).Info("seeding fresh chain database from genesis data")
		data, loadErr := genesis.Load(cfg.Chain.GenesisFile)
		if loadErr != nil {
			return nil, loadErr
		}
		f, t, applyErr := data.Apply(backend)
		if applyErr != nil {
			return nil, applyErr
		}
		forks, tree = f, t
	} else {
		f, t, reopenErr := genesis.Reopen(backend, chainID)
		if reopenErr != nil {
			return nil, reopenErr
		}
		forks, tree = f, t
	}

	vm, err := vmadapter.New(cfg.VM.ModuleCacheSize)
	if err != nil {
		return nil, err
	}

	registry := dispatch.NewRegistry()
	thunks.RegisterAll(registry, vm)

	rates := chainctx.Rates{
		DiskPerByte:    cfg.Resources.DiskPerByte,
		NetworkPerByte: cfg.Resources.NetworkPerByte,
		ComputePerTick: cfg.Resources.ComputePerTick,
	}
	quotas := controller.Quotas{
		Disk:    cfg.Resources.DiskQuota,
		Network: cfg.Resources.NetworkQuota,
		Compute: cfg.Resources.ComputeQuota,
	}

	ctrl := controller.New(forks, tree, registry, rates, quotas)
	pool := mempool.New()
	ctrl.SetMempool(pool)

	return &node{backend: backend, controller: ctrl, mempool: pool}, nil
}
