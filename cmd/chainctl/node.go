package main

import (
	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/controller"
	"github.com/koinos-go/chain/internal/dispatch"
	"github.com/koinos-go/chain/internal/genesis"
	"github.com/koinos-go/chain/internal/mempool"
	"github.com/koinos-go/chain/internal/statedb"
	"github.com/koinos-go/chain/internal/thunks"
	"github.com/koinos-go/chain/internal/vmadapter"
	"github.com/koinos-go/chain/pkg/config"
)

// openController loads the node's configuration and opens its backend
// directly, rebuilding the controller exactly as chaind's own startup
// path does, so that chainctl observes the same state a running
// chaind instance would. Operators are expected to run chainctl
// against a stopped node to avoid two writers over one bbolt file.
func openController() (*controller.Controller, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	backend, err := statedb.OpenBolt(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	chainID, err := genesis.ChainIDFromBackend(backend)
	if err != nil {
		return nil, err
	}
	forks, tree, err := genesis.Reopen(backend, chainID)
	if err != nil {
		return nil, err
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
	ctrl.SetMempool(mempool.New())
	return ctrl, nil
}
