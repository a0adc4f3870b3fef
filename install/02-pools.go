package install

import (
	"context"
	"strings"
)

// Step02Pools creates the pools and the fixed dataset hierarchy
type Step02Pools struct{}

func (s *Step02Pools) Name() string { return "Create Pools and Datasets" }

func (s *Step02Pools) RunClean(ctx context.Context, e *Executor) error {
	topo := e.State.Topology

	for _, pool := range topo.Pools() {
		if _, err := e.Runner.RunContext(ctx, "zpool", zpoolCreateArgs(pool, e.State.Target)...); err != nil {
			return toolErr("zpool create "+pool.Name, err)
		}
	}

	// The root filesystem chain comes first so every later dataset mounts
	// inside the new root. ROOT/ubuntu is canmount=noauto and needs an
	// explicit mount.
	rootChain, rest := splitRootChain(topo.RPool)
	for _, ds := range rootChain {
		if err := s.createDataset(ctx, e, topo.RPool.Name, ds); err != nil {
			return err
		}
	}
	if _, err := e.Runner.RunContext(ctx, "zfs", "mount", topo.RPool.BootFS); err != nil {
		return toolErr("zfs mount", err)
	}

	if topo.BPool != nil {
		for _, ds := range topo.BPool.Datasets {
			if err := s.createDataset(ctx, e, topo.BPool.Name, ds); err != nil {
				return err
			}
		}
	}

	for _, ds := range rest {
		if err := s.createDataset(ctx, e, topo.RPool.Name, ds); err != nil {
			return err
		}
	}

	if _, err := e.Runner.RunContext(ctx, "zpool", "set", "bootfs="+topo.RPool.BootFS, topo.RPool.Name); err != nil {
		return toolErr("zpool set bootfs", err)
	}

	for _, pool := range topo.Pools() {
		if _, err := e.Runner.RunContext(ctx, "zpool", "set", "cachefile="+poolCacheFile, pool.Name); err != nil {
			return toolErr("zpool set cachefile", err)
		}
	}

	return nil
}

const poolCacheFile = "/etc/zfs/zpool.cache"

func (s *Step02Pools) createDataset(ctx context.Context, e *Executor, pool string, ds DatasetSpec) error {
	args := []string{"create"}
	for _, opt := range ds.Options {
		args = append(args, "-o", opt)
	}
	args = append(args, pool+"/"+ds.Name)
	if _, err := e.Runner.RunContext(ctx, "zfs", args...); err != nil {
		return toolErr("zfs create "+pool+"/"+ds.Name, err)
	}
	return nil
}

// splitRootChain separates the datasets leading to the bootable filesystem
// from the rest, preserving order within each group.
func splitRootChain(pool PoolSpec) (chain, rest []DatasetSpec) {
	bootLeaf := strings.TrimPrefix(pool.BootFS, pool.Name+"/")
	for _, ds := range pool.Datasets {
		if ds.Name == bootLeaf || strings.HasPrefix(bootLeaf, ds.Name+"/") {
			chain = append(chain, ds)
		} else {
			rest = append(rest, ds)
		}
	}
	return chain, rest
}

func zpoolCreateArgs(pool PoolSpec, target string) []string {
	args := []string{"create", "-f"}
	if pool.RestrictFeatures {
		args = append(args, "-d")
	}
	for _, opt := range pool.PoolOpts {
		args = append(args, "-o", opt)
	}
	for _, opt := range pool.FsOpts {
		args = append(args, "-O", opt)
	}
	args = append(args, "-R", target, pool.Name, pool.Device)
	return args
}
