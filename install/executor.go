package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/siderolabs/go-retry/retry"

	"github.com/irmandos/netboot/lib"
)

// Phase tracks how far a provisioning run has progressed. A run that dies
// between Partitioned and Exported leaves the target inconsistent; the only
// recovery is a fresh run against a clean target.
type Phase int

const (
	Unprovisioned Phase = iota
	Partitioned
	PoolsCreated
	BaseInstalled
	Configured
	Exported
	Failed
)

func (p Phase) String() string {
	switch p {
	case Partitioned:
		return "partitioned"
	case PoolsCreated:
		return "pools-created"
	case BaseInstalled:
		return "base-installed"
	case Configured:
		return "configured"
	case Exported:
		return "exported"
	case Failed:
		return "failed"
	default:
		return "unprovisioned"
	}
}

// Executor applies a partition plan and pool topology to the target disk.
// Strict single-writer: nothing else may touch the target device or the
// pools while Execute runs.
type Executor struct {
	State  *State
	Runner lib.Runner

	phase Phase

	// Seams for tests; production wiring in NewExecutor
	waitForDevice  func(path string) error
	isBlockDevice  func(path string) bool
	mountedSources func() (map[string]bool, error)
}

// NewExecutor wires an executor against the real host
func NewExecutor(state *State, runner lib.Runner) *Executor {
	return &Executor{
		State:          state,
		Runner:         runner,
		waitForDevice:  waitForDeviceNode,
		isBlockDevice:  lib.IsBlockDevice,
		mountedSources: lib.MountedSources,
	}
}

// Phase returns how far the run has progressed
func (e *Executor) Phase() Phase {
	return e.phase
}

// Steps in execution order
var installSteps = []struct {
	step  installStep
	after Phase
}{
	{&Step01Partition{}, Partitioned},
	{&Step02Pools{}, PoolsCreated},
	{&Step03Bootstrap{}, BaseInstalled},
	{&Step04Chroot{}, Configured},
}

type installStep interface {
	Name() string
	RunClean(ctx context.Context, e *Executor) error
}

// PrintWarnings previews what the run will do, in the spirit of a dry-run.
// Nothing is touched.
func (e *Executor) PrintWarnings() {
	lib.PrintSectionHeader("Provisioning Preview")
	fmt.Printf("Target disk:  %s\n", e.State.Plan.Disk)
	fmt.Printf("Firmware:     %s\n", e.State.Profile.Firmware)
	fmt.Printf("Hostname:     %s\n", e.State.Record.FQDN)
	fmt.Println()
	fmt.Println("Partitions to create:")
	for _, p := range e.State.Plan.Partitions {
		fmt.Printf("  %d: %-9s start=%-10d sectors=%-12d type=%s\n",
			p.Index, p.Role, p.StartSector, p.SizeSectors, p.TypeCode)
	}
	fmt.Println()
	fmt.Println("Pools to create:")
	for _, pool := range e.State.Topology.Pools() {
		fmt.Printf("  %s on %s (%d datasets)\n", pool.Name, pool.Device, len(pool.Datasets))
	}
	fmt.Println()
	lib.PrintWarning("ALL DATA on " + e.State.Plan.Disk + " will be DESTROYED.")
}

// Execute runs the provisioning pipeline. Preconditions are checked before
// any destructive action; once partitioning starts there is no rollback, the
// disk's prior contents are sacrificed. Failures after pool creation still
// attempt a best-effort pool export so the host is not left with half-built
// pools imported.
func (e *Executor) Execute(ctx context.Context) error {
	if err := e.preconditions(); err != nil {
		return err
	}

	for i, entry := range installSteps {
		lib.PrintPhaseHeader(i+1, entry.step.Name())

		if err := entry.step.RunClean(ctx, e); err != nil {
			prior := e.phase
			e.phase = Failed
			if prior >= PoolsCreated || entry.after == PoolsCreated {
				e.exportPoolsBestEffort(ctx)
			}
			return err
		}

		e.phase = entry.after
		lib.PrintSuccess(entry.step.Name() + " complete")
	}

	if err := e.finalize(ctx); err != nil {
		e.phase = Failed
		e.exportPoolsBestEffort(ctx)
		return err
	}
	e.phase = Exported

	if e.State.Reboot {
		lib.PrintInfo("rebooting")
		if _, err := e.Runner.RunContext(ctx, "reboot"); err != nil {
			lib.PrintWarning(fmt.Sprintf("reboot failed: %v", err))
		}
	}

	return nil
}

// preconditions are hard aborts, checked in order before anything destructive
func (e *Executor) preconditions() error {
	disk := e.State.Plan.Disk
	if !e.isBlockDevice(disk) {
		return &DeviceBusyError{Device: disk, Reason: "not a block device"}
	}

	mounted, err := e.mountedSources()
	if err != nil {
		return &DeviceBusyError{Device: disk, Reason: fmt.Sprintf("cannot read mount table: %v", err)}
	}

	candidates := []string{disk}
	for _, p := range e.State.Plan.Partitions {
		candidates = append(candidates, e.State.Plan.DevicePath(p))
	}
	for _, c := range candidates {
		resolved := c
		if r, err := filepath.EvalSymlinks(c); err == nil {
			resolved = r
		}
		if mounted[resolved] {
			return &DeviceBusyError{Device: c, Reason: "currently mounted"}
		}
	}

	return nil
}

// finalize snapshots each created pool and exports them all
func (e *Executor) finalize(ctx context.Context) error {
	lib.PrintSectionHeader("Finalize")

	for _, pool := range e.State.Topology.Pools() {
		if _, err := e.Runner.RunContext(ctx, "zfs", "snapshot", "-r", pool.Name+"@install"); err != nil {
			return toolErr("zfs snapshot", err)
		}
	}

	for _, pool := range e.State.Topology.Pools() {
		if _, err := e.Runner.RunContext(ctx, "zpool", "export", pool.Name); err != nil {
			return toolErr("zpool export", err)
		}
	}

	return nil
}

// exportPoolsBestEffort tries to leave the host without half-built pools
// imported. Its own failures are warnings only and never mask the error that
// got us here.
func (e *Executor) exportPoolsBestEffort(ctx context.Context) {
	lib.PrintWarning("attempting pool export after failure")

	if _, err := e.Runner.RunContext(ctx, "umount", "-R", e.State.Target); err != nil {
		lib.PrintWarning(fmt.Sprintf("unmounting %s: %v", e.State.Target, err))
	}

	pools := e.State.Topology.Pools()
	for i := len(pools) - 1; i >= 0; i-- {
		if _, err := e.Runner.RunContext(ctx, "zpool", "export", "-f", pools[i].Name); err != nil {
			lib.PrintWarning(fmt.Sprintf("exporting %s: %v", pools[i].Name, err))
		}
	}
}

// waitForDeviceNode polls for a partition device node to appear after the
// kernel re-reads the partition table.
func waitForDeviceNode(path string) error {
	err := retry.Constant(10*time.Second, retry.WithUnits(250*time.Millisecond)).Retry(func() error {
		if _, err := os.Stat(path); err != nil {
			return retry.ExpectedError(err)
		}
		return nil
	})
	if err != nil {
		return &VerificationError{What: fmt.Sprintf("device node %s never appeared", path), Err: err}
	}
	return nil
}
