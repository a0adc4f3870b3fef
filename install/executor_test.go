package install

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irmandos/netboot/hostname"
	"github.com/irmandos/netboot/inspect"
)

// fakeRunner records every invocation and can fail commands by substring
type fakeRunner struct {
	calls  []string
	failOn map[string]error
}

func (r *fakeRunner) Run(name string, args ...string) (string, error) {
	return r.RunContext(context.Background(), name, args...)
}

func (r *fakeRunner) RunContext(_ context.Context, name string, args ...string) (string, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	for substr, err := range r.failOn {
		if strings.Contains(call, substr) {
			return "", err
		}
	}
	return "", nil
}

func (r *fakeRunner) callMatching(substr string) []string {
	var out []string
	for _, c := range r.calls {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

func testExecutor(t *testing.T, fw inspect.FirmwareMode, hibernate bool, swapGiB uint32) (*Executor, *fakeRunner) {
	t.Helper()

	profile := testProfile(fw, hibernate, swapGiB)
	profile.PrimaryMAC, _ = net.ParseMAC("aa:bb:cc:dd:11:22")
	profile.PrimaryInterface = "eth0"

	plan, err := BuildPlan(profile, testDisk, testCapacity)
	require.NoError(t, err)

	state := NewState()
	state.Disk = testDisk
	state.Target = t.TempDir()
	state.Profile = profile
	state.Plan = plan
	state.Topology = BuildTopology(plan)
	state.Record = hostname.Derive(profile.PrimaryMAC, inspect.Laptop, "example.com")

	runner := &fakeRunner{failOn: map[string]error{}}
	e := NewExecutor(state, runner)
	e.waitForDevice = func(string) error { return nil }
	e.isBlockDevice = func(string) bool { return true }
	e.mountedSources = func() (map[string]bool, error) { return map[string]bool{}, nil }

	return e, runner
}

func TestExecuteFullPipeline(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, true, 4)

	require.NoError(t, e.Execute(context.Background()))
	assert.Equal(t, Exported, e.Phase())

	// Destructive phase ran in order before construction
	joined := strings.Join(runner.calls, "\n")
	wipe := strings.Index(joined, "wipefs -a")
	zap := strings.Index(joined, "sgdisk --zap-all")
	create := strings.Index(joined, "zpool create")
	boot := strings.Index(joined, "debootstrap")
	chrootRun := strings.Index(joined, "chroot")
	snapshot := strings.Index(joined, "zfs snapshot")
	export := strings.Index(joined, "zpool export rpool")
	for name, pos := range map[string]int{
		"wipefs": wipe, "zap": zap, "zpool create": create,
		"debootstrap": boot, "chroot": chrootRun, "snapshot": snapshot, "export": export,
	} {
		require.GreaterOrEqual(t, pos, 0, "missing %s invocation", name)
	}
	assert.Less(t, wipe, zap)
	assert.Less(t, zap, create)
	assert.Less(t, create, boot)
	assert.Less(t, boot, chrootRun)
	assert.Less(t, chrootRun, snapshot)
	assert.Less(t, snapshot, export)

	// Both pools created, boot pool with restricted features
	require.Len(t, runner.callMatching("zpool create"), 2)
	bpoolCreate := runner.callMatching("zpool create -f -d")
	require.Len(t, bpoolCreate, 1)
	assert.Contains(t, bpoolCreate[0], "bpool")

	// Root filesystem mounted before the non-root datasets
	mountIdx := strings.Index(joined, "zfs mount rpool/ROOT/ubuntu")
	varIdx := strings.Index(joined, "zfs create rpool/var/log")
	require.GreaterOrEqual(t, mountIdx, 0)
	require.GreaterOrEqual(t, varIdx, 0)
	assert.Less(t, mountIdx, varIdx)

	assert.NotEmpty(t, runner.callMatching("zpool set bootfs=rpool/ROOT/ubuntu rpool"))
}

func TestExecuteWritesDerivedConfiguration(t *testing.T) {
	e, _ := testExecutor(t, inspect.EFI, true, 4)
	require.NoError(t, e.Execute(context.Background()))

	target := e.State.Target

	hostnameFile, err := os.ReadFile(filepath.Join(target, "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "kuzco-1122\n", string(hostnameFile))

	hosts, err := os.ReadFile(filepath.Join(target, "etc/hosts"))
	require.NoError(t, err)
	assert.Contains(t, string(hosts), "127.0.1.1\tkuzco-1122.example.com kuzco-1122")

	netplan, err := os.ReadFile(filepath.Join(target, "etc/netplan/01-netcfg.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(netplan), "dhcp4: true")
	assert.Contains(t, string(netplan), "eth0")

	fstab, err := os.ReadFile(filepath.Join(target, "etc/fstab"))
	require.NoError(t, err)
	assert.Contains(t, string(fstab), "/boot/efi")
	assert.Contains(t, string(fstab), "swap")

	sshPolicy, err := os.ReadFile(filepath.Join(target, "etc/ssh/sshd_config.d/50-netboot.conf"))
	require.NoError(t, err)
	assert.Equal(t, "PermitRootLogin prohibit-password\n", string(sshPolicy))

	script, err := os.ReadFile(filepath.Join(target, chrootScriptPath))
	require.NoError(t, err)
	assert.Contains(t, string(script), "zfsutils-linux")
	assert.Contains(t, string(script), "--target=x86_64-efi")
}

func TestExecuteBIOSFastPathSkipsBootPool(t *testing.T) {
	e, runner := testExecutor(t, inspect.BIOS, false, 0)

	require.NoError(t, e.Execute(context.Background()))
	assert.Equal(t, Exported, e.Phase())

	require.Len(t, runner.callMatching("zpool create"), 1)
	assert.Empty(t, runner.callMatching("bpool"))
	assert.Empty(t, runner.callMatching("mkfs.vfat"))

	script, err := os.ReadFile(filepath.Join(e.State.Target, chrootScriptPath))
	require.NoError(t, err)
	assert.Contains(t, string(script), "grub-install "+e.State.Plan.Disk)
}

func TestExecuteChrootFailureStillExportsPools(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, true, 4)
	bootErr := fmt.Errorf("exit status 1")
	runner.failOn["chroot"] = bootErr

	err := e.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, e.Phase())

	// Original error surfaces, not the cleanup outcome
	var toolFailure *ToolFailureError
	require.ErrorAs(t, err, &toolFailure)
	assert.Equal(t, "chroot configure", toolFailure.Tool)
	assert.ErrorIs(t, err, bootErr)

	// Best-effort export ran for both pools
	assert.NotEmpty(t, runner.callMatching("zpool export -f rpool"))
	assert.NotEmpty(t, runner.callMatching("zpool export -f bpool"))
}

func TestExecuteCleanupFailureDoesNotMaskOriginalError(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, true, 4)
	origErr := fmt.Errorf("debootstrap blew up")
	runner.failOn["debootstrap"] = origErr
	runner.failOn["zpool export"] = fmt.Errorf("pool is busy")

	err := e.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, origErr)
}

func TestExecutePartitioningFailureSkipsPoolCleanup(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, true, 4)
	runner.failOn["wipefs"] = fmt.Errorf("io error")

	err := e.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, e.Phase())
	assert.Empty(t, runner.callMatching("zpool export"), "no pools existed yet")
}

func TestPreconditionRejectsNonBlockDevice(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, false, 0)
	e.isBlockDevice = func(string) bool { return false }

	err := e.Execute(context.Background())
	var busyErr *DeviceBusyError
	require.ErrorAs(t, err, &busyErr)
	assert.Contains(t, busyErr.Reason, "not a block device")
	assert.Empty(t, runner.calls, "nothing may run after a failed precondition")
}

func TestPreconditionRejectsMountedPartition(t *testing.T) {
	e, runner := testExecutor(t, inspect.EFI, false, 0)
	mountedPart := e.State.Plan.DevicePath(e.State.Plan.Partitions[0])
	e.mountedSources = func() (map[string]bool, error) {
		return map[string]bool{mountedPart: true}, nil
	}

	err := e.Execute(context.Background())
	var busyErr *DeviceBusyError
	require.ErrorAs(t, err, &busyErr)
	assert.Contains(t, busyErr.Reason, "mounted")
	assert.Empty(t, runner.calls)
}
