package install

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irmandos/netboot/inspect"
)

const (
	gib            = uint64(1024 * 1024 * 1024)
	testDisk       = "/dev/missing-for-tests"
	testCapacity   = 100 * gib
	testMemory8GiB = 8 * gib
)

func testProfile(fw inspect.FirmwareMode, hibernate bool, swapGiB uint32) inspect.HostProfile {
	return inspect.HostProfile{
		Firmware:             fw,
		MemoryBytes:          testMemory8GiB,
		HibernationRequested: hibernate,
		SwapRequestedGiB:     swapGiB,
	}
}

func roles(plan PartitionPlan) []Role {
	var out []Role
	for _, p := range plan.Partitions {
		out = append(out, p.Role)
	}
	return out
}

func TestBuildPlanBIOSFastPath(t *testing.T) {
	plan, err := BuildPlan(testProfile(inspect.BIOS, false, 0), testDisk, testCapacity)
	require.NoError(t, err)

	// Whole disk becomes one pool: nothing beyond the bios-boot stub
	require.Equal(t, []Role{RoleBIOSBoot, RoleZFSRoot}, roles(plan))
	assert.EqualValues(t, biosStubSectors, plan.Partitions[0].SizeSectors)
	assert.Nil(t, plan.Find(RoleZFSBoot))
	assert.Nil(t, plan.Find(RoleEFI))
	assert.Nil(t, plan.Find(RoleSwap))

	topo := BuildTopology(plan)
	assert.Nil(t, topo.BPool, "fast path must not create a boot pool")
	assert.Equal(t, "rpool/ROOT/ubuntu", topo.RPool.BootFS)
}

func TestBuildPlanEFIHibernation(t *testing.T) {
	plan, err := BuildPlan(testProfile(inspect.EFI, true, 4), testDisk, testCapacity)
	require.NoError(t, err)

	require.Equal(t, []Role{RoleEFI, RoleSwap, RoleZFSBoot, RoleZFSRoot}, roles(plan))

	assert.EqualValues(t, 100*1024*1024/sectorSize, plan.Partitions[0].SizeSectors, "EFI stub is 100 MiB")
	assert.EqualValues(t, 4*gib/sectorSize, plan.Partitions[1].SizeSectors, "swap is 4 GiB")
	assert.EqualValues(t, 2*gib/sectorSize, plan.Partitions[2].SizeSectors, "boot pool partition is 2 GiB")

	// Root consumes everything left before the mirrored GPT
	root := plan.Find(RoleZFSRoot)
	assert.EqualValues(t, plan.CapacitySectors-gptTailSectors, root.EndSector())

	topo := BuildTopology(plan)
	require.NotNil(t, topo.BPool)
	assert.True(t, topo.BPool.RestrictFeatures, "boot pool must stay GRUB-readable")
}

func TestBuildPlanSwapCappedByMemory(t *testing.T) {
	// 8 GiB of RAM caps a 64 GiB request
	plan, err := BuildPlan(testProfile(inspect.EFI, true, 64), testDisk, testCapacity)
	require.NoError(t, err)

	swap := plan.Find(RoleSwap)
	require.NotNil(t, swap)
	assert.EqualValues(t, 8*gib/sectorSize, swap.SizeSectors)
}

func TestBuildPlanNoSwapWithoutHibernation(t *testing.T) {
	// Swap is requested but hibernation is off: no swap partition
	plan, err := BuildPlan(testProfile(inspect.EFI, false, 8), testDisk, testCapacity)
	require.NoError(t, err)
	assert.Nil(t, plan.Find(RoleSwap))
}

func TestBuildPlanBIOSHibernationUsesMultiPath(t *testing.T) {
	plan, err := BuildPlan(testProfile(inspect.BIOS, true, 4), testDisk, testCapacity)
	require.NoError(t, err)

	require.Equal(t, []Role{RoleBIOSBoot, RoleSwap, RoleZFSBoot, RoleZFSRoot}, roles(plan))

	topo := BuildTopology(plan)
	assert.NotNil(t, topo.BPool, "hibernation forces the multi-pool layout even on BIOS")
}

func TestBuildPlanNeverOverlaps(t *testing.T) {
	for _, fw := range []inspect.FirmwareMode{inspect.BIOS, inspect.EFI} {
		for _, hibernate := range []bool{false, true} {
			for _, swap := range []uint32{0, 4, 64} {
				name := fmt.Sprintf("%s/hibernate=%v/swap=%d", fw, hibernate, swap)
				t.Run(name, func(t *testing.T) {
					plan, err := BuildPlan(testProfile(fw, hibernate, swap), testDisk, testCapacity)
					require.NoError(t, err)
					assertNoOverlap(t, plan)

					root := plan.Partitions[len(plan.Partitions)-1]
					assert.Equal(t, RoleZFSRoot, root.Role, "zfs-root is always last")
					assert.LessOrEqual(t, root.EndSector(), plan.CapacitySectors-gptTailSectors)

					// Exactly one of the boot stubs
					hasEFI := plan.Find(RoleEFI) != nil
					hasBIOS := plan.Find(RoleBIOSBoot) != nil
					assert.True(t, hasEFI != hasBIOS, "exactly one of EFI/BIOS boot stub")
				})
			}
		}
	}
}

func assertNoOverlap(t *testing.T, plan PartitionPlan) {
	t.Helper()
	parts := append([]PartitionSpec(nil), plan.Partitions...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].StartSector < parts[j].StartSector })
	for i := 1; i < len(parts); i++ {
		assert.LessOrEqual(t, parts[i-1].EndSector(), parts[i].StartSector,
			"partition %d overlaps partition %d", parts[i-1].Index, parts[i].Index)
	}
}

func TestBuildPlanInsufficientSpace(t *testing.T) {
	_, err := BuildPlan(testProfile(inspect.EFI, true, 4), testDisk, 6*gib)
	require.Error(t, err)

	var spaceErr *InsufficientSpaceError
	require.ErrorAs(t, err, &spaceErr)
	assert.Greater(t, spaceErr.NeededBytes, spaceErr.CapacityBytes)
}

func TestDatasetPolicyIsFixed(t *testing.T) {
	// The snapshot/setuid/devices policy never varies with user input
	plan, err := BuildPlan(testProfile(inspect.EFI, true, 4), testDisk, testCapacity)
	require.NoError(t, err)
	topo := BuildTopology(plan)

	byName := map[string]DatasetSpec{}
	for _, ds := range topo.RPool.Datasets {
		byName[ds.Name] = ds
	}

	assert.Contains(t, byName["var/tmp"].Options, "com.sun:auto-snapshot=false")
	assert.Contains(t, byName["var/tmp"].Options, "setuid=off")
	assert.Contains(t, byName["var/cache"].Options, "com.sun:auto-snapshot=false")
	assert.Contains(t, byName["tmp"].Options, "devices=off")
	assert.Contains(t, byName["ROOT/ubuntu"].Options, "canmount=noauto")
}
