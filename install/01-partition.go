package install

import (
	"context"
	"fmt"

	"github.com/irmandos/netboot/lib"
)

// Step01Partition wipes the target disk and writes the planned GPT layout.
// This is the point of no return: everything previously on the disk is gone.
type Step01Partition struct{}

func (s *Step01Partition) Name() string { return "Partition Target Disk" }

func (s *Step01Partition) RunClean(ctx context.Context, e *Executor) error {
	disk := e.State.Plan.Disk
	run := e.Runner

	// Destructive phase: wipe signatures, discard blocks, zap the table.
	// blkdiscard is advisory; spinning disks and some VPS volumes reject it.
	if _, err := run.RunContext(ctx, "wipefs", "-a", disk); err != nil {
		return toolErr("wipefs", err)
	}
	if _, err := run.RunContext(ctx, "blkdiscard", "-f", disk); err != nil {
		lib.PrintWarning(fmt.Sprintf("blkdiscard not supported on %s, continuing", disk))
	}
	if _, err := run.RunContext(ctx, "sgdisk", "--zap-all", disk); err != nil {
		return toolErr("sgdisk --zap-all", err)
	}

	// Construction phase: one sgdisk invocation per partition keeps the
	// command log readable and failures attributable.
	for _, p := range e.State.Plan.Partitions {
		end := p.StartSector + p.SizeSectors - 1
		args := []string{
			fmt.Sprintf("-a=%d", alignmentFor(p)),
			fmt.Sprintf("-n=%d:%d:%d", p.Index, p.StartSector, end),
			fmt.Sprintf("-t=%d:%s", p.Index, p.TypeCode),
			fmt.Sprintf("-c=%d:%s", p.Index, p.Label),
			fmt.Sprintf("-u=%d:%s", p.Index, p.GUID),
			disk,
		}
		if _, err := run.RunContext(ctx, "sgdisk", args...); err != nil {
			return toolErr("sgdisk", err)
		}
	}

	// Re-probe and wait for every partition node to materialize
	if _, err := run.RunContext(ctx, "partprobe", disk); err != nil {
		return toolErr("partprobe", err)
	}
	if _, err := run.RunContext(ctx, "udevadm", "settle"); err != nil {
		lib.PrintWarning(fmt.Sprintf("udevadm settle: %v", err))
	}
	for _, p := range e.State.Plan.Partitions {
		if err := e.waitForDevice(e.State.Plan.DevicePath(p)); err != nil {
			return err
		}
	}

	// Format the non-pool partitions now; the pools own the rest
	if efi := e.State.Plan.Find(RoleEFI); efi != nil {
		if _, err := run.RunContext(ctx, "mkfs.vfat", "-F32", "-n", "EFI", e.State.Plan.DevicePath(*efi)); err != nil {
			return toolErr("mkfs.vfat", err)
		}
	}
	if swap := e.State.Plan.Find(RoleSwap); swap != nil {
		if _, err := run.RunContext(ctx, "mkswap", "-L", "swap", e.State.Plan.DevicePath(*swap)); err != nil {
			return toolErr("mkswap", err)
		}
	}

	return nil
}

// alignmentFor returns the sgdisk alignment unit. The BIOS boot stub sits
// inside the 1 MiB alignment gap, so it needs sector alignment.
func alignmentFor(p PartitionSpec) int {
	if p.Role == RoleBIOSBoot {
		return 1
	}
	return alignSectors
}
