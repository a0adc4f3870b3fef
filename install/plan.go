package install

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/irmandos/netboot/inspect"
	"github.com/irmandos/netboot/lib"
)

// Partition roles within a plan
type Role int

const (
	RoleEFI Role = iota
	RoleBIOSBoot
	RoleSwap
	RoleZFSBoot
	RoleZFSRoot
)

func (r Role) String() string {
	switch r {
	case RoleEFI:
		return "efi"
	case RoleBIOSBoot:
		return "bios-boot"
	case RoleSwap:
		return "swap"
	case RoleZFSBoot:
		return "zfs-boot"
	default:
		return "zfs-root"
	}
}

const (
	sectorSize = 512

	// First usable sector on GPT, and the mirrored table reserved at the end
	gptHeadSectors = 34
	gptTailSectors = 34

	// Partitions are 1 MiB aligned, except the BIOS boot stub which lives in
	// the alignment gap itself
	alignSectors = 2048

	biosStubStart   = 34
	biosStubSectors = 2047

	efiSizeSectors     = 100 * 1024 * 1024 / sectorSize // 100 MiB
	bootPoolSectors    = 2 * sectorsPerGiB              // 2 GiB
	sectorsPerGiB      = 1024 * 1024 * 1024 / sectorSize
	minRootPoolSectors = sectorsPerGiB // refuse a plan whose root pool would be under 1 GiB
)

// sgdisk type codes
const (
	typeEFI      = "EF00"
	typeBIOSBoot = "EF02"
	typeSwap     = "8200"
	typeZFSBoot  = "BE00"
	typeZFSRoot  = "BF00"
)

// PartitionSpec describes one GPT partition to create. SizeSectors of zero
// means the partition consumes the remaining space.
type PartitionSpec struct {
	Index       int
	StartSector uint64
	SizeSectors uint64
	Role        Role
	TypeCode    string
	Label       string
	GUID        uuid.UUID
}

// EndSector returns the first sector after the partition
func (p PartitionSpec) EndSector() uint64 {
	return p.StartSector + p.SizeSectors
}

// PartitionPlan is the ordered partition layout for a target disk,
// built once, consumed once by the executor, then discarded.
type PartitionPlan struct {
	Disk            string // stable by-id alias when one exists
	CapacitySectors uint64
	Partitions      []PartitionSpec
}

// Find returns the partition with the given role, or nil
func (p PartitionPlan) Find(role Role) *PartitionSpec {
	for i := range p.Partitions {
		if p.Partitions[i].Role == role {
			return &p.Partitions[i]
		}
	}
	return nil
}

// DevicePath returns the partition device path for a spec in this plan
func (p PartitionPlan) DevicePath(spec PartitionSpec) string {
	return lib.PartitionPath(p.Disk, spec.Index)
}

// BuildPlan maps a host profile and disk capacity to a partition layout.
//
// Two mutually exclusive branches, evaluated in order:
//
//  1. BIOS firmware and no hibernation: the whole disk becomes one ZFS pool.
//     Only the tiny BIOS-boot stub is carved out of the alignment gap ahead
//     of the pool, and no separate boot pool exists.
//  2. Everything else: EFI stub (100 MiB) or BIOS-boot stub first, then an
//     optional swap partition when hibernation is requested (a pool cannot
//     back a resume image, so hibernation forces conventional swap), then a
//     fixed 2 GiB boot-pool partition, then the root pool on the remainder.
func BuildPlan(profile inspect.HostProfile, disk string, capacityBytes uint64) (PartitionPlan, error) {
	plan := PartitionPlan{
		Disk:            lib.ResolveByID(disk),
		CapacitySectors: capacityBytes / sectorSize,
	}

	if profile.Firmware == inspect.BIOS && !profile.HibernationRequested {
		plan.Partitions = []PartitionSpec{
			newPart(1, biosStubStart, biosStubSectors, RoleBIOSBoot, typeBIOSBoot, "grub"),
			newPart(2, 2*alignSectors, 0, RoleZFSRoot, typeZFSRoot, "rpool"),
		}
		return fitRemainder(plan, disk, capacityBytes)
	}

	var parts []PartitionSpec
	next := uint64(alignSectors)
	index := 1

	if profile.Firmware == inspect.EFI {
		parts = append(parts, newPart(index, next, efiSizeSectors, RoleEFI, typeEFI, "EFI"))
		next += efiSizeSectors
		index++
	} else {
		parts = append(parts, newPart(index, biosStubStart, biosStubSectors, RoleBIOSBoot, typeBIOSBoot, "grub"))
		next = 2 * alignSectors
		index++
	}

	if swapGiB := swapSizeGiB(profile); swapGiB > 0 {
		parts = append(parts, newPart(index, next, uint64(swapGiB)*sectorsPerGiB, RoleSwap, typeSwap, "swap"))
		next += uint64(swapGiB) * sectorsPerGiB
		index++
	}

	parts = append(parts, newPart(index, next, bootPoolSectors, RoleZFSBoot, typeZFSBoot, "bpool"))
	next += bootPoolSectors
	index++

	parts = append(parts, newPart(index, next, 0, RoleZFSRoot, typeZFSRoot, "rpool"))
	plan.Partitions = parts

	return fitRemainder(plan, disk, capacityBytes)
}

func newPart(index int, start, size uint64, role Role, typeCode, label string) PartitionSpec {
	return PartitionSpec{
		Index:       index,
		StartSector: start,
		SizeSectors: size,
		Role:        role,
		TypeCode:    typeCode,
		Label:       label,
		GUID:        uuid.New(),
	}
}

// fitRemainder sizes the trailing ZFS-root partition and validates that the
// fixed regions actually fit on the disk.
func fitRemainder(plan PartitionPlan, disk string, capacityBytes uint64) (PartitionPlan, error) {
	root := &plan.Partitions[len(plan.Partitions)-1]
	if root.Role != RoleZFSRoot {
		return plan, fmt.Errorf("internal: plan must end with the zfs-root partition")
	}

	usable := int64(plan.CapacitySectors) - int64(gptTailSectors) - int64(root.StartSector)
	if usable < minRootPoolSectors {
		needed := (root.StartSector + minRootPoolSectors + gptTailSectors) * sectorSize
		return plan, &InsufficientSpaceError{
			Disk:          disk,
			NeededBytes:   needed,
			CapacityBytes: capacityBytes,
		}
	}
	root.SizeSectors = uint64(usable)

	return plan, nil
}

// swapSizeGiB returns the effective swap size: the configured size capped by
// a memory-derived default, zero when hibernation is off.
func swapSizeGiB(profile inspect.HostProfile) uint32 {
	if !profile.HibernationRequested || profile.SwapRequestedGiB == 0 {
		return 0
	}
	const gib = uint64(1024 * 1024 * 1024)
	ramDefault := uint32((profile.MemoryBytes + gib - 1) / gib)
	if ramDefault == 0 {
		ramDefault = 1
	}
	if profile.SwapRequestedGiB < ramDefault {
		return profile.SwapRequestedGiB
	}
	return ramDefault
}
