// Package inspect derives an immutable profile of the host being provisioned:
// firmware mode, memory, chassis class, and the primary network identity.
package inspect

import (
	"fmt"
	"net"
	"os"

	"github.com/prometheus/procfs"

	"github.com/irmandos/netboot/lib"
)

// FirmwareMode is how the running system was booted
type FirmwareMode int

const (
	BIOS FirmwareMode = iota
	EFI
)

func (m FirmwareMode) String() string {
	if m == EFI {
		return "uefi"
	}
	return "bios"
}

// HostProfile holds everything the planner and hostname engine need to know
// about this machine. Computed once at startup and never mutated afterwards.
type HostProfile struct {
	Firmware             FirmwareMode
	MemoryBytes          uint64
	HibernationRequested bool
	SwapRequestedGiB     uint32
	Chassis              ChassisClass
	PrimaryMAC           net.HardwareAddr
	PrimaryInterface     string
}

// Policy carries the user-selected knobs that become part of the profile
type Policy struct {
	Hibernation bool
	SwapGiB     uint32
}

// ProbeError means a fact about the host could not be determined and there is
// no safe default to substitute.
type ProbeError struct {
	What string
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot determine %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("cannot determine %s", e.What)
}

func (e *ProbeError) Unwrap() error { return e.Err }

const efiFirmwareDir = "/sys/firmware/efi"

// Inspect probes the running system and returns its profile. It fails with a
// ProbeError when no usable network interface or MAC address can be found.
func Inspect(runner lib.Runner, policy Policy) (HostProfile, error) {
	profile := HostProfile{
		Firmware:             detectFirmware(),
		HibernationRequested: policy.Hibernation,
		SwapRequestedGiB:     policy.SwapGiB,
	}

	mem, err := memoryBytes()
	if err != nil {
		return HostProfile{}, &ProbeError{What: "total memory", Err: err}
	}
	profile.MemoryBytes = mem

	mac, iface, err := primaryMAC()
	if err != nil {
		return HostProfile{}, err
	}
	profile.PrimaryMAC = mac
	profile.PrimaryInterface = iface

	profile.Chassis = classifyChassis(gatherChassisFacts(runner))

	return profile, nil
}

// detectFirmware checks for the EFI runtime directory. Some VPS environments
// create /sys/firmware without the efi subdir, so an empty dir still counts
// as BIOS.
func detectFirmware() FirmwareMode {
	info, err := os.Stat(efiFirmwareDir)
	if err != nil || !info.IsDir() {
		return BIOS
	}
	entries, err := os.ReadDir(efiFirmwareDir)
	if err != nil || len(entries) == 0 {
		return BIOS
	}
	return EFI
}

func memoryBytes() (uint64, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0, err
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.MemTotal == nil {
		return 0, fmt.Errorf("meminfo has no MemTotal")
	}
	return *mi.MemTotal * 1024, nil
}
