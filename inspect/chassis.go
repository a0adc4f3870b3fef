package inspect

import (
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/siderolabs/go-smbios/smbios"

	"github.com/irmandos/netboot/lib"
)

// ChassisClass is a coarse form-factor classification, used only to pick a
// hostname theme.
type ChassisClass int

const (
	Desktop ChassisClass = iota
	Laptop
	Netbook
	VM
)

func (c ChassisClass) String() string {
	switch c {
	case VM:
		return "vm"
	case Netbook:
		return "netbook"
	case Laptop:
		return "laptop"
	default:
		return "desktop"
	}
}

// chassisFacts is everything the classifier looks at, gathered up front so
// classification itself stays a pure function.
type chassisFacts struct {
	virtDetected bool
	cpuFlags     []string
	manufacturer string
	productName  string
	chassisCode  int
}

// SMBIOS enclosure type codes, per the DMTF spec
var netbookChassisCodes = map[int]bool{
	11: true, // Hand Held
	14: true, // Sub Notebook
	30: true, // Tablet
}

var laptopChassisCodes = map[int]bool{
	8:  true, // Portable
	9:  true, // Laptop
	10: true, // Notebook
	31: true, // Convertible
	32: true, // Detachable
}

// Known embedded boards that report a desktop-ish chassis code
var embeddedBoardModels = []string{
	"Raspberry Pi",
	"ODROID",
	"Atomic Pi",
	"ROCK Pi",
	"BeagleBone",
}

// classifyChassis is an ordered decision table. Rules are evaluated top to
// bottom and the first hit wins:
//
//  1. virtualization detection service reports a VM
//  2. hypervisor CPU flag present (vendor need not be identifiable)
//  3. embedded board model string or small-form-factor chassis code
//  4. laptop-type chassis code
//  5. desktop (default, including unmatched chassis codes)
func classifyChassis(f chassisFacts) ChassisClass {
	rules := []struct {
		match func(chassisFacts) bool
		class ChassisClass
	}{
		{func(f chassisFacts) bool { return f.virtDetected }, VM},
		{func(f chassisFacts) bool { return hasCPUFlag(f.cpuFlags, "hypervisor") }, VM},
		{func(f chassisFacts) bool { return isEmbeddedBoard(f.productName) || netbookChassisCodes[f.chassisCode] }, Netbook},
		{func(f chassisFacts) bool { return laptopChassisCodes[f.chassisCode] }, Laptop},
	}
	for _, r := range rules {
		if r.match(f) {
			return r.class
		}
	}
	return Desktop
}

func hasCPUFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func isEmbeddedBoard(productName string) bool {
	for _, model := range embeddedBoardModels {
		if strings.Contains(productName, model) {
			return true
		}
	}
	return false
}

func gatherChassisFacts(runner lib.Runner) chassisFacts {
	facts := chassisFacts{
		chassisCode: readChassisCode(),
	}

	// systemd-detect-virt exits 0 when running under any virtualization
	if _, err := runner.Run("systemd-detect-virt", "--quiet", "--vm"); err == nil {
		facts.virtDetected = true
	}

	if fs, err := procfs.NewDefaultFS(); err == nil {
		if cpus, err := fs.CPUInfo(); err == nil && len(cpus) > 0 {
			facts.cpuFlags = cpus[0].Flags
		}
	}

	if s, err := smbios.New(); err == nil {
		facts.manufacturer = s.SystemInformation.Manufacturer
		facts.productName = s.SystemInformation.ProductName
	}

	return facts
}

// readChassisCode reads the SMBIOS enclosure type the kernel exports.
// 0 maps to the desktop default downstream.
func readChassisCode() int {
	data, err := os.ReadFile("/sys/class/dmi/id/chassis_type")
	if err != nil {
		return 0
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return code
}
