// Package install builds and executes the disk provisioning pipeline:
// partition the target, create the pools, bootstrap the base system, and
// configure it inside a chroot.
package install

import (
	"os"
	"strconv"

	"github.com/irmandos/netboot/hostname"
	"github.com/irmandos/netboot/inspect"
)

// State holds all installation variables shared between steps. The derived
// fields (Profile, Record, Plan, Topology) are computed once and treated as
// immutable afterwards.
type State struct {
	// Target disk and policy
	Disk        string
	Hibernation bool
	SwapGiB     uint32
	Reboot      bool

	// Base system selection
	Release    string
	Mirror     string
	Arch       string
	Components string
	Include    string
	Exclude    string

	// Identity and locale written into the new root
	Domain          string
	Timezone        string
	Locale          string
	PermitRootLogin string

	// Where the new root is assembled
	Target string

	// Derived once at the start of a run
	Profile  inspect.HostProfile
	Record   hostname.Record
	Plan     PartitionPlan
	Topology PoolTopology
}

// NewState creates a State from environment variables with sane defaults.
// Flags may override individual fields afterwards.
func NewState() *State {
	return &State{
		Disk:        os.Getenv("DISK"),
		Hibernation: envBool("HIBERNATE"),
		SwapGiB:     envUint32("SWAP_SIZE", 0),
		Reboot:      envBool("REBOOT"),

		Release:    getEnv("RELEASE", "noble"),
		Mirror:     getEnv("MIRROR", "http://archive.ubuntu.com/ubuntu"),
		Arch:       getEnv("ARCH", "amd64"),
		Components: getEnv("COMPONENTS", "main,universe"),
		Include:    getEnv("INCLUDE", "openssh-server,ca-certificates,curl,netplan.io"),
		Exclude:    os.Getenv("EXCLUDE"),

		Domain:          getEnv("DOMAIN", "local"),
		Timezone:        getEnv("TIMEZONE", "UTC"),
		Locale:          getEnv("LOCALE", "en_US.UTF-8"),
		PermitRootLogin: getEnv("PERMIT_ROOT_LOGIN", "prohibit-password"),

		Target: getEnv("TARGET", "/mnt"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envUint32(key string, defaultValue uint32) uint32 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 32)
	if err != nil {
		return defaultValue
	}
	return uint32(v)
}
