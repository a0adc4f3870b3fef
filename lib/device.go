package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

const diskByIDDir = "/dev/disk/by-id"

// PartitionPath builds the partition path for a device, using the
// "-partN" convention for by-id aliases and the kernel convention otherwise.
func PartitionPath(device string, partNum int) string {
	if strings.HasPrefix(device, diskByIDDir+"/") {
		return fmt.Sprintf("%s-part%d", device, partNum)
	}
	base := filepath.Base(device)
	if strings.Contains(base, "nvme") || strings.Contains(base, "mmcblk") {
		return fmt.Sprintf("%sp%d", device, partNum)
	}
	return fmt.Sprintf("%s%d", device, partNum)
}

// IsBlockDevice reports whether path refers to a block device node
func IsBlockDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFBLK
}

// ResolveByID returns the stable /dev/disk/by-id alias for a device node.
// Pool creation embeds the device path, and transient names like /dev/sda can
// be reassigned across reboots, so the alias is preferred whenever one exists.
// If no alias is found the original path is returned.
func ResolveByID(device string) string {
	if strings.HasPrefix(device, diskByIDDir+"/") {
		return device
	}
	target, err := filepath.EvalSymlinks(device)
	if err != nil {
		return device
	}
	entries, err := os.ReadDir(diskByIDDir)
	if err != nil {
		return device
	}
	for _, e := range entries {
		name := e.Name()
		// wwn-* aliases also exist but name-based aliases read better in
		// zpool status output
		if strings.HasPrefix(name, "wwn-") {
			continue
		}
		alias := filepath.Join(diskByIDDir, name)
		resolved, err := filepath.EvalSymlinks(alias)
		if err != nil {
			continue
		}
		if resolved == target {
			return alias
		}
	}
	// Fall back to wwn aliases before giving up
	for _, e := range entries {
		alias := filepath.Join(diskByIDDir, e.Name())
		resolved, err := filepath.EvalSymlinks(alias)
		if err != nil {
			continue
		}
		if resolved == target {
			return alias
		}
	}
	return device
}

// MountedSources returns the set of source devices currently mounted,
// resolved through symlinks to their canonical node paths.
func MountedSources() (map[string]bool, error) {
	mounts, err := procfs.GetMounts()
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	sources := make(map[string]bool)
	for _, m := range mounts {
		src := m.Source
		if !strings.HasPrefix(src, "/dev/") {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(src); err == nil {
			src = resolved
		}
		sources[src] = true
	}
	return sources, nil
}

// DiskSizeBytes returns the capacity of a block device in bytes
func DiskSizeBytes(device string) (uint64, error) {
	f, err := os.Open(device)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("BLKGETSIZE64 on %s: %w", device, err)
	}
	return uint64(size), nil
}
