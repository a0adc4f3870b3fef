package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/irmandos/netboot/hostname"
	"github.com/irmandos/netboot/lib"
)

// Step03Bootstrap installs the base system into the mounted root and writes
// the derived configuration: hostname, hosts, network plan, locale, timezone,
// and SSH policy.
type Step03Bootstrap struct{}

func (s *Step03Bootstrap) Name() string { return "Bootstrap Base System" }

func (s *Step03Bootstrap) RunClean(ctx context.Context, e *Executor) error {
	st := e.State

	args := []string{"--arch=" + st.Arch}
	if st.Include != "" {
		args = append(args, "--include="+st.Include)
	}
	if st.Exclude != "" {
		args = append(args, "--exclude="+st.Exclude)
	}
	if st.Components != "" {
		args = append(args, "--components="+st.Components)
	}
	args = append(args, st.Release, st.Target, st.Mirror)

	if _, err := e.Runner.RunContext(ctx, "debootstrap", args...); err != nil {
		return toolErr("debootstrap", err)
	}

	return s.writeConfiguration(e)
}

func (s *Step03Bootstrap) writeConfiguration(e *Executor) error {
	st := e.State

	if err := hostname.Apply(st.Target, st.Record); err != nil {
		return err
	}

	if err := s.writeNetplan(st); err != nil {
		return err
	}

	if err := writeEtcFile(st.Target, "default/locale", "LANG="+st.Locale+"\n"); err != nil {
		return err
	}
	if err := writeEtcFile(st.Target, "locale.gen", st.Locale+" UTF-8\n"); err != nil {
		return err
	}

	if err := s.writeTimezone(st); err != nil {
		return err
	}

	sshPolicy := "PermitRootLogin " + st.PermitRootLogin + "\n"
	if err := writeEtcFile(st.Target, "ssh/sshd_config.d/50-netboot.conf", sshPolicy); err != nil {
		return err
	}

	if err := s.writeFstab(st); err != nil {
		return err
	}

	return s.copyPoolCache(st)
}

type netplanEthernet struct {
	DHCP4 bool `yaml:"dhcp4"`
}

type netplanConfig struct {
	Network struct {
		Version   int                        `yaml:"version"`
		Ethernets map[string]netplanEthernet `yaml:"ethernets"`
	} `yaml:"network"`
}

func (s *Step03Bootstrap) writeNetplan(st *State) error {
	iface := st.Profile.PrimaryInterface
	if iface == "" {
		iface = "eth0"
	}

	var cfg netplanConfig
	cfg.Network.Version = 2
	cfg.Network.Ethernets = map[string]netplanEthernet{
		iface: {DHCP4: true},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("rendering netplan: %w", err)
	}
	return writeEtcFile(st.Target, "netplan/01-netcfg.yaml", string(data))
}

func (s *Step03Bootstrap) writeTimezone(st *State) error {
	if err := writeEtcFile(st.Target, "timezone", st.Timezone+"\n"); err != nil {
		return err
	}

	link := filepath.Join(st.Target, "etc/localtime")
	_ = os.Remove(link)
	if err := os.Symlink("/usr/share/zoneinfo/"+st.Timezone, link); err != nil {
		return fmt.Errorf("linking localtime: %w", err)
	}
	return nil
}

// writeFstab covers the partitions the pools do not manage: the EFI stub and
// conventional swap. ZFS datasets mount themselves.
func (s *Step03Bootstrap) writeFstab(st *State) error {
	var b strings.Builder
	b.WriteString("# /etc/fstab: ZFS datasets are mounted by the zfs services.\n")

	if efi := st.Plan.Find(RoleEFI); efi != nil {
		fmt.Fprintf(&b, "PARTUUID=%s /boot/efi vfat defaults 0 1\n", strings.ToLower(efi.GUID.String()))
	}
	if swap := st.Plan.Find(RoleSwap); swap != nil {
		fmt.Fprintf(&b, "PARTUUID=%s none swap sw 0 0\n", strings.ToLower(swap.GUID.String()))
	}

	return writeEtcFile(st.Target, "fstab", b.String())
}

// copyPoolCache carries the live pool cache into the new root so the first
// boot imports the pools without a device scan.
func (s *Step03Bootstrap) copyPoolCache(st *State) error {
	data, err := os.ReadFile(poolCacheFile)
	if err != nil {
		lib.PrintWarning(fmt.Sprintf("no pool cache at %s, first boot will scan devices", poolCacheFile))
		return nil
	}
	return writeEtcFile(st.Target, "zfs/zpool.cache", string(data))
}

func writeEtcFile(target, relPath, content string) error {
	path := filepath.Join(target, "etc", relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	return nil
}
