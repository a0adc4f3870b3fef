package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/irmandos/netboot/inspect"
	"github.com/irmandos/netboot/lib"
)

// Step04Chroot runs the self-contained configuration script inside the new
// root: kernel, bootloader, and ZFS userspace install plus bootloader setup.
// The script is a single blocking sub-process; if it fails, the outer run
// still exports the pools before surfacing the error.
type Step04Chroot struct{}

func (s *Step04Chroot) Name() string { return "Configure in Chroot" }

const chrootScriptPath = "root/netboot-configure.sh"

func (s *Step04Chroot) RunClean(ctx context.Context, e *Executor) error {
	st := e.State

	if err := s.writeScript(st); err != nil {
		return err
	}

	if err := s.mountBinds(ctx, e); err != nil {
		return err
	}
	// Bind mounts must come down even when the script fails, or the later
	// pool export cannot unmount the root.
	defer s.unmountBinds(ctx, e)

	if efi := st.Plan.Find(RoleEFI); efi != nil {
		espDir := filepath.Join(st.Target, "boot/efi")
		if err := os.MkdirAll(espDir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", espDir, err)
		}
		if _, err := e.Runner.RunContext(ctx, "mount", "-t", "vfat", st.Plan.DevicePath(*efi), espDir); err != nil {
			return toolErr("mount esp", err)
		}
	}

	if _, err := e.Runner.RunContext(ctx, "chroot", st.Target, "/bin/bash", "/"+chrootScriptPath); err != nil {
		return toolErr("chroot configure", err)
	}

	return nil
}

func (s *Step04Chroot) mountBinds(ctx context.Context, e *Executor) error {
	for _, dir := range []string{"dev", "proc", "sys"} {
		src := "/" + dir
		dst := filepath.Join(e.State.Target, dir)
		if _, err := e.Runner.RunContext(ctx, "mount", "--rbind", src, dst); err != nil {
			return toolErr("mount --rbind "+src, err)
		}
		if _, err := e.Runner.RunContext(ctx, "mount", "--make-rslave", dst); err != nil {
			return toolErr("mount --make-rslave "+dst, err)
		}
	}
	return nil
}

func (s *Step04Chroot) unmountBinds(ctx context.Context, e *Executor) {
	for _, dir := range []string{"sys", "proc", "dev"} {
		dst := filepath.Join(e.State.Target, dir)
		if _, err := e.Runner.RunContext(ctx, "umount", "-R", dst); err != nil {
			lib.PrintWarning(fmt.Sprintf("unmounting %s: %v", dst, err))
		}
	}
}

// writeScript renders the configuration script into the new root
func (s *Step04Chroot) writeScript(st *State) error {
	grubTarget := "grub-pc"
	grubInstall := "grub-install " + st.Plan.Disk
	if st.Profile.Firmware == inspect.EFI {
		grubTarget = "grub-efi-amd64 shim-signed"
		grubInstall = "grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=ubuntu --recheck"
	}

	script := fmt.Sprintf(`#!/bin/bash
# Generated by netboot; runs once inside the freshly installed root.
set -euo pipefail

export DEBIAN_FRONTEND=noninteractive

apt-get update
locale-gen %s
dpkg-reconfigure -f noninteractive tzdata

apt-get install --yes linux-generic zfsutils-linux zfs-initramfs
apt-get install --yes %s

update-initramfs -c -k all
update-grub
%s

systemctl enable ssh.service
systemctl enable zfs.target zfs-import-cache zfs-mount zfs-import.target
`, st.Locale, grubTarget, grubInstall)

	path := filepath.Join(st.Target, chrootScriptPath)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("mkdir for configure script: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("writing configure script: %w", err)
	}
	return nil
}
