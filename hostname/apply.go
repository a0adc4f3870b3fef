package hostname

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Apply writes the derived record into root's etc/hostname and etc/hosts.
// A missing hosts file is treated as empty; unknown entries in an existing
// one survive the rewrite.
func Apply(root string, rec Record) error {
	etc := filepath.Join(root, "etc")
	if err := os.MkdirAll(etc, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", etc, err)
	}

	if err := os.WriteFile(filepath.Join(etc, "hostname"), []byte(rec.ShortName+"\n"), 0644); err != nil {
		return fmt.Errorf("writing hostname: %w", err)
	}

	hostsPath := filepath.Join(etc, "hosts")
	var existing []string
	if data, err := os.ReadFile(hostsPath); err == nil {
		existing = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading hosts: %w", err)
	}

	merged := Reconcile(existing, rec)
	if err := os.WriteFile(hostsPath, []byte(strings.Join(merged, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("writing hosts: %w", err)
	}
	return nil
}
