package hostname

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyWritesBothFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc/hosts"),
		[]byte("127.0.0.1 localhost\n10.0.0.5 fileserver\n"), 0644))

	rec := Record{ShortName: "kuzco-1122", Domain: "example.com", FQDN: "kuzco-1122.example.com"}
	require.NoError(t, Apply(root, rec))

	name, err := os.ReadFile(filepath.Join(root, "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "kuzco-1122\n", string(name))

	hosts, err := os.ReadFile(filepath.Join(root, "etc/hosts"))
	require.NoError(t, err)
	assert.Contains(t, string(hosts), "127.0.1.1\tkuzco-1122.example.com kuzco-1122")
	assert.Contains(t, string(hosts), "10.0.0.5 fileserver")
}

func TestApplyWithoutExistingHosts(t *testing.T) {
	root := t.TempDir()

	rec := Record{ShortName: "atlas-0042", Domain: "lan", FQDN: "atlas-0042.lan"}
	require.NoError(t, Apply(root, rec))

	hosts, err := os.ReadFile(filepath.Join(root, "etc/hosts"))
	require.NoError(t, err)
	assert.Contains(t, string(hosts), "127.0.0.1\tlocalhost")
	assert.Contains(t, string(hosts), "127.0.1.1\tatlas-0042.lan atlas-0042")
}
