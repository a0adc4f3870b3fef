package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		name   string
		device string
		num    int
		want   string
	}{
		{"sata disk", "/dev/sda", 2, "/dev/sda2"},
		{"virtio disk", "/dev/vda", 1, "/dev/vda1"},
		{"nvme namespace", "/dev/nvme0n1", 3, "/dev/nvme0n1p3"},
		{"mmc card", "/dev/mmcblk0", 1, "/dev/mmcblk0p1"},
		{"by-id alias", "/dev/disk/by-id/ata-Samsung_SSD_870_S5Y1NX0R", 4,
			"/dev/disk/by-id/ata-Samsung_SSD_870_S5Y1NX0R-part4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionPath(tt.device, tt.num))
		})
	}
}

func TestIsBlockDeviceRejectsRegularFile(t *testing.T) {
	assert.False(t, IsBlockDevice("/etc/hostname"))
	assert.False(t, IsBlockDevice("/definitely/not/there"))
}
