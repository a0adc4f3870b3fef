package boot

import (
	"testing"

	"github.com/siderolabs/go-procfs/procfs"
	"github.com/stretchr/testify/assert"
)

func TestParamsFrom(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		want    Params
	}{
		{
			name:    "both keys",
			cmdline: "ro quiet netboot.image=http://boot.local/ubuntu.img netboot.script=http://boot.local/post.sh",
			want: Params{
				ImageURL:  "http://boot.local/ubuntu.img",
				ScriptURL: "http://boot.local/post.sh",
			},
		},
		{
			name:    "image only",
			cmdline: "netboot.image=http://boot.local/ubuntu.img",
			want:    Params{ImageURL: "http://boot.local/ubuntu.img"},
		},
		{
			name:    "script only",
			cmdline: "root=/dev/sda1 netboot.script=http://boot.local/post.sh",
			want:    Params{ScriptURL: "http://boot.local/post.sh"},
		},
		{
			name:    "no netboot keys",
			cmdline: "ro quiet splash root=/dev/sda1",
			want:    Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paramsFrom(procfs.NewCmdline(tt.cmdline))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamsEmpty(t *testing.T) {
	assert.True(t, Params{}.Empty())
	assert.False(t, Params{ImageURL: "http://x"}.Empty())
	assert.False(t, Params{ScriptURL: "http://x"}.Empty())
}

func TestFetchRejectsEmptyParams(t *testing.T) {
	err := Fetch(Params{}, t.TempDir())
	assert.Error(t, err)
}
