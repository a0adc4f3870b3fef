// Package boot implements the netboot client side: it reads the boot
// parameters the PXE loader put on the kernel command line and fetches the
// referenced artifacts before the installer takes over.
package boot

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/siderolabs/go-procfs/procfs"

	"github.com/irmandos/netboot/lib"
)

// Kernel command line keys the PXE loader sets
const (
	KernelParamImage  = "netboot.image"
	KernelParamScript = "netboot.script"
)

// Params holds the artifact URLs found on the kernel command line. Absent
// keys stay empty; the caller decides whether that is fatal.
type Params struct {
	ImageURL  string
	ScriptURL string
}

// Empty reports whether no netboot key was present at all
func (p Params) Empty() bool {
	return p.ImageURL == "" && p.ScriptURL == ""
}

// ReadParams reads the boot parameters from the live kernel command line
func ReadParams() Params {
	return paramsFrom(procfs.ProcCmdline())
}

func paramsFrom(cmdline *procfs.Cmdline) Params {
	var p Params
	if v := cmdline.Get(KernelParamImage).First(); v != nil {
		p.ImageURL = *v
	}
	if v := cmdline.Get(KernelParamScript).First(); v != nil {
		p.ScriptURL = *v
	}
	return p
}

// Fetch downloads the artifacts named by the boot parameters into destDir.
// Each artifact keeps its URL basename. A missing key is a warning, not an
// error; having nothing at all to fetch is an error.
func Fetch(params Params, destDir string) error {
	if params.Empty() {
		return fmt.Errorf("no %s or %s on the kernel command line", KernelParamImage, KernelParamScript)
	}

	for key, url := range map[string]string{
		KernelParamImage:  params.ImageURL,
		KernelParamScript: params.ScriptURL,
	} {
		if url == "" {
			lib.PrintWarning(key + " not set, skipping")
			continue
		}
		dest := filepath.Join(destDir, path.Base(url))
		lib.PrintInfo(fmt.Sprintf("fetching %s -> %s", url, dest))
		if err := lib.DownloadFile(url, dest); err != nil {
			return fmt.Errorf("fetching %s: %w", url, err)
		}
		lib.PrintSuccess("fetched " + dest)
	}

	return nil
}
