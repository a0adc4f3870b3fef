package inspect

import (
	"net"
	"strings"

	"github.com/vishvananda/netlink"
)

// linkCandidate is the subset of link state the selection logic looks at
type linkCandidate struct {
	name     string
	mac      net.HardwareAddr
	up       bool
	loopback bool
}

// primaryMAC finds the MAC address that identifies this machine.
// Priority: the interface owning the default route, then the first interface
// that is administratively up and not loopback, then the first interface with
// an ethernet-style name. The first match wins.
func primaryMAC() (net.HardwareAddr, string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, "", &ProbeError{What: "network interfaces", Err: err}
	}

	defaultIdx := -1
	if routes, err := netlink.RouteList(nil, netlink.FAMILY_V4); err == nil {
		for _, r := range routes {
			if r.Dst != nil {
				continue
			}
			for i, l := range links {
				if l.Attrs().Index == r.LinkIndex {
					defaultIdx = i
				}
			}
			break
		}
	}

	cands := make([]linkCandidate, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		cands = append(cands, linkCandidate{
			name:     attrs.Name,
			mac:      attrs.HardwareAddr,
			up:       attrs.Flags&net.FlagUp != 0,
			loopback: attrs.Flags&net.FlagLoopback != 0,
		})
	}

	return pickPrimary(defaultIdx, cands)
}

func pickPrimary(defaultIdx int, cands []linkCandidate) (net.HardwareAddr, string, error) {
	if defaultIdx >= 0 && defaultIdx < len(cands) && usableMAC(cands[defaultIdx].mac) {
		return cands[defaultIdx].mac, cands[defaultIdx].name, nil
	}

	for _, c := range cands {
		if c.up && !c.loopback && usableMAC(c.mac) {
			return c.mac, c.name, nil
		}
	}

	for _, c := range cands {
		if ethernetName(c.name) && usableMAC(c.mac) {
			return c.mac, c.name, nil
		}
	}

	return nil, "", &ProbeError{What: "primary MAC address"}
}

func usableMAC(mac net.HardwareAddr) bool {
	return len(mac) == 6
}

func ethernetName(name string) bool {
	return strings.HasPrefix(name, "en") || strings.HasPrefix(name, "eth")
}
