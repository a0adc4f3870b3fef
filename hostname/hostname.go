// Package hostname maps hardware identity to a stable machine name.
//
// The same (chassis class, MAC) pair always produces the same name, so
// re-running the tool on a machine never renames it.
package hostname

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/irmandos/netboot/inspect"
)

// Record is a derived hostname: prefix-macsuffix plus its FQDN
type Record struct {
	ShortName string
	Domain    string
	FQDN      string
}

// Name pools, one theme per chassis class. Order matters: the derived index
// selects a fixed position, so entries must never be reordered or removed.
var namePools = map[inspect.ChassisClass][]string{
	inspect.VM: {
		"specter", "phantom", "wraith", "shade", "banshee", "mirage",
		"echo", "vapor", "wisp", "haze", "shadow", "spook", "poltergeist",
	},
	inspect.Netbook: {
		"gnome", "pixie", "imp", "sprite", "fairy", "brownie", "hobbit",
		"dwarf", "goblin", "leprechaun", "puck", "nymph", "sylph", "elf",
	},
	inspect.Laptop: {
		"aladdin", "ariel", "bambi", "belle", "dumbo", "elsa", "genie",
		"hercules", "jasmine", "kida", "kronk", "kuzco", "mulan", "nemo",
	},
	inspect.Desktop: {
		"atlas", "titan", "goliath", "magnus", "rhino", "kong", "bruno",
		"moose", "bison", "sumo", "mammoth", "tank", "oak", "granite", "boulder",
	},
}

// Derive maps a MAC address and chassis class to a deterministic hostname.
// The pool index comes from the first two decimal digits found in the MAC
// suffix (last two octets as four hex digits). A suffix with no decimal
// digits at all falls back to a time-based seed: the result is still
// well-formed but no longer deterministic. That escape valve is intentional
// and only triggers for all-letter suffixes like ab:cd.
func Derive(mac net.HardwareAddr, class inspect.ChassisClass, domain string) Record {
	suffix := macSuffix(mac)
	digits := decimalDigits(suffix)
	if digits == "" {
		digits = fmt.Sprintf("%d", time.Now().Unix())
	}

	pool := namePools[class]
	if pool == nil {
		pool = namePools[inspect.Desktop]
	}
	index := poolIndex(digits, len(pool))

	short := pool[index] + "-" + suffix
	return Record{
		ShortName: short,
		Domain:    domain,
		FQDN:      short + "." + domain,
	}
}

// macSuffix returns the last two octets as four lowercase hex digits
func macSuffix(mac net.HardwareAddr) string {
	if len(mac) < 2 {
		return "0000"
	}
	return fmt.Sprintf("%02x%02x", mac[len(mac)-2], mac[len(mac)-1])
}

func decimalDigits(s string) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	return string(digits)
}

func poolIndex(digits string, poolSize int) int {
	if len(digits) > 2 {
		digits = digits[:2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n % poolSize
}
