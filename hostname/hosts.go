package hostname

import (
	"fmt"
	"strings"
)

// Addresses whose lines this tool owns and regenerates. Lines starting with
// any other address are never touched.
var managedAddresses = map[string]bool{
	"127.0.0.1": true,
	"::1":       true,
	"127.0.1.1": true,
	"ff02::1":   true,
	"ff02::2":   true,
}

const managedHeader = "# Local host entries managed by netboot; edits below this block are preserved."

// Reconcile merges a derived hostname record into existing hosts-file lines.
// The managed block (loopback entries, IPv6 boilerplate, and the single
// 127.0.1.1 line carrying fqdn then shortname) is regenerated from scratch;
// every unrelated line is preserved verbatim, in its original order, after
// the managed block. Reconcile is pure and idempotent.
func Reconcile(existing []string, rec Record) []string {
	out := []string{
		managedHeader,
		"127.0.0.1\tlocalhost",
		"::1\t\tlocalhost ip6-localhost ip6-loopback",
		"ff02::1\t\tip6-allnodes",
		"ff02::2\t\tip6-allrouters",
		fmt.Sprintf("127.0.1.1\t%s %s", rec.FQDN, rec.ShortName),
		"",
	}

	var kept []string
	for _, line := range existing {
		token := firstToken(line)
		if managedAddresses[token] {
			continue
		}
		if strings.TrimSpace(line) == managedHeader {
			continue
		}
		kept = append(kept, line)
	}

	// Blank lines at the head of the remainder were separators for the old
	// managed block, not content.
	for len(kept) > 0 && strings.TrimSpace(kept[0]) == "" {
		kept = kept[1:]
	}

	return append(out, kept...)
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
