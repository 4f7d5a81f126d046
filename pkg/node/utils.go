package node

import (
	"net"
	"strings"
)

const defaultPort = "8080"

// NormalizeHostPort cuts the http:// and https:// prefixes from the input
// address and appends the default port when none is present.
func NormalizeHostPort(addr, defPort string) string {
	if rest, ok := strings.CutPrefix(addr, "http://"); ok {
		addr = rest
	} else if rest, ok := strings.CutPrefix(addr, "https://"); ok {
		addr = rest
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return addr + ":" + defPort
}
