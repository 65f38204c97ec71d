package nmcli

import (
	"net"
	"strconv"
	"strings"
)

// parseActiveConnection extracts the profile name from terse
// `nmcli -g GENERAL.CONNECTION device show` output.  Disconnected
// devices print nothing or "--".
func parseActiveConnection(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "--" {
			continue
		}
		return line
	}
	return ""
}

// addresses extracts routable IPv4 addresses, without their prefix
// length, from terse `nmcli -g IP4.ADDRESS` output.  Loopback and
// 169.254 link-local addresses are dropped.
func addresses(out string) []string {
	var addrs []string
	for _, line := range strings.Split(out, "\n") {
		addr := strings.TrimSpace(line)
		if i := strings.IndexByte(addr, '/'); i >= 0 {
			addr = addr[:i]
		}
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func firstAddress(out string) string {
	if addrs := addresses(out); len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

func hasUsableAddress(out string) bool {
	return len(addresses(out)) > 0
}

// parseLink pulls the network name and signal strength out of
// `iw dev <iface> link` output.  ok is false when the interface is not
// associated ("Not connected.").
func parseLink(out string) (ssid string, dbm int, ok bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if v, found := strings.CutPrefix(line, "SSID: "); found {
			ssid = v
			ok = true
			continue
		}
		if v, found := strings.CutPrefix(line, "signal: "); found {
			v = strings.TrimSuffix(v, " dBm")
			if n, err := strconv.Atoi(v); err == nil {
				dbm = n
			}
		}
	}
	return ssid, dbm, ok
}

// signalPercent maps a dBm reading onto the 0..100 quality scale most
// tools report, saturating at -50 and -100 dBm.
func signalPercent(dbm int) int {
	q := 2 * (dbm + 100)
	if q > 100 {
		return 100
	}
	if q < 0 {
		return 0
	}
	return q
}

// countStations counts associated clients in `iw dev <iface> station
// dump` output.  Each client opens a block headed by its MAC address.
func countStations(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Station ") {
			n++
		}
	}
	return n
}
