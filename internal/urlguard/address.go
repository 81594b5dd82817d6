package urlguard

import (
	"encoding/binary"
	"net"
	"net/netip"
	"strings"
)

// ipv4Range is a closed [start, end] interval of IPv4 addresses.
type ipv4Range struct {
	start uint32
	end   uint32
	name  string
}

// blockedIPv4 holds every IPv4 range that must never be an outbound
// destination. The metadata singleton is listed ahead of link-local so it
// is reported under its own name.
var blockedIPv4 = func() []ipv4Range {
	cidrs := []struct{ cidr, name string }{
		{"169.254.169.254/32", "cloud metadata"},
		{"0.0.0.0/8", "this network (RFC 1122)"},
		{"10.0.0.0/8", "private-use (RFC 1918)"},
		{"100.64.0.0/10", "carrier-grade NAT (RFC 6598)"},
		{"127.0.0.0/8", "loopback (RFC 1122)"},
		{"169.254.0.0/16", "link-local (RFC 3927)"},
		{"172.16.0.0/12", "private-use (RFC 1918)"},
		{"192.0.0.0/24", "IETF protocol assignments (RFC 6890)"},
		{"192.0.2.0/24", "TEST-NET-1 (RFC 5737)"},
		{"192.168.0.0/16", "private-use (RFC 1918)"},
		{"198.18.0.0/15", "benchmarking (RFC 2544)"},
		{"198.51.100.0/24", "TEST-NET-2 (RFC 5737)"},
		{"203.0.113.0/24", "TEST-NET-3 (RFC 5737)"},
		{"224.0.0.0/4", "multicast (RFC 5771)"},
		{"240.0.0.0/4", "reserved (RFC 1112)"},
	}
	ranges := make([]ipv4Range, 0, len(cidrs))
	for _, c := range cidrs {
		p := netip.MustParsePrefix(c.cidr)
		start := ipv4ToUint32(p.Masked().Addr())
		end := start | (uint32(1)<<(32-p.Bits()) - 1)
		ranges = append(ranges, ipv4Range{start: start, end: end, name: c.name})
	}
	return ranges
}()

type ipv6Block struct {
	prefix netip.Prefix
	name   string
}

// blockedIPv6 is tested by prefix containment. IPv4-mapped addresses never
// reach this table; they are unmapped and checked against blockedIPv4.
var blockedIPv6 = []ipv6Block{
	{netip.MustParsePrefix("::1/128"), "IPv6 loopback"},
	{netip.MustParsePrefix("::/128"), "IPv6 unspecified"},
	{netip.MustParsePrefix("::/96"), "IPv4-compatible (deprecated)"},
	{netip.MustParsePrefix("fe80::/10"), "IPv6 link-local (RFC 4291)"},
	{netip.MustParsePrefix("fc00::/7"), "IPv6 unique local (RFC 4193)"},
	{netip.MustParsePrefix("ff00::/8"), "IPv6 multicast (RFC 4291)"},
	{netip.MustParsePrefix("2001:db8::/32"), "IPv6 documentation (RFC 3849)"},
	{netip.MustParsePrefix("2001::/32"), "Teredo (RFC 4380)"},
	{netip.MustParsePrefix("2002::/16"), "6to4 (RFC 3056)"},
	{netip.MustParsePrefix("64:ff9b::/96"), "NAT64 (RFC 6052)"},
}

func ipv4ToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func matchIPv4(u uint32) (string, bool) {
	for _, r := range blockedIPv4 {
		if u >= r.start && u <= r.end {
			return r.name, true
		}
	}
	return "", false
}

// MatchAddr reports whether addr is blocked and, if so, the name of the
// range it falls in. Invalid and zoned addresses are blocked.
func MatchAddr(addr netip.Addr) (string, bool) {
	if !addr.IsValid() {
		return "invalid address", true
	}
	if addr.Is4() {
		return matchIPv4(ipv4ToUint32(addr))
	}
	if addr.Zone() != "" {
		return "zoned IPv6 address", true
	}
	if addr.Is4In6() {
		return matchIPv4(ipv4ToUint32(addr.Unmap()))
	}
	for _, b := range blockedIPv6 {
		if b.prefix.Contains(addr) {
			return b.name, true
		}
	}
	return "", false
}

// IsBlockedAddr reports whether addr must not be contacted.
func IsBlockedAddr(addr netip.Addr) bool {
	_, blocked := MatchAddr(addr)
	return blocked
}

// IsBlockedIPv4 reports whether the dotted-quad ip is in a blocked range.
// Anything that is not a strict dotted quad is blocked.
func IsBlockedIPv4(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return true
	}
	return IsBlockedAddr(addr)
}

// IsBlockedIPv6 reports whether the IPv6 literal ip (brackets optional) is
// in a blocked range. Unparsable input is blocked.
func IsBlockedIPv6(ip string) bool {
	ip = strings.TrimSuffix(strings.TrimPrefix(ip, "["), "]")
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is6() {
		return true
	}
	return IsBlockedAddr(addr)
}

// addrFromIP converts a resolver answer. Unconvertible answers come back
// invalid, which MatchAddr treats as blocked.
func addrFromIP(ip net.IPAddr) netip.Addr {
	addr, ok := netip.AddrFromSlice(ip.IP)
	if !ok {
		return netip.Addr{}
	}
	return addr.WithZone(ip.Zone)
}

// LooksLikeAlternativeIP detects hex (0xA9FEA9FE), dot-separated hex
// (0x7f.0x00.0x00.0x01), octal (0177.0.0.1), packed decimal (2130706433)
// and short-form (127.1) hosts. URL parsers in browsers and renderers treat
// a host whose last label is numeric as an IPv4 address in one of these
// forms, so anything numeric that is not a canonical dotted quad is suspect.
func LooksLikeAlternativeIP(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	labels := strings.Split(host, ".")
	last := labels[len(labels)-1]
	if !isAllDigits(last) && !isHexNumber(last) {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil && addr.Is4() {
		return false
	}
	return true
}

func isHexNumber(s string) bool {
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		return false
	}
	for _, c := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
