package urlguard

import (
	"net/netip"
	"testing"
)

func TestIsBlockedIPv4(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		// Blocked ranges, both edges
		{"127.0.0.1", true},
		{"127.255.255.255", true},
		{"10.0.0.0", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"169.254.0.1", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"100.64.0.1", true},
		{"100.127.255.255", true},
		{"192.0.0.8", true},
		{"192.0.2.1", true},
		{"198.18.0.1", true},
		{"198.19.255.255", true},
		{"198.51.100.7", true},
		{"203.0.113.9", true},
		{"224.0.0.1", true},
		{"239.255.255.255", true},
		{"240.0.0.1", true},
		{"255.255.255.255", true},
		// Public
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"172.32.0.1", false},
		{"172.15.255.255", false},
		{"100.128.0.1", false},
		{"11.0.0.1", false},
		{"198.20.0.1", false},
		{"223.255.255.255", false},
		// Malformed fails closed
		{"", true},
		{"256.1.1.1", true},
		{"1.2.3", true},
		{"0177.0.0.1", true},
		{"a.b.c.d", true},
		{"::1", true},
		{"8.8.8.8 ", true},
	}

	for _, tt := range tests {
		if got := IsBlockedIPv4(tt.ip); got != tt.want {
			t.Errorf("IsBlockedIPv4(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestIsBlockedIPv4_WholeRanges(t *testing.T) {
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "169.254.0.0/16"} {
		p := netip.MustParsePrefix(cidr)
		start := ipv4ToUint32(p.Addr())
		size := uint32(1) << (32 - p.Bits())
		for off := uint32(0); off < size; off += 4099 {
			addr := netip.AddrFrom4(uint32ToBytes(start + off))
			if !IsBlockedIPv4(addr.String()) {
				t.Fatalf("%s in %s not blocked", addr, cidr)
			}
		}
		last := netip.AddrFrom4(uint32ToBytes(start + size - 1))
		if !IsBlockedIPv4(last.String()) {
			t.Errorf("last address %s of %s not blocked", last, cidr)
		}
	}
}

func uint32ToBytes(u uint32) [4]byte {
	return [4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}

func TestIsBlockedIPv6(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"::1", true},
		{"::", true},
		{"fe80::1", true},
		{"febf:ffff::1", true},
		{"fc00::1", true},
		{"fd12:3456::1", true},
		{"ff02::1", true},
		{"2001:db8::1", true},
		{"2002:7f00:1::1", true},
		{"64:ff9b::a9fe:a9fe", true},
		{"fe80::1%eth0", true},
		{"[::1]", true},
		// IPv4-mapped: the embedded IPv4 decides
		{"::ffff:127.0.0.1", true},
		{"::ffff:169.254.169.254", true},
		{"::ffff:10.0.0.1", true},
		{"::ffff:7f00:1", true},
		{"::ffff:8.8.8.8", false},
		// Public
		{"2001:4860:4860::8888", false},
		{"2606:4700:4700::1111", false},
		{"[2a00:1450:4001:82a::200e]", false},
		// Malformed fails closed
		{"", true},
		{"fe80::zz", true},
		{"1:2:3:4:5:6:7:8:9", true},
		{"8.8.8.8", true},
	}

	for _, tt := range tests {
		if got := IsBlockedIPv6(tt.ip); got != tt.want {
			t.Errorf("IsBlockedIPv6(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestMatchAddr_Names(t *testing.T) {
	name, blocked := MatchAddr(netip.MustParseAddr("169.254.169.254"))
	if !blocked || name != "cloud metadata" {
		t.Errorf("metadata IP matched %q (blocked=%v), want cloud metadata", name, blocked)
	}
	name, blocked = MatchAddr(netip.MustParseAddr("169.254.1.1"))
	if !blocked || name != "link-local (RFC 3927)" {
		t.Errorf("link-local matched %q (blocked=%v)", name, blocked)
	}
	if _, blocked := MatchAddr(netip.Addr{}); !blocked {
		t.Error("zero Addr should be blocked")
	}
}

func TestLooksLikeAlternativeIP(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"0x7f000001", true},
		{"0XA9FEA9FE", true},
		{"2130706433", true},
		{"0177.0.0.1", true},
		{"0x7f.0x0.0x0.0x1", true},
		{"127.1", true},
		{"10.0.1", true},
		{"127.0.0.1.", false},
		{"1.2.3.4", false},
		{"example.com", false},
		{"img.0xcdn.com", false},
		{"0xdeadbeef.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := LooksLikeAlternativeIP(tt.host); got != tt.want {
			t.Errorf("LooksLikeAlternativeIP(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
