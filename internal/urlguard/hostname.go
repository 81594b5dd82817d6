package urlguard

import "strings"

type matchKind int

const (
	matchExact matchKind = iota
	matchSuffix
)

// hostPattern is one entry of the hostname deny-list. Suffix patterns
// start with a dot and also match the bare name without the dot.
type hostPattern struct {
	kind        matchKind
	pattern     string
	description string
}

// blockedHostPatterns is tested in order; it is never mutated.
var blockedHostPatterns = []hostPattern{
	{matchExact, "localhost", "loopback name"},
	{matchExact, "localhost.localdomain", "loopback name"},
	{matchExact, "local", "loopback name"},
	{matchExact, "ip6-localhost", "IPv6 loopback name"},
	{matchExact, "ip6-loopback", "IPv6 loopback name"},
	{matchExact, "ip6-localnet", "IPv6 reserved name"},
	{matchExact, "ip6-mcastprefix", "IPv6 reserved name"},
	{matchExact, "ip6-allnodes", "IPv6 multicast name"},
	{matchExact, "ip6-allrouters", "IPv6 multicast name"},
	{matchExact, "ip6-allhosts", "IPv6 multicast name"},
	{matchExact, "ip6.allhosts", "IPv6 multicast name"},
	{matchExact, "broadcasthost", "broadcast name"},
	{matchExact, "metadata", "cloud metadata alias"},
	{matchExact, "instance-data", "cloud metadata alias"},
	{matchExact, "metadata.google", "cloud metadata alias"},
	{matchExact, "metadata.google.internal", "cloud metadata alias"},
	{matchExact, "kubernetes", "cluster service name"},
	{matchExact, "kubernetes.default", "cluster service name"},
	{matchExact, "kubernetes.default.svc", "cluster service name"},
	{matchSuffix, ".svc.cluster.local", "cluster-local service"},
	{matchSuffix, ".cluster.local", "cluster-local service"},
	{matchSuffix, ".docker.internal", "container runtime host"},
	{matchSuffix, ".metadata", "cloud metadata alias"},
	{matchSuffix, ".localhost", "loopback domain"},
	{matchSuffix, ".localdomain", "local domain"},
	{matchSuffix, ".local", "mDNS domain"},
	{matchSuffix, ".internal", "internal domain"},
	{matchSuffix, ".home", "home network domain"},
	{matchSuffix, ".lan", "LAN domain"},
	{matchSuffix, ".intranet", "intranet domain"},
	{matchSuffix, ".corp", "corporate domain"},
	{matchSuffix, ".private", "private domain"},
}

// NormalizeHostname lower-cases name, strips IPv6 brackets and a single
// trailing dot.
func NormalizeHostname(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, ".")
	if strings.HasPrefix(n, "[") && strings.HasSuffix(n, "]") {
		n = n[1 : len(n)-1]
	}
	return n
}

func (p hostPattern) matches(host string) bool {
	switch p.kind {
	case matchSuffix:
		return strings.HasSuffix(host, p.pattern) || host == p.pattern[1:]
	default:
		return host == p.pattern
	}
}

// HostnameClassifier checks hostnames against the built-in deny-list plus
// operator-supplied entries.
type HostnameClassifier struct {
	extra []hostPattern
}

// NewHostnameClassifier builds a classifier. Extra entries starting with
// "." are suffix patterns, everything else matches exactly.
func NewHostnameClassifier(extra []string) *HostnameClassifier {
	c := &HostnameClassifier{}
	for _, e := range extra {
		e = NormalizeHostname(e)
		if e == "" || e == "." {
			continue
		}
		kind := matchExact
		if strings.HasPrefix(e, ".") {
			kind = matchSuffix
		}
		c.extra = append(c.extra, hostPattern{kind: kind, pattern: e, description: "configured"})
	}
	return c
}

// Match returns the description of the first pattern name matches.
func (c *HostnameClassifier) Match(name string) (string, bool) {
	host := NormalizeHostname(name)
	if host == "" {
		return "empty hostname", true
	}
	for _, p := range blockedHostPatterns {
		if p.matches(host) {
			return p.description, true
		}
	}
	if c != nil {
		for _, p := range c.extra {
			if p.matches(host) {
				return p.description, true
			}
		}
	}
	return "", false
}

// IsBlocked reports whether name is on the deny-list.
func (c *HostnameClassifier) IsBlocked(name string) bool {
	_, blocked := c.Match(name)
	return blocked
}

// IsBlockedHostname checks name against the built-in deny-list only.
func IsBlockedHostname(name string) bool {
	var c *HostnameClassifier
	return c.IsBlocked(name)
}
