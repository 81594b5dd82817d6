package urlguard

import "testing"

func TestIsBlockedHostname(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"localhost.", true},
		{"app.localhost", true},
		{"localhost.localdomain", true},
		{"printer.local", true},
		{"db.internal", true},
		{"api.svc.cluster.local", true},
		{"kubernetes.default.svc", true},
		{"kubernetes.default", true},
		{"host.docker.internal", true},
		{"metadata", true},
		{"metadata.google.internal", true},
		{"metadata.google", true},
		{"instance-data", true},
		{"ip6-localhost", true},
		{"ip6-loopback", true},
		{"ip6.allhosts", true},
		{"router.lan", true},
		{"wiki.corp", true},
		{"nas.home", true},
		{"portal.intranet", true},
		{"vault.private", true},
		{"", true},
		// Allowed
		{"example.com", false},
		{"images.unsplash.com", false},
		{"localhost.example.com", false},
		{"internalnews.com", false},
		{"corporate.com", false},
		{"metadata-api.example.com", false},
		{"local.example.com", false},
	}

	for _, tt := range tests {
		if got := IsBlockedHostname(tt.host); got != tt.want {
			t.Errorf("IsBlockedHostname(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestHostnameClassifier_Extra(t *testing.T) {
	c := NewHostnameClassifier([]string{".Example.org", "cdn.bad.com", " ", "."})

	tests := []struct {
		host string
		want bool
	}{
		{"a.example.org", true},
		{"example.org", true},
		{"cdn.bad.com", true},
		{"x.cdn.bad.com", false},
		{"example.com", false},
		{"localhost", true},
	}
	for _, tt := range tests {
		if got := c.IsBlocked(tt.host); got != tt.want {
			t.Errorf("IsBlocked(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
	if len(c.extra) != 2 {
		t.Errorf("extra patterns = %d, want 2", len(c.extra))
	}
}

func TestNormalizeHostname(t *testing.T) {
	tests := map[string]string{
		"Example.COM.": "example.com",
		"[::1]":        "::1",
		"  host  ":     "host",
	}
	for in, want := range tests {
		if got := NormalizeHostname(in); got != want {
			t.Errorf("NormalizeHostname(%q) = %q, want %q", in, got, want)
		}
	}
}
