package bind

import "testing"

func TestParseSchemes(t *testing.T) {
	cases := []struct {
		url    string
		scheme Scheme
		addr   string
	}{
		{"http://localhost:8080", SchemeHTTP, "localhost:8080"},
		{"http://:8080", SchemeHTTP, ":8080"},
		{"http://[::1]:8080", SchemeHTTP, "[::1]:8080"},
		{"tcp://10.0.0.1:9000", SchemeTCP, "10.0.0.1:9000"},
		{"unix:///tmp/x.sock", SchemeUnix, "/tmp/x.sock"},
	}
	for _, c := range cases {
		scheme, addr, err := Parse(c.url)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.url, err)
		}
		if scheme != c.scheme || addr != c.addr {
			t.Fatalf("%s: got scheme=%v addr=%q, want scheme=%v addr=%q", c.url, scheme, addr, c.scheme, c.addr)
		}
	}
}

func TestParseRejectsUnknownScheme(t *testing.T) {
	if _, _, err := Parse("ftp://host:21"); err == nil {
		t.Fatalf("expected error for unrecognized scheme")
	}
}
