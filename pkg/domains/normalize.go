package domains

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost turns a Host header value into the lowercase ASCII domain used
// for matching. The port is stripped, a trailing dot is dropped and Unicode
// labels are converted with IDNA. IP literals are rejected.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedHost)
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedHost)
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("%w: ip literal %q", ErrMalformedHost, host)
	}

	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedHost, host, err)
	}
	if ascii == "" || strings.Contains(ascii, "..") {
		return "", fmt.Errorf("%w: %q", ErrMalformedHost, host)
	}

	return ascii, nil
}

// toggleWWW returns the companion host: "www.example.com" for "example.com"
// and the reverse.
func toggleWWW(host string) string {
	if rest, ok := strings.CutPrefix(host, "www."); ok {
		return rest
	}
	return "www." + host
}

// isSubdomainOf reports whether host equals domain or lies beneath it
func isSubdomainOf(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
