// Package safeurl classifies URLs as safe or unsafe to fetch, rejecting
// anything that resolves to a private or internal network address.
package safeurl

import (
	"fmt"
	"net"
	"net/url"
)

// ErrUnsafe is returned when a URL must not be fetched. Reason carries a
// user-presentable explanation.
type ErrUnsafe struct {
	Reason string
}

func (e *ErrUnsafe) Error() string {
	return fmt.Sprintf("unsafe url: %s", e.Reason)
}

// Validate parses the URL, resolves its hostname and rejects it if the
// scheme is not http(s), the host is missing, resolution fails, or any
// resolved address falls into a private/internal range. The check is pure:
// no request is made. Validation happens once, at feed registration time;
// scheduled fetches do not re-resolve, so a hostname that later points at
// an internal address is not caught here.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ErrUnsafe{Reason: fmt.Sprintf("invalid URL: %v", err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ErrUnsafe{Reason: fmt.Sprintf("URL scheme not allowed: %s", u.Scheme)}
	}

	host := u.Hostname()
	if host == "" {
		return &ErrUnsafe{Reason: "no host in URL"}
	}

	// literal addresses need no resolver round-trip
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return &ErrUnsafe{Reason: fmt.Sprintf("URL resolves to private/internal IP address %s", ip)}
		}
		return nil
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return &ErrUnsafe{Reason: fmt.Sprintf("DNS resolution failed: %v", err)}
	}
	if len(addrs) == 0 {
		return &ErrUnsafe{Reason: "DNS resolution failed: no addresses resolved"}
	}

	// every resolved address must be public, a single internal one poisons the host
	for _, ip := range addrs {
		if isPrivateIP(ip) {
			return &ErrUnsafe{Reason: fmt.Sprintf("URL resolves to private/internal IP address %s", ip)}
		}
	}

	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return isPrivateIPv4(ip4)
	}
	return isPrivateIPv6(ip)
}

func isPrivateIPv4(ip net.IP) bool {
	switch {
	case ip[0] == 127: // loopback
		return true
	case ip[0] == 10: // RFC1918
		return true
	case ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31: // RFC1918
		return true
	case ip[0] == 192 && ip[1] == 168: // RFC1918
		return true
	case ip[0] == 169 && ip[1] == 254: // link-local, covers cloud metadata endpoints
		return true
	case ip[0] == 0: // "current network"
		return true
	case ip[0] == 192 && ip[1] == 0 && ip[2] == 2: // TEST-NET-1
		return true
	case ip[0] == 198 && ip[1] == 51 && ip[2] == 100: // TEST-NET-2
		return true
	case ip[0] == 203 && ip[1] == 0 && ip[2] == 113: // TEST-NET-3
		return true
	}
	return false
}

func isPrivateIPv6(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() { // fe80::/10
		return true
	}
	if len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc { // unique-local fc00::/7
		return true
	}
	// IPv4-mapped addresses are classified by the address they map to
	if ip4 := ip.To4(); ip4 != nil {
		return isPrivateIPv4(ip4)
	}
	return false
}
