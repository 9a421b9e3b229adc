package scheduler

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
)

// isFeedSideError decides whether a transport failure is the feed's fault.
// Feed-side failures consume the feed's slot in the schedule: the feed gets
// its last_fetched_at stamped and waits a full interval. Anything else is
// treated as our-side (local network down, resolver broken) and the feed is
// retried on the next scheduler tick.
func isFeedSideError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var certErr x509.CertificateInvalidError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &hostnameErr) {
		return true
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}

	// string matching is a fallback for errors the http client flattens
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"dns", "no such host", "name resolution",
		"ssl", "tls", "certificate", "hostname",
		"connection refused", "connection reset",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
