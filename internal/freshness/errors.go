package freshness

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Reason is a short machine-readable label for why a probe failed.
type Reason string

// TLS-layer reasons. These describe a handshake that the far end or the
// local verifier rejected.
const (
	ReasonExpired          Reason = "certificate_expired"
	ReasonInvalid          Reason = "certificate_invalid"
	ReasonUnknownAuthority Reason = "unknown_authority"
	ReasonHostnameMismatch Reason = "hostname_mismatch"
	ReasonAlert            Reason = "tls_alert"
	ReasonProtocol         Reason = "protocol_error"
	ReasonNoCertificate    Reason = "no_certificate"
	ReasonHandshake        Reason = "handshake_failed"
)

// Transport reasons. The handshake never got far enough to say anything
// about the certificate.
const (
	ReasonDNS         Reason = "dns_failure"
	ReasonRefused     Reason = "connection_refused"
	ReasonReset       Reason = "connection_reset"
	ReasonUnreachable Reason = "network_unreachable"
	ReasonTimeout     Reason = "timeout"
	ReasonCanceled    Reason = "canceled"
	ReasonConnection  Reason = "connection_failed"
)

// HandshakeError is returned by CheckOrFail when the TLS layer rejected the
// connection. Check folds it into a HandshakeFailed verdict instead.
type HandshakeError struct {
	Hostname string
	Reason   Reason
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s failed (%s): %v", e.Hostname, e.Reason, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportError means the host could not be reached at all. Both Check and
// CheckOrFail propagate it.
type TransportError struct {
	Hostname string
	Addr     string
	Reason   Reason
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connecting to %s (%s) failed (%s): %v", e.Hostname, e.Addr, e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsHandshakeFailure reports whether err carries a HandshakeError.
func IsHandshakeFailure(err error) bool {
	var he *HandshakeError
	return errors.As(err, &he)
}

// IsTransportFailure reports whether err carries a TransportError.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// FailureReason returns the Reason carried by err, or "" when err is neither
// a HandshakeError nor a TransportError.
func FailureReason(err error) Reason {
	var he *HandshakeError
	if errors.As(err, &he) {
		return he.Reason
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

// classifyDial maps an error from the TCP dial. Nothing here is TLS related.
func classifyDial(hostname, addr string, err error) error {
	return &TransportError{
		Hostname: hostname,
		Addr:     addr,
		Reason:   transportReason(err),
		Err:      err,
	}
}

// classifyHandshake decides whether a handshake error came from the TLS layer
// or from the connection underneath it. TLS types are checked first because
// remote alerts arrive wrapped in a *net.OpError.
//
// A peer that hangs up mid-handshake without sending an alert, for example
// after rejecting an unknown SNI, surfaces as io.EOF or a reset and is
// reported as a TransportError. Safe mode therefore fails the request for
// such hosts instead of answering ok:false; only errors the TLS stack itself
// raises become HandshakeErrors.
func classifyHandshake(hostname, addr string, err error) error {
	if reason, ok := tlsReason(err); ok {
		return &HandshakeError{Hostname: hostname, Reason: reason, Err: err}
	}
	if isTransportFault(err) {
		return &TransportError{
			Hostname: hostname,
			Addr:     addr,
			Reason:   transportReason(err),
			Err:      err,
		}
	}
	return &HandshakeError{Hostname: hostname, Reason: ReasonHandshake, Err: err}
}

func tlsReason(err error) (Reason, bool) {
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		if certInvalid.Reason == x509.Expired {
			return ReasonExpired, true
		}
		return ReasonInvalid, true
	}

	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return ReasonHostnameMismatch, true
	}

	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return ReasonUnknownAuthority, true
	}

	var systemRoots x509.SystemRootsError
	if errors.As(err, &systemRoots) {
		return ReasonUnknownAuthority, true
	}

	var recordHeader tls.RecordHeaderError
	if errors.As(err, &recordHeader) {
		return ReasonProtocol, true
	}

	var alert tls.AlertError
	if errors.As(err, &alert) {
		return ReasonAlert, true
	}

	// crypto/tls reports alerts sent by the peer as an OpError with this Op.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "remote error" {
		return ReasonAlert, true
	}

	return "", false
}

func isTransportFault(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func transportReason(err error) Reason {
	// context errors first: DeadlineExceeded also satisfies net.Error.
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ReasonTimeout
		}
		return ReasonDNS
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return ReasonRefused
		case syscall.ECONNRESET, syscall.EPIPE, syscall.ECONNABORTED:
			return ReasonReset
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return ReasonUnreachable
		case syscall.ETIMEDOUT:
			return ReasonTimeout
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	return ReasonConnection
}
