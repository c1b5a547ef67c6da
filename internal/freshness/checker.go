package freshness

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"
)

// DefaultPort is where the leaf certificate is fetched from.
const DefaultPort = "443"

// Prober is anything that can answer a Request in both call modes.
type Prober interface {
	Check(ctx context.Context, req Request) (Verdict, error)
	CheckOrFail(ctx context.Context, req Request) (Verdict, error)
}

// Checker fetches a host's leaf certificate over TLS and compares its
// notAfter against a deadline. It keeps no state between calls and is safe
// for concurrent use.
type Checker struct {
	// Port defaults to DefaultPort.
	Port string
	// Timeout bounds dial plus handshake. Zero means no bound beyond ctx.
	Timeout time.Duration
	// TLSConfig is cloned for every call. ServerName is always overwritten
	// and Time defaults to Now.
	TLSConfig *tls.Config
	// DialContext opens the TCP connection.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)
	// Now is the clock used for the deadline and for certificate verification.
	Now func() time.Time
}

// NewChecker returns a Checker that verifies against rootCAs (nil means the
// system pool).
func NewChecker(dialTimeout, timeout time.Duration, rootCAs *x509.CertPool) *Checker {
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &Checker{
		Port:        DefaultPort,
		Timeout:     timeout,
		TLSConfig:   &tls.Config{RootCAs: rootCAs},
		DialContext: dialer.DialContext,
		Now:         time.Now,
	}
}

// Check returns a verdict for req. A TLS-layer rejection yields a
// HandshakeFailed verdict and a nil error; transport failures are returned
// as *TransportError. A threshold beyond MaxThresholdDays is rejected with
// ErrThresholdOutOfRange before anything is dialed.
func (c *Checker) Check(ctx context.Context, req Request) (Verdict, error) {
	v, err := c.probe(ctx, req)
	var he *HandshakeError
	if errors.As(err, &he) {
		return handshakeFailed(req, v.CheckedAt, v.Deadline, he), nil
	}
	return v, err
}

// CheckOrFail is Check without the safety net: a TLS-layer rejection is
// returned as *HandshakeError.
func (c *Checker) CheckOrFail(ctx context.Context, req Request) (Verdict, error) {
	return c.probe(ctx, req)
}

// probe always fills in CheckedAt and Deadline, even when it fails.
func (c *Checker) probe(ctx context.Context, req Request) (Verdict, error) {
	now := c.now().Truncate(time.Second)
	deadline := Deadline(now, req.ThresholdDays)
	partial := Verdict{
		Hostname:      req.Hostname,
		ThresholdDays: req.ThresholdDays,
		CheckedAt:     now,
		Deadline:      deadline,
	}
	if err := req.Validate(); err != nil {
		return partial, err
	}

	leaf, err := c.fetchLeaf(ctx, req.Hostname)
	if err != nil {
		return partial, err
	}
	return newVerdict(req, now, deadline, leaf.NotAfter), nil
}

func (c *Checker) fetchLeaf(ctx context.Context, hostname string) (*x509.Certificate, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(hostname, c.port())
	conn, err := c.dial()(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDial(hostname, addr, err)
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, c.tlsConfig(hostname))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, classifyHandshake(hostname, addr, err)
	}

	// Index 0 is always the leaf certificate.
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, &HandshakeError{
			Hostname: hostname,
			Reason:   ReasonNoCertificate,
			Err:      errors.New("peer presented no certificates"),
		}
	}
	return certs[0], nil
}

func (c *Checker) tlsConfig(hostname string) *tls.Config {
	var cfg *tls.Config
	if c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.ServerName = hostname
	if cfg.Time == nil {
		cfg.Time = c.now
	}
	return cfg
}

func (c *Checker) port() string {
	if c.Port == "" {
		return DefaultPort
	}
	return c.Port
}

func (c *Checker) dial() func(ctx context.Context, network, address string) (net.Conn, error) {
	if c.DialContext != nil {
		return c.DialContext
	}
	return (&net.Dialer{}).DialContext
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
