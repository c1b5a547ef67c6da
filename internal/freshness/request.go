package freshness

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

// MaxThresholdDays bounds the threshold in both directions. Ten thousand
// years keeps every deadline a representable date.
const MaxThresholdDays = 3_650_000

// ErrThresholdOutOfRange is returned for a threshold beyond MaxThresholdDays.
var ErrThresholdOutOfRange = errors.New("threshold days out of range")

// Request asks whether Hostname's certificate stays valid for at least
// ThresholdDays more days. The threshold may be zero or negative.
type Request struct {
	Hostname      string
	ThresholdDays int
}

// NewRequest builds a Request with DefaultThresholdDays.
func NewRequest(hostname string) Request {
	return Request{Hostname: hostname, ThresholdDays: DefaultThresholdDays}
}

// Validate checks the threshold. The hostname is left to the transport.
func (r Request) Validate() error {
	return ValidateThresholdDays(r.ThresholdDays)
}

func ValidateThresholdDays(days int) error {
	if days > MaxThresholdDays || days < -MaxThresholdDays {
		return fmt.Errorf("%w: %d is beyond ±%d", ErrThresholdOutOfRange, days, MaxThresholdDays)
	}
	return nil
}

// ClampThresholdDays pulls days into ±MaxThresholdDays.
func ClampThresholdDays(days int) int {
	switch {
	case days > MaxThresholdDays:
		return MaxThresholdDays
	case days < -MaxThresholdDays:
		return -MaxThresholdDays
	default:
		return days
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]([a-zA-Z0-9_\-]{0,61}[a-zA-Z0-9_])?(\.[a-zA-Z0-9_]([a-zA-Z0-9_\-]{0,61}[a-zA-Z0-9_])?)*\.?$`)

// ValidHostname reports whether hostname is a DNS name or an IP address.
// Front ends use it to reject input before anything is dialed.
func ValidHostname(hostname string) bool {
	if hostname == "" || len(hostname) > 253 {
		return false
	}
	if net.ParseIP(hostname) != nil {
		return true
	}
	return hostnameRegex.MatchString(hostname)
}
