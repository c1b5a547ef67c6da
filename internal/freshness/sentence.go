package freshness

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Sentence renders v for people, e.g.
//
//	[v] certificate of example.com expires in 1,204 days (2029-11-12T23:59:59Z)
//	[x] certificate of expired.badssl.com failed the TLS handshake (certificate_expired)
func (v Verdict) Sentence() string {
	mark := "[x]"
	if v.OK() {
		mark = "[v]"
	}

	if !v.HasCertificate() {
		reason := ReasonHandshake
		if v.Failure != nil {
			reason = v.Failure.Reason
		}
		return fmt.Sprintf("%s certificate of %s failed the TLS handshake (%s)", mark, v.Hostname, reason)
	}

	remaining := int64(v.NotAfter.Sub(v.CheckedAt) / time.Second / secondsPerDay)
	expiresAt := v.NotAfter.UTC().Format(time.RFC3339)
	if v.OK() {
		return fmt.Sprintf("%s certificate of %s expires in %s days (%s)",
			mark, v.Hostname, humanize.Comma(remaining), expiresAt)
	}
	if v.NotAfter.Before(v.CheckedAt) {
		return fmt.Sprintf("%s certificate of %s is expired (%s)", mark, v.Hostname, expiresAt)
	}
	return fmt.Sprintf("%s certificate of %s expires in %s days (%s), inside the %d day threshold",
		mark, v.Hostname, humanize.Comma(remaining), expiresAt, v.ThresholdDays)
}
