package freshness

import "time"

// DefaultThresholdDays is the freshness threshold used when a caller has no
// opinion of its own.
const DefaultThresholdDays = 7

const secondsPerDay = 24 * 60 * 60

// Status is the outcome of a single probe.
type Status int

const (
	// StatusFresh: the leaf certificate outlives the deadline.
	StatusFresh Status = iota
	// StatusStale: a certificate was read but it expires before the deadline.
	StatusStale
	// StatusHandshakeFailed: the TLS layer rejected the connection, so no
	// certificate was read.
	StatusHandshakeFailed
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusHandshakeFailed:
		return "handshake_failed"
	default:
		return "unknown"
	}
}

// Verdict is the checker's answer for one Request.
type Verdict struct {
	Hostname      string
	ThresholdDays int
	Status        Status

	// Days and Seconds hold notAfter minus the deadline. Both are zero when
	// Status is StatusHandshakeFailed.
	Days    int64
	Seconds int64

	NotAfter  time.Time
	Deadline  time.Time
	CheckedAt time.Time

	// Failure is set when Status is StatusHandshakeFailed.
	Failure *HandshakeError
}

// OK reports whether the certificate is fresh.
func (v Verdict) OK() bool { return v.Status == StatusFresh }

// HasCertificate reports whether a certificate was read, i.e. whether Days
// and Seconds mean anything.
func (v Verdict) HasCertificate() bool { return v.Status != StatusHandshakeFailed }

// Deadline returns now plus days calendar days, keeping the wall-clock time
// of day in now's location. days is clamped to ±MaxThresholdDays.
func Deadline(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, ClampThresholdDays(days))
}

// Evaluate compares notAfter to the deadline. Seconds is the difference
// rounded down to a whole second, so its sign always agrees with ok. Days
// are whole days of that truncated toward zero, so -1.5 days reports as -1.
//
// The difference is taken on Unix seconds rather than time.Duration, which
// saturates at about 292 years.
func Evaluate(notAfter, deadline time.Time) (days, seconds int64, ok bool) {
	seconds = notAfter.Unix() - deadline.Unix()
	if notAfter.Nanosecond() < deadline.Nanosecond() {
		seconds--
	}
	days = seconds / secondsPerDay
	return days, seconds, seconds >= 0
}

func newVerdict(req Request, checkedAt, deadline, notAfter time.Time) Verdict {
	days, seconds, ok := Evaluate(notAfter, deadline)
	status := StatusStale
	if ok {
		status = StatusFresh
	}
	return Verdict{
		Hostname:      req.Hostname,
		ThresholdDays: req.ThresholdDays,
		Status:        status,
		Days:          days,
		Seconds:       seconds,
		NotAfter:      notAfter,
		Deadline:      deadline,
		CheckedAt:     checkedAt,
	}
}

func handshakeFailed(req Request, checkedAt, deadline time.Time, he *HandshakeError) Verdict {
	return Verdict{
		Hostname:      req.Hostname,
		ThresholdDays: req.ThresholdDays,
		Status:        StatusHandshakeFailed,
		Deadline:      deadline,
		CheckedAt:     checkedAt,
		Failure:       he,
	}
}

// Result is the wire form of a Verdict. Days and Seconds are omitted when no
// certificate was read. Hostname is only filled in for batch responses.
type Result struct {
	Hostname string `json:"hostname,omitempty"`
	OK       bool   `json:"ok"`
	Days     *int64 `json:"days,omitempty"`
	Seconds  *int64 `json:"seconds,omitempty"`
}

// Result converts v to its wire form without the hostname.
func (v Verdict) Result() Result {
	r := Result{OK: v.OK()}
	if v.HasCertificate() {
		days, seconds := v.Days, v.Seconds
		r.Days = &days
		r.Seconds = &seconds
	}
	return r
}

// NamedResult is Result with the hostname set.
func (v Verdict) NamedResult() Result {
	r := v.Result()
	r.Hostname = v.Hostname
	return r
}
