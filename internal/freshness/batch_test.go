package freshness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers from canned verdicts and errors keyed by hostname.
type fakeProber struct {
	verdicts map[string]Verdict
	errs     map[string]error
	strict   map[string]error
	calls    atomic.Int32
}

func (f *fakeProber) Check(ctx context.Context, req Request) (Verdict, error) {
	f.calls.Add(1)
	if err, ok := f.errs[req.Hostname]; ok {
		return Verdict{}, err
	}
	v := f.verdicts[req.Hostname]
	v.Hostname = req.Hostname
	v.ThresholdDays = req.ThresholdDays
	return v, nil
}

func (f *fakeProber) CheckOrFail(ctx context.Context, req Request) (Verdict, error) {
	if err, ok := f.strict[req.Hostname]; ok {
		f.calls.Add(1)
		return Verdict{}, err
	}
	return f.Check(ctx, req)
}

func TestSplitHostnames(t *testing.T) {
	assert.Equal(t, []string{"a.example", "b.example"}, SplitHostnames(" a.example , b.example,"))
	assert.Equal(t, []string{"example.com"}, SplitHostnames("example.com"))
	assert.Empty(t, SplitHostnames(" , ,"))
}

func TestCheckAll_KeepsInputOrder(t *testing.T) {
	p := &fakeProber{verdicts: map[string]Verdict{
		"a.example": {Status: StatusFresh, Days: 10},
		"b.example": {Status: StatusHandshakeFailed},
		"c.example": {Status: StatusStale, Days: -2},
	}}

	verdicts, err := CheckAll(context.Background(), p, []string{"c.example", "a.example", "b.example"}, 7, 2, false)
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	assert.Equal(t, "c.example", verdicts[0].Hostname)
	assert.Equal(t, "a.example", verdicts[1].Hostname)
	assert.Equal(t, "b.example", verdicts[2].Hostname)
	assert.Equal(t, 7, verdicts[1].ThresholdDays)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestCheckAll_TransportErrorFailsBatch(t *testing.T) {
	refused := &TransportError{Hostname: "down.example", Reason: ReasonRefused, Err: errors.New("refused")}
	p := &fakeProber{
		verdicts: map[string]Verdict{"a.example": {Status: StatusFresh}},
		errs:     map[string]error{"down.example": refused},
	}

	verdicts, err := CheckAll(context.Background(), p, []string{"a.example", "down.example"}, 7, 0, false)
	assert.Nil(t, verdicts)
	assert.True(t, IsTransportFailure(err))
}

func TestCheckAll_OutOfRangeThreshold(t *testing.T) {
	p := &fakeProber{verdicts: map[string]Verdict{"a.example": {Status: StatusFresh}}}

	verdicts, err := CheckAll(context.Background(), p, []string{"a.example"}, MaxThresholdDays+1, 0, false)
	assert.Nil(t, verdicts)
	assert.ErrorIs(t, err, ErrThresholdOutOfRange)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestCheckAll_StrictSurfacesHandshakeFailure(t *testing.T) {
	expired := &HandshakeError{Hostname: "expired.example", Reason: ReasonExpired, Err: errors.New("expired")}
	p := &fakeProber{
		verdicts: map[string]Verdict{"expired.example": {Status: StatusHandshakeFailed}},
		strict:   map[string]error{"expired.example": expired},
	}

	verdicts, err := CheckAll(context.Background(), p, []string{"expired.example"}, 7, 1, false)
	require.NoError(t, err)
	assert.Equal(t, StatusHandshakeFailed, verdicts[0].Status)

	_, err = CheckAll(context.Background(), p, []string{"expired.example"}, 7, 1, true)
	assert.True(t, IsHandshakeFailure(err))
}

func TestCheckAll_EmptyInput(t *testing.T) {
	verdicts, err := CheckAll(context.Background(), &fakeProber{}, nil, 7, 4, false)
	require.NoError(t, err)
	assert.Empty(t, verdicts)
}

func TestSentence(t *testing.T) {
	checkedAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	fresh := Verdict{
		Hostname:  "example.com",
		Status:    StatusFresh,
		CheckedAt: checkedAt,
		NotAfter:  checkedAt.AddDate(0, 0, 1234),
	}
	assert.Equal(t, "[v] certificate of example.com expires in 1,234 days (2029-07-17T12:00:00Z)", fresh.Sentence())

	soon := Verdict{
		Hostname:      "soon.example",
		Status:        StatusStale,
		ThresholdDays: 7,
		CheckedAt:     checkedAt,
		NotAfter:      checkedAt.AddDate(0, 0, 3),
	}
	assert.Equal(t, "[x] certificate of soon.example expires in 3 days (2026-03-04T12:00:00Z), inside the 7 day threshold", soon.Sentence())

	expired := Verdict{
		Hostname: "expired.example",
		Status:   StatusHandshakeFailed,
		Failure:  &HandshakeError{Reason: ReasonExpired},
	}
	assert.Equal(t, "[x] certificate of expired.example failed the TLS handshake (certificate_expired)", expired.Sentence())
}
