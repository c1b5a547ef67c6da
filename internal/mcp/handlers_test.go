package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certfresh/internal/db"
	"certfresh/internal/freshness"
	"certfresh/internal/models"
)

var checkedAt = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type stubProber struct {
	strictErr error
	errs      map[string]error
}

func (s stubProber) Check(ctx context.Context, req freshness.Request) (freshness.Verdict, error) {
	if err, ok := s.errs[req.Hostname]; ok {
		return freshness.Verdict{}, err
	}
	deadline := freshness.Deadline(checkedAt, req.ThresholdDays)
	notAfter := checkedAt.AddDate(0, 0, 30)
	days, seconds, ok := freshness.Evaluate(notAfter, deadline)
	status := freshness.StatusStale
	if ok {
		status = freshness.StatusFresh
	}
	return freshness.Verdict{
		Hostname:      req.Hostname,
		ThresholdDays: req.ThresholdDays,
		Status:        status,
		Days:          days,
		Seconds:       seconds,
		NotAfter:      notAfter,
		Deadline:      deadline,
		CheckedAt:     checkedAt,
	}, nil
}

func (s stubProber) CheckOrFail(ctx context.Context, req freshness.Request) (freshness.Verdict, error) {
	if s.strictErr != nil {
		return freshness.Verdict{}, s.strictErr
	}
	return s.Check(ctx, req)
}

func newTestHandlers(t *testing.T, p freshness.Prober) *handlers {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &handlers{db: conn, prober: p, opts: Options{DefaultThresholdDays: 7, MaxBatchSize: 5, BatchConcurrency: 2}}
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestCheckCertificate_Single(t *testing.T) {
	h := newTestHandlers(t, stubProber{})

	res, err := h.checkCertificate(context.Background(), call(map[string]any{"hostname": "example.com"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var dto VerdictDTO
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &dto))
	assert.Equal(t, "example.com", dto.Hostname)
	assert.True(t, dto.OK)
	assert.Equal(t, "fresh", dto.Status)
	assert.Equal(t, 7, dto.ThresholdDays)
	require.NotNil(t, dto.Days)
	assert.Equal(t, int64(23), *dto.Days)
	assert.Equal(t, "2026-03-31T12:00:00Z", dto.NotAfter)
	assert.Contains(t, dto.Summary, "expires in 30 days")
}

func TestCheckCertificate_DaysAndBatch(t *testing.T) {
	h := newTestHandlers(t, stubProber{})

	res, err := h.checkCertificate(context.Background(), call(map[string]any{
		"hostname": "a.example, b.example",
		"days":     float64(60),
	}))
	require.NoError(t, err)

	var dtos []VerdictDTO
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &dtos))
	require.Len(t, dtos, 2)
	assert.Equal(t, "a.example", dtos[0].Hostname)
	assert.Equal(t, "b.example", dtos[1].Hostname)
	assert.False(t, dtos[0].OK)
	assert.Equal(t, "stale", dtos[0].Status)
}

func TestCheckCertificate_Errors(t *testing.T) {
	h := newTestHandlers(t, stubProber{
		strictErr: &freshness.HandshakeError{Hostname: "expired.example", Reason: freshness.ReasonExpired, Err: errors.New("expired")},
		errs: map[string]error{
			"down.example": &freshness.TransportError{Hostname: "down.example", Reason: freshness.ReasonDNS, Err: errors.New("no such host")},
		},
	})
	ctx := context.Background()

	res, err := h.checkCertificate(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.checkCertificate(ctx, call(map[string]any{"hostname": "down.example"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "dns_failure")

	res, err = h.checkCertificate(ctx, call(map[string]any{"hostname": "expired.example", "strict": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "certificate_expired")

	res, err = h.checkCertificate(ctx, call(map[string]any{"hostname": "a,b,c,d,e,f"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "at most 5")

	res, err = h.checkCertificate(ctx, call(map[string]any{"hostname": "example.com", "days": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCheckCertificate_RejectsBadInput(t *testing.T) {
	h := newTestHandlers(t, stubProber{})
	ctx := context.Background()

	for _, days := range []any{"4611686018427387904", float64(3_650_001), float64(-1e300), json.Number("-3650001")} {
		res, err := h.checkCertificate(ctx, call(map[string]any{"hostname": "example.com", "days": days}))
		require.NoError(t, err)
		assert.True(t, res.IsError, "days=%v", days)
		assert.Contains(t, resultText(t, res), "invalid days")
	}

	res, err := h.checkCertificate(ctx, call(map[string]any{"hostname": "example.com", "days": float64(freshness.MaxThresholdDays)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	for _, hostname := range []string{"exa mple.com", "example.com/path", "a.example,-bad-.example"} {
		res, err := h.checkCertificate(ctx, call(map[string]any{"hostname": hostname}))
		require.NoError(t, err)
		assert.True(t, res.IsError, "hostname=%q", hostname)
		assert.Contains(t, resultText(t, res), "invalid hostname")
	}
}

func TestHistoryStatusAndAlerts(t *testing.T) {
	h := newTestHandlers(t, stubProber{})
	ctx := context.Background()

	records := []*models.CheckRecord{
		{Hostname: "a.example", ThresholdDays: 7, Status: "fresh", OK: true, Days: 40, CheckedAt: models.FormatTime(checkedAt.Add(-time.Hour))},
		{Hostname: "a.example", ThresholdDays: 7, Status: "stale", Days: -2, CheckedAt: models.FormatTime(checkedAt)},
		{Hostname: "b.example", ThresholdDays: 7, Status: "fresh", OK: true, Days: 80, CheckedAt: models.FormatTime(checkedAt)},
	}
	for _, r := range records {
		require.NoError(t, models.CreateCheckRecord(h.db, r))
	}
	models.LogAlert(h.db, "a.example", models.ActionAlert, "expires soon")
	models.LogAlert(h.db, "b.example", models.ActionRecovery, "")

	res, err := h.getCheckHistory(ctx, call(map[string]any{"hostname": "a.example", "limit": float64(1)}))
	require.NoError(t, err)
	var history struct {
		Hostname string           `json:"hostname"`
		Checks   []CheckRecordDTO `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &history))
	require.Len(t, history.Checks, 1)
	assert.Equal(t, "stale", history.Checks[0].Status)

	res, err = h.getCheckHistory(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.listWatchStatus(ctx, call(map[string]any{"only_failing": true}))
	require.NoError(t, err)
	var status struct {
		Watched      int              `json:"watched"`
		FailingCount int              `json:"failing_count"`
		Hosts        []CheckRecordDTO `json:"hosts"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &status))
	assert.Equal(t, 2, status.Watched)
	assert.Equal(t, 1, status.FailingCount)
	require.Len(t, status.Hosts, 1)
	assert.Equal(t, "a.example", status.Hosts[0].Hostname)

	res, err = h.getAlertLog(ctx, call(map[string]any{"hostname": "a.example"}))
	require.NoError(t, err)
	var alerts []AlertDTO
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.ActionAlert, alerts[0].Action)
}

func TestToInt(t *testing.T) {
	for _, v := range []any{float64(3), 3, "3", json.Number("3")} {
		n, err := toInt(v)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	_, err := toInt([]int{3})
	assert.Error(t, err)
}
