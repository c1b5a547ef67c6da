package mcptools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"certfresh/internal/freshness"
	"certfresh/internal/models"
)

type handlers struct {
	db     *sql.DB
	prober freshness.Prober
	opts   Options
}

func (h *handlers) checkCertificate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	raw, _ := args["hostname"].(string)
	hostnames := freshness.SplitHostnames(raw)
	if len(hostnames) == 0 {
		return mcp.NewToolResultError("hostname is required"), nil
	}
	if h.opts.MaxBatchSize > 0 && len(hostnames) > h.opts.MaxBatchSize {
		return mcp.NewToolResultError(fmt.Sprintf("at most %d hostnames per call, got %d", h.opts.MaxBatchSize, len(hostnames))), nil
	}
	for _, hostname := range hostnames {
		if !freshness.ValidHostname(hostname) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid hostname %q", hostname)), nil
		}
	}

	days := h.opts.DefaultThresholdDays
	if d, ok := args["days"]; ok {
		v, err := toInt(d)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid days: %v", err)), nil
		}
		if err := freshness.ValidateThresholdDays(v); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid days: %v", err)), nil
		}
		days = v
	}
	strict, _ := args["strict"].(bool)

	verdicts, err := freshness.CheckAll(ctx, h.prober, hostnames, days, h.opts.BatchConcurrency, strict)
	if err != nil {
		msg := fmt.Sprintf("check failed: %v", err)
		if reason := freshness.FailureReason(err); reason != "" {
			msg = fmt.Sprintf("check failed (%s): %v", reason, err)
		}
		return mcp.NewToolResultError(msg), nil
	}

	dtos := make([]VerdictDTO, 0, len(verdicts))
	for _, v := range verdicts {
		dtos = append(dtos, VerdictToDTO(v))
	}
	if len(dtos) == 1 && !strings.Contains(raw, ",") {
		return jsonResult(dtos[0])
	}
	return jsonResult(dtos)
}

func (h *handlers) getCheckHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	hostname, _ := args["hostname"].(string)
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return mcp.NewToolResultError("hostname is required"), nil
	}

	limit := 10
	if l, ok := args["limit"]; ok {
		if v, err := toInt(l); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := models.GetCheckRecordsByHostname(h.db, hostname, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get check history: %v", err)), nil
	}

	dtos := make([]CheckRecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, CheckRecordToDTO(r))
	}

	result := map[string]any{
		"hostname": hostname,
		"checks":   dtos,
	}
	return jsonResult(result)
}

func (h *handlers) listWatchStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	onlyFailing, _ := args["only_failing"].(bool)

	records, err := models.GetLatestCheckRecords(h.db)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list watch status: %v", err)), nil
	}

	dtos := make([]CheckRecordDTO, 0, len(records))
	failing := 0
	for _, r := range records {
		if !r.OK {
			failing++
		} else if onlyFailing {
			continue
		}
		dtos = append(dtos, CheckRecordToDTO(r))
	}

	result := map[string]any{
		"watched":       len(records),
		"failing_count": failing,
		"hosts":         dtos,
	}
	return jsonResult(result)
}

func (h *handlers) getAlertLog(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	limit := 20
	if l, ok := args["limit"]; ok {
		if v, err := toInt(l); err == nil && v > 0 {
			limit = v
		}
	}

	alerts, err := models.GetRecentAlerts(h.db, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get alerts: %v", err)), nil
	}

	hostnameFilter, _ := args["hostname"].(string)

	dtos := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		if hostnameFilter != "" && a.Hostname != hostnameFilter {
			continue
		}
		dtos = append(dtos, AlertToDTO(a))
	}

	return jsonResult(dtos)
}

func toInt(v any) (int, error) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || val >= math.MaxInt64 || val < math.MinInt64 {
			return 0, fmt.Errorf("%v is out of range", val)
		}
		return int(val), nil
	case int:
		return val, nil
	case string:
		return strconv.Atoi(val)
	case json.Number:
		n, err := val.Int64()
		return int(n), err
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
