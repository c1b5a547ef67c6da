package mcptools

import (
	"time"

	"certfresh/internal/freshness"
	"certfresh/internal/models"
)

type VerdictDTO struct {
	Hostname      string `json:"hostname"`
	OK            bool   `json:"ok"`
	Status        string `json:"status"`
	ThresholdDays int    `json:"threshold_days"`
	Days          *int64 `json:"days,omitempty"`
	Seconds       *int64 `json:"seconds,omitempty"`
	NotAfter      string `json:"not_after,omitempty"`
	Deadline      string `json:"deadline"`
	Reason        string `json:"reason,omitempty"`
	Summary       string `json:"summary"`
	CheckedAt     string `json:"checked_at"`
}

type CheckRecordDTO struct {
	ID            string `json:"id"`
	Hostname      string `json:"hostname"`
	Status        string `json:"status"`
	OK            bool   `json:"ok"`
	ThresholdDays int    `json:"threshold_days"`
	Days          int64  `json:"days"`
	NotAfter      string `json:"not_after,omitempty"`
	Reason        string `json:"reason,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	CheckedAt     string `json:"checked_at"`
}

type AlertDTO struct {
	ID        int    `json:"id"`
	Hostname  string `json:"hostname"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

func VerdictToDTO(v freshness.Verdict) VerdictDTO {
	r := v.Result()
	dto := VerdictDTO{
		Hostname:      v.Hostname,
		OK:            r.OK,
		Status:        v.Status.String(),
		ThresholdDays: v.ThresholdDays,
		Days:          r.Days,
		Seconds:       r.Seconds,
		Deadline:      formatTime(v.Deadline),
		Summary:       v.Sentence(),
		CheckedAt:     formatTime(v.CheckedAt),
	}
	if v.HasCertificate() {
		dto.NotAfter = formatTime(v.NotAfter)
	}
	if v.Failure != nil {
		dto.Reason = string(v.Failure.Reason)
	}
	return dto
}

func CheckRecordToDTO(r models.CheckRecord) CheckRecordDTO {
	return CheckRecordDTO{
		ID:            r.ID,
		Hostname:      r.Hostname,
		Status:        r.Status,
		OK:            r.OK,
		ThresholdDays: r.ThresholdDays,
		Days:          r.Days,
		NotAfter:      r.NotAfter,
		Reason:        r.Reason,
		DurationMs:    r.DurationMs,
		CheckedAt:     r.CheckedAt,
	}
}

func AlertToDTO(a models.AlertEntry) AlertDTO {
	return AlertDTO{
		ID:        a.ID,
		Hostname:  a.Hostname,
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
