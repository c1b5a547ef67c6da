package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Alert actions.
const (
	ActionAlert    = "alert"
	ActionRecovery = "recovery"
)

type AlertEntry struct {
	ID        int
	Hostname  string
	Action    string
	Details   string
	CreatedAt string
}

// LogAlert is best effort, like the rest of the alert path.
func LogAlert(db *sql.DB, hostname, action, details string) {
	_, _ = db.Exec(
		"INSERT INTO alert_log (hostname, action, details, created_at) VALUES (?, ?, ?, ?)",
		hostname, action, details, FormatTime(time.Now()),
	)
}

func GetRecentAlerts(db *sql.DB, limit int) ([]AlertEntry, error) {
	rows, err := db.Query(
		"SELECT id, hostname, action, COALESCE(details,''), created_at FROM alert_log ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertEntry
	for rows.Next() {
		var a AlertEntry
		if err := rows.Scan(&a.ID, &a.Hostname, &a.Action, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
