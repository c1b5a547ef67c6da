package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is how timestamps are stored. It sorts lexically and matches
// SQLite's CURRENT_TIMESTAMP.
const TimeLayout = "2006-01-02 15:04:05"

// StatusTransportError marks a record where the host could not be reached.
const StatusTransportError = "transport_error"

type CheckRecord struct {
	ID            string
	Hostname      string
	ThresholdDays int
	Status        string
	OK            bool
	Days          int64
	Seconds       int64
	NotAfter      string
	Reason        string
	DurationMs    int64
	CheckedAt     string
}

// CreateCheckRecord inserts r, filling in ID and CheckedAt when empty.
func CreateCheckRecord(db *sql.DB, r *CheckRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt == "" {
		r.CheckedAt = FormatTime(time.Now())
	}

	_, err := db.Exec(
		`INSERT INTO check_records
		   (id, hostname, threshold_days, status, ok, days, seconds, not_after, reason, duration_ms, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Hostname, r.ThresholdDays, r.Status, r.OK, r.Days, r.Seconds,
		nullIfEmpty(r.NotAfter), nullIfEmpty(r.Reason), r.DurationMs, r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create check record: %w", err)
	}
	return nil
}

const checkRecordColumns = `id, hostname, threshold_days, status, ok, days, seconds,
	COALESCE(not_after,''), COALESCE(reason,''), duration_ms, checked_at`

func GetCheckRecordsByHostname(db *sql.DB, hostname string, limit int) ([]CheckRecord, error) {
	rows, err := db.Query(
		`SELECT `+checkRecordColumns+`
		 FROM check_records
		 WHERE hostname = ?
		 ORDER BY checked_at DESC, rowid DESC
		 LIMIT ?`,
		hostname, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query check records: %w", err)
	}
	defer rows.Close()
	return scanCheckRecords(rows)
}

// GetLatestCheckRecords returns the newest record of every hostname, sorted
// by hostname.
func GetLatestCheckRecords(db *sql.DB) ([]CheckRecord, error) {
	rows, err := db.Query(
		`SELECT ` + checkRecordColumns + `
		 FROM (
		   SELECT *, ROW_NUMBER() OVER (
		     PARTITION BY hostname ORDER BY checked_at DESC, rowid DESC
		   ) AS rn
		   FROM check_records
		 )
		 WHERE rn = 1
		 ORDER BY hostname`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest check records: %w", err)
	}
	defer rows.Close()
	return scanCheckRecords(rows)
}

// PruneCheckRecords deletes records checked before cutoff.
func PruneCheckRecords(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM check_records WHERE checked_at < ?`, FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune check records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned check records: %w", err)
	}
	return n, nil
}

func scanCheckRecords(rows *sql.Rows) ([]CheckRecord, error) {
	var records []CheckRecord
	for rows.Next() {
		var r CheckRecord
		if err := rows.Scan(&r.ID, &r.Hostname, &r.ThresholdDays, &r.Status, &r.OK, &r.Days,
			&r.Seconds, &r.NotAfter, &r.Reason, &r.DurationMs, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check record row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
