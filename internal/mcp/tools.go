package mcptools

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"certfresh/internal/freshness"
)

// Options carries the checker settings the tools share with the HTTP server.
type Options struct {
	DefaultThresholdDays int
	MaxBatchSize         int
	BatchConcurrency     int
}

func RegisterTools(s *server.MCPServer, db *sql.DB, p freshness.Prober, opts Options) {
	h := &handlers{db: db, prober: p, opts: opts}

	s.AddTool(
		mcp.NewTool("check_certificate",
			mcp.WithDescription("Check now whether the TLS certificate of a host stays valid for at least the given number of days. Several hostnames may be given separated by commas."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithOpenWorldHintAnnotation(true),
			mcp.WithString("hostname", mcp.Required(), mcp.Description("Hostname, or comma separated hostnames")),
			mcp.WithNumber("days", mcp.Description("Freshness threshold in days (default 7)")),
			mcp.WithBoolean("strict", mcp.Description("Report TLS handshake failures as errors with a reason instead of ok=false")),
		),
		h.checkCertificate,
	)

	s.AddTool(
		mcp.NewTool("get_check_history",
			mcp.WithDescription("Get the stored check history of a watched hostname, newest first."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("hostname", mcp.Required(), mcp.Description("Watched hostname")),
			mcp.WithNumber("limit", mcp.Description("Number of records to return (default 10)")),
		),
		h.getCheckHistory,
	)

	s.AddTool(
		mcp.NewTool("list_watch_status",
			mcp.WithDescription("List the latest stored check result of every watched hostname."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithBoolean("only_failing", mcp.Description("Only list hostnames whose latest check was not fresh")),
		),
		h.listWatchStatus,
	)

	s.AddTool(
		mcp.NewTool("get_alert_log",
			mcp.WithDescription("Get recent alerts and recoveries sent by the certificate watcher."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithNumber("limit", mcp.Description("Number of entries to return (default 20)")),
			mcp.WithString("hostname", mcp.Description("Only entries for this hostname")),
		),
		h.getAlertLog,
	)
}
