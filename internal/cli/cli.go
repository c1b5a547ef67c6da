package cli

import (
	"fmt"
	"io"
	"strconv"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"certfresh/internal/config"
	"certfresh/internal/freshness"
)

// Exit codes of the check command. Serve exits 0 unless it fails to start.
const (
	ExitOK       = 0
	ExitNotFresh = 1
	ExitError    = 2
)

var Version = "dev"

// Env is what every command needs from the outside world.
type Env struct {
	Config *config.Config
	Log    *logrus.Logger
	Stdout io.Writer
	Stderr io.Writer
	// NewProber builds the prober for a command. Tests swap it out.
	NewProber func(cfg *config.Config) (freshness.Prober, error)
}

// Run parses args, runs the chosen command and returns the exit code.
func Run(args []string, env Env) int {
	if env.NewProber == nil {
		env.NewProber = DefaultProber
	}

	app := kingpin.New("certfresh", "Check that TLS certificates stay valid for long enough.")
	app.Version(Version)
	app.UsageWriter(env.Stderr)
	app.ErrorWriter(env.Stderr)
	app.Terminate(nil)

	serve := &serveCmd{env: env}
	serveClause := app.Command("serve", "Run the HTTP server.").Default()
	serve.bind = serveClause.Flag("bind", "host:port to listen on.").Short('b').Default(env.Config.ListenAddr()).String()

	check := &checkCmd{env: env}
	checkClause := app.Command("check", "Check one or more hostnames now and exit.")
	check.hostnames = checkClause.Arg("hostname", "Hostnames to check, separated by spaces or commas.").Required().Strings()
	check.days = checkClause.Flag("days", "Freshness threshold in days.").Short('d').Default(strconv.Itoa(env.Config.DefaultThresholdDays)).Int()
	check.json = checkClause.Flag("json", "Print JSON instead of sentences.").Bool()
	check.strict = checkClause.Flag("strict", "Treat TLS handshake failures as errors.").Bool()

	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintf(env.Stderr, "certfresh: %v\n", err)
		return ExitError
	}

	switch command {
	case serveClause.FullCommand():
		if err := serve.run(); err != nil {
			env.Log.WithError(err).Error("server failed")
			return ExitError
		}
		return ExitOK
	case checkClause.FullCommand():
		return check.run()
	}
	// --help and --version end up here.
	return ExitOK
}

// DefaultProber dials real hosts with the configured timeouts and roots.
func DefaultProber(cfg *config.Config) (freshness.Prober, error) {
	roots, err := cfg.RootCAs()
	if err != nil {
		return nil, err
	}
	checker := freshness.NewChecker(cfg.DialTimeout, cfg.CheckTimeout, roots)
	checker.Port = cfg.TLSPort
	return checker, nil
}
