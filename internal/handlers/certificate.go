package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"certfresh/internal/freshness"
)

type CheckOptions struct {
	DefaultThresholdDays int
	// StrictDaysParam rejects a non-integer days segment instead of reading
	// it as 0.
	StrictDaysParam  bool
	MaxBatchSize     int
	BatchConcurrency int
}

// Liveness answers GET /.
func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK"})
	}
}

// CheckCertificate serves GET /:hostname and GET /:hostname/:days. A
// hostname segment with commas is a batch and answers with an array.
func CheckCertificate(p freshness.Prober, opts CheckOptions, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Params("hostname")

		days := opts.DefaultThresholdDays
		if rawDays := c.Params("days"); rawDays != "" {
			if opts.StrictDaysParam {
				n, ok := parseDaysStrict(rawDays)
				if !ok {
					return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("days must be an integer, got %q", rawDays))
				}
				days = n
			} else {
				days = parseDaysLenient(rawDays)
			}
		}

		strict := c.QueryBool("strict", false)

		if strings.Contains(raw, ",") {
			return checkBatch(c, p, opts, log, raw, days, strict)
		}

		if !freshness.ValidHostname(raw) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid hostname")
		}

		req := freshness.Request{Hostname: raw, ThresholdDays: days}
		var (
			v   freshness.Verdict
			err error
		)
		if strict {
			v, err = p.CheckOrFail(c.UserContext(), req)
		} else {
			v, err = p.Check(c.UserContext(), req)
		}
		if err != nil {
			return err
		}

		logVerdict(log, v)
		return c.JSON(v.Result())
	}
}

func checkBatch(c *fiber.Ctx, p freshness.Prober, opts CheckOptions, log logrus.FieldLogger, raw string, days int, strict bool) error {
	hostnames := freshness.SplitHostnames(raw)
	if len(hostnames) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no hostnames given")
	}
	if opts.MaxBatchSize > 0 && len(hostnames) > opts.MaxBatchSize {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("at most %d hostnames per request, got %d", opts.MaxBatchSize, len(hostnames)))
	}
	for _, h := range hostnames {
		if !freshness.ValidHostname(h) {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid hostname %q", sanitizeLogInput(h)))
		}
	}

	verdicts, err := freshness.CheckAll(c.UserContext(), p, hostnames, days, opts.BatchConcurrency, strict)
	if err != nil {
		return err
	}

	results := make([]freshness.Result, 0, len(verdicts))
	for _, v := range verdicts {
		logVerdict(log, v)
		results = append(results, v.NamedResult())
	}
	return c.JSON(results)
}

func logVerdict(log logrus.FieldLogger, v freshness.Verdict) {
	entry := log.WithFields(logrus.Fields{
		"hostname": sanitizeLogInput(v.Hostname),
		"days":     v.ThresholdDays,
		"status":   v.Status.String(),
	})
	if v.Failure != nil {
		entry.WithField("reason", v.Failure.Reason).Info("TLS handshake rejected")
		return
	}
	entry.WithField("remaining_days", v.Days).Debug("certificate checked")
}

// Register mounts the liveness and certificate routes. Anything that must
// not be read as a hostname, like /metrics, has to be mounted first.
func Register(app *fiber.App, p freshness.Prober, opts CheckOptions, log logrus.FieldLogger) {
	app.Get("/", Liveness())
	check := CheckCertificate(p, opts, log)
	app.Get("/:hostname", check)
	app.Get("/:hostname/:days", check)
}
