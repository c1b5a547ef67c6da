package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"certfresh/internal/freshness"
)

type checkCmd struct {
	env       Env
	hostnames *[]string
	days      *int
	json      *bool
	strict    *bool
}

func (c *checkCmd) run() int {
	var hostnames []string
	for _, arg := range *c.hostnames {
		hostnames = append(hostnames, freshness.SplitHostnames(arg)...)
	}
	if len(hostnames) == 0 {
		fmt.Fprintln(c.env.Stderr, "certfresh: no hostnames given")
		return ExitError
	}
	for _, h := range hostnames {
		if !freshness.ValidHostname(h) {
			fmt.Fprintf(c.env.Stderr, "certfresh: invalid hostname %q\n", h)
			return ExitError
		}
	}
	if err := freshness.ValidateThresholdDays(*c.days); err != nil {
		fmt.Fprintf(c.env.Stderr, "certfresh: --days: %v\n", err)
		return ExitError
	}

	p, err := c.env.NewProber(c.env.Config)
	if err != nil {
		fmt.Fprintf(c.env.Stderr, "certfresh: %v\n", err)
		return ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	verdicts, err := freshness.CheckAll(ctx, p, hostnames, *c.days, c.env.Config.BatchConcurrency, *c.strict)
	if err != nil {
		fmt.Fprintf(c.env.Stderr, "certfresh: %v\n", err)
		return ExitError
	}

	if *c.json {
		if err := writeJSON(c.env, verdicts); err != nil {
			fmt.Fprintf(c.env.Stderr, "certfresh: %v\n", err)
			return ExitError
		}
	} else {
		var b strings.Builder
		for _, v := range verdicts {
			b.WriteString(v.Sentence())
			b.WriteByte('\n')
		}
		fmt.Fprint(c.env.Stdout, b.String())
	}

	for _, v := range verdicts {
		if !v.OK() {
			return ExitNotFresh
		}
	}
	return ExitOK
}

// writeJSON prints an object for one hostname and an array for several.
func writeJSON(env Env, verdicts []freshness.Verdict) error {
	enc := json.NewEncoder(env.Stdout)
	if len(verdicts) == 1 {
		return enc.Encode(verdicts[0].NamedResult())
	}
	results := make([]freshness.Result, 0, len(verdicts))
	for _, v := range verdicts {
		results = append(results, v.NamedResult())
	}
	return enc.Encode(results)
}
