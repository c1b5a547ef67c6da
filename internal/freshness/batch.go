package freshness

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SplitHostnames splits a comma separated list, trimming blanks and dropping
// empty entries.
func SplitHostnames(s string) []string {
	parts := strings.Split(s, ",")
	hostnames := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			hostnames = append(hostnames, p)
		}
	}
	return hostnames
}

// CheckAll probes every hostname concurrently, at most limit at a time
// (limit <= 0 means unbounded). Verdicts come back in input order. The first
// error cancels the remaining probes and is returned; in strict mode that
// includes handshake failures. An out of range threshold fails before any
// probe starts.
func CheckAll(ctx context.Context, p Prober, hostnames []string, thresholdDays, limit int, strict bool) ([]Verdict, error) {
	if err := ValidateThresholdDays(thresholdDays); err != nil {
		return nil, err
	}
	verdicts := make([]Verdict, len(hostnames))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, hostname := range hostnames {
		req := Request{Hostname: hostname, ThresholdDays: thresholdDays}
		g.Go(func() error {
			var (
				v   Verdict
				err error
			)
			if strict {
				v, err = p.CheckOrFail(ctx, req)
			} else {
				v, err = p.Check(ctx, req)
			}
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}
