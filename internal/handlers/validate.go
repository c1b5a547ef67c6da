package handlers

import (
	"strconv"
	"strings"

	"certfresh/internal/freshness"
)

// parseDaysLenient reads a leading integer the way a forgiving form parser
// would: leading whitespace, an optional sign, then digits with single
// underscores between them. Anything unparsable is 0, so "abc" and "" are 0
// and "12abc" is 12.
func parseDaysLenient(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n := 0
	prevDigit := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '_' && prevDigit && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
			prevDigit = false
			continue
		}
		if ch < '0' || ch > '9' {
			break
		}
		prevDigit = true
		if n <= freshness.MaxThresholdDays {
			n = n*10 + int(ch-'0')
		}
	}

	if n > freshness.MaxThresholdDays {
		n = freshness.MaxThresholdDays
	}
	if neg {
		return -n
	}
	return n
}

// parseDaysStrict accepts only a plain base-10 integer.
func parseDaysStrict(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n > freshness.MaxThresholdDays || n < -freshness.MaxThresholdDays {
		return 0, false
	}
	return n, true
}

func sanitizeLogInput(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
