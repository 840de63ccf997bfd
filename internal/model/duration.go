package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseCron interprets expr as a 5-field cron schedule, or an "@every"/
// macro form, and returns the interval between its next two firings.
// Grounded on the teacher's internal/model/cron.go ParseCron; reused here
// so a limits.time_to_live/limits.distribution document value can be
// expressed as a schedule ("@every 30s") instead of only a bare integer.
func ParseCron(expr string) (time.Duration, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, fmt.Errorf("empty cron expression")
	}

	var schedule cron.Schedule
	var err error
	if strings.HasPrefix(e, "@") {
		schedule, err = cron.ParseStandard(e)
	} else {
		parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		schedule, err = parser5.Parse(e)
	}
	if err != nil {
		return 0, err
	}
	next1 := schedule.Next(time.Now())
	next2 := schedule.Next(next1)
	return next2.Sub(next1), nil
}

var isoDurationRx = regexp.MustCompile(`^P((?P<day>\d+)D)?(T?(?:(?P<hour>[+-]?\d+)H)?(?:(?P<minute>[+-]?\d+)M)?(?:(?P<second>[+-]?\d+(?:[.,]\d+)?)S)?)?$`)

// ParseISODuration parses an ISO8601 duration ("PT30S", "P1DT2H") into a
// time.Duration. Grounded on the teacher's internal/model/cron.go.
func ParseISODuration(dur string) (time.Duration, error) {
	if dur == "" || dur == "P" || dur == "PT" || !isoDurationRx.MatchString(dur) {
		return 0, fmt.Errorf("invalid ISO8601 duration %q", dur)
	}
	match := isoDurationRx.FindStringSubmatch(dur)

	hasT := strings.Contains(dur, "T")
	hasHMS := false
	var ret time.Duration

	for i, name := range isoDurationRx.SubexpNames() {
		part := match[i]
		if i == 0 || name == "" || part == "" {
			continue
		}

		num, frac, err := parseDecimal(part)
		if err != nil {
			return 0, err
		}

		var d time.Duration
		switch name {
		case "day":
			d = 24 * time.Hour
		case "hour":
			hasHMS = true
			hasT = true
			d = time.Hour
		case "minute":
			hasHMS = true
			if !hasT {
				return 0, fmt.Errorf("invalid ISO8601 duration %q", dur)
			}
			d = time.Minute
		case "second":
			hasHMS = true
			d = time.Second
		default:
			return 0, fmt.Errorf("unknown ISO8601 component %s", name)
		}
		ret += time.Duration(num) * d
		if num >= 0 {
			ret += time.Duration(frac * float64(d))
		} else {
			ret -= time.Duration(frac * float64(d))
		}
	}

	if hasT && !hasHMS {
		return 0, fmt.Errorf("invalid ISO8601 duration %q", dur)
	}
	return ret, nil
}

func parseDecimal(s string) (num int, frac float64, err error) {
	s = strings.Replace(s, ",", ".", 1)
	a, b, ok := strings.Cut(s, ".")
	if ok {
		if len(b) > 9 {
			return 0, 0, fmt.Errorf("invalid ISO8601 fraction %q", s)
		}
		f, ferr := strconv.Atoi(b)
		if ferr != nil {
			return 0, 0, fmt.Errorf("parsing ISO8601 fraction: %w", ferr)
		}
		if f != 0 {
			frac = float64(f) / math.Pow10(len(b))
		}
	}
	num, err = strconv.Atoi(a)
	if err != nil {
		err = fmt.Errorf("parsing ISO8601 number: %w", err)
	}
	return
}

// ParseBudget resolves one of limits.time_to_live/limits.distribution's
// document values into a time.Duration: a bare integer is seconds (the
// common case), a leading "P" is an ISO8601 duration, and anything else is
// handed to ParseCron so an operator can express a budget as a schedule
// interval instead of only a literal number.
func ParseBudget(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.Atoi(trimmed); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	if strings.HasPrefix(trimmed, "P") {
		return ParseISODuration(trimmed)
	}
	return ParseCron(trimmed)
}
