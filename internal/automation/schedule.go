package automation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// maxScheduleSpan caps countdown and interval durations.
const maxScheduleSpan = 366 * 24 * time.Hour

var durationPattern = regexp.MustCompile(`^([0-9]+)([a-z])$`)

// Schedule is a parsed action schedule.
type Schedule struct {
	Type ActionType

	cron  cron.Schedule // timer
	every time.Duration // interval
	after time.Duration // countdown
}

// ParseSchedule parses spec according to the grammar of t.
//
// Timers take a five-field cron expression (minute hour dom month dow).
// Countdowns take <n>m, <n>h or <n>d. Intervals take <n>s, <n>m or <n>h.
// In every case n must be at least 1.
func ParseSchedule(t ActionType, spec string) (*Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: schedule is required", ErrInvalidSchedule)
	}

	switch t {
	case TypeTimer:
		if fields := strings.Fields(spec); len(fields) != 5 {
			return nil, fmt.Errorf("%w: timer needs 5 cron fields, got %d", ErrInvalidSchedule, len(fields))
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return &Schedule{Type: t, cron: sched}, nil

	case TypeCountdown:
		d, err := parseSpan(spec, map[string]time.Duration{
			"m": time.Minute,
			"h": time.Hour,
			"d": 24 * time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: countdown %v", ErrInvalidSchedule, err)
		}
		return &Schedule{Type: t, after: d}, nil

	case TypeInterval:
		d, err := parseSpan(spec, map[string]time.Duration{
			"s": time.Second,
			"m": time.Minute,
			"h": time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: interval %v", ErrInvalidSchedule, err)
		}
		return &Schedule{Type: t, every: d}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
}

func parseSpan(spec string, units map[string]time.Duration) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(spec))
	if m == nil {
		return 0, fmt.Errorf("%q is not <number><unit>", spec)
	}
	unit, ok := units[m[2]]
	if !ok {
		return 0, fmt.Errorf("unit %q is not supported", m[2])
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q must be a positive number", m[1])
	}
	if n > int64(maxScheduleSpan/unit) {
		return 0, fmt.Errorf("%q exceeds %s", spec, maxScheduleSpan)
	}
	return time.Duration(n) * unit, nil
}

// Next returns the first activation strictly after from.
// A countdown counts from the start of the minute containing from.
func (s *Schedule) Next(from time.Time) time.Time {
	switch s.Type {
	case TypeTimer:
		return s.cron.Next(from)
	case TypeCountdown:
		return from.Truncate(time.Minute).Add(s.after)
	case TypeInterval:
		return from.Add(s.every)
	default:
		return time.Time{}
	}
}

// cronSchedule returns the schedule the cron runner should use, or nil for
// countdowns which are armed with a timer instead.
func (s *Schedule) cronSchedule() cron.Schedule {
	switch s.Type {
	case TypeTimer:
		return s.cron
	case TypeInterval:
		return cron.Every(s.every)
	default:
		return nil
	}
}
