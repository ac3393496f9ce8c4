package automation

import (
	"errors"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name     string
		typ      ActionType
		spec     string
		wantErr  error
		wantType ActionType
	}{
		{name: "weekday cron", typ: TypeTimer, spec: "30 7 * * 1-5"},
		{name: "every minute cron", typ: TypeTimer, spec: "* * * * *"},
		{name: "cron with step", typ: TypeTimer, spec: "*/15 6-22 * * *"},
		{name: "cron six fields", typ: TypeTimer, spec: "0 30 7 * * *", wantErr: ErrInvalidSchedule},
		{name: "cron descriptor", typ: TypeTimer, spec: "@daily", wantErr: ErrInvalidSchedule},
		{name: "cron bad minute", typ: TypeTimer, spec: "61 7 * * *", wantErr: ErrInvalidSchedule},
		{name: "empty", typ: TypeTimer, spec: "  ", wantErr: ErrInvalidSchedule},

		{name: "countdown minutes", typ: TypeCountdown, spec: "30m"},
		{name: "countdown hours", typ: TypeCountdown, spec: "2h"},
		{name: "countdown days", typ: TypeCountdown, spec: "1d"},
		{name: "countdown upper case", typ: TypeCountdown, spec: "5M"},
		{name: "countdown seconds rejected", typ: TypeCountdown, spec: "5s", wantErr: ErrInvalidSchedule},
		{name: "countdown zero", typ: TypeCountdown, spec: "0m", wantErr: ErrInvalidSchedule},
		{name: "countdown negative", typ: TypeCountdown, spec: "-5m", wantErr: ErrInvalidSchedule},
		{name: "countdown no unit", typ: TypeCountdown, spec: "30", wantErr: ErrInvalidSchedule},
		{name: "countdown too long", typ: TypeCountdown, spec: "400d", wantErr: ErrInvalidSchedule},

		{name: "interval seconds", typ: TypeInterval, spec: "5s"},
		{name: "interval minutes", typ: TypeInterval, spec: "10m"},
		{name: "interval hours", typ: TypeInterval, spec: "1h"},
		{name: "interval days rejected", typ: TypeInterval, spec: "1d", wantErr: ErrInvalidSchedule},
		{name: "interval fractional", typ: TypeInterval, spec: "1.5h", wantErr: ErrInvalidSchedule},
		{name: "interval overflow", typ: TypeInterval, spec: "99999999999999999999s", wantErr: ErrInvalidSchedule},

		{name: "unknown type", typ: "sunset", spec: "30m", wantErr: ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.typ, tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSchedule(%s, %q) error = %v, want %v", tt.typ, tt.spec, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%s, %q) error = %v", tt.typ, tt.spec, err)
			}
			if sched.Type != tt.typ {
				t.Errorf("Type = %q, want %q", sched.Type, tt.typ)
			}
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	// Wednesday 2026-03-04 07:12:45 UTC.
	from := time.Date(2026, 3, 4, 7, 12, 45, 0, time.UTC)

	tests := []struct {
		typ  ActionType
		spec string
		want time.Time
	}{
		{TypeTimer, "30 7 * * 1-5", time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC)},
		{TypeTimer, "0 7 * * 1-5", time.Date(2026, 3, 5, 7, 0, 0, 0, time.UTC)},
		{TypeTimer, "0 9 * * 6", time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)},
		{TypeCountdown, "30m", time.Date(2026, 3, 4, 7, 42, 0, 0, time.UTC)},
		{TypeCountdown, "1d", time.Date(2026, 3, 5, 7, 12, 0, 0, time.UTC)},
		{TypeInterval, "5s", from.Add(5 * time.Second)},
		{TypeInterval, "2h", from.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+" "+tt.spec, func(t *testing.T) {
			sched, err := ParseSchedule(tt.typ, tt.spec)
			if err != nil {
				t.Fatalf("ParseSchedule() error = %v", err)
			}
			if got := sched.Next(from); !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedule_CronSchedule(t *testing.T) {
	countdown, _ := ParseSchedule(TypeCountdown, "5m") //nolint:errcheck // Valid spec
	if countdown.cronSchedule() != nil {
		t.Error("countdown should not produce a cron schedule")
	}

	interval, _ := ParseSchedule(TypeInterval, "90s") //nolint:errcheck // Valid spec
	if interval.every != 90*time.Second {
		t.Errorf("every = %v, want 90s", interval.every)
	}
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := interval.cronSchedule().Next(from); !got.Equal(from.Add(90 * time.Second)) {
		t.Errorf("interval cron Next() = %v, want %v", got, from.Add(90*time.Second))
	}
}
