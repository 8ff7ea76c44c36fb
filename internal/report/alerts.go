package report

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Alert texts are printed verbatim at the top of the generated report.
const (
	AlertProductLeak       = "*CRITICAL ALERT: PRODUCT LEAKAGE OBSERVED - IMMEDIATE ACTION REQUIRED.*"
	AlertArrestLeak        = "*Please arrest the leakage observed.*"
	AlertWaterShortage     = "*ATTENTION: Water required is less than 8280 Kl (OISD-STD-117). Maintain water levels immediately.*"
	AlertGeneratorOverrun  = "*ATTENTION: Generator running > 3 hours. Changeover generator to avoid overheating.*"
	AlertJockeyPumpCycling = "*ALERT: Frequent running of jockey pump water leakage to be checked.*"
)

const (
	// MinTankLevel is the tank level in metres below which fire water
	// falls short of the OISD-STD-117 volume.
	MinTankLevel = 14.0
	// JockeyFrequentMinutes is the runtime interval under which the jockey
	// pump is considered to be cycling too often.
	JockeyFrequentMinutes = 45.0
	MaxGeneratorRun       = 3 * time.Hour
)

// DeriveAlerts computes the alerts for d, deduplicated and ordered by
// priority. The result is never nil.
func DeriveAlerts(d Data) []string {
	alerts := []string{}
	seen := map[string]bool{}
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			alerts = append(alerts, a)
		}
	}

	if belowTankMinimum(d.TK13Level) || belowTankMinimum(d.TK29Level) {
		add(AlertWaterShortage)
	}

	if !d.Power33kvOn && anyGeneratorOverrun(d.GasGenerators) {
		add(AlertGeneratorOverrun)
	}

	// A product leak takes the place of the generic leak alert even when air
	// or hydrant leaks are flagged alongside it.
	if d.ProductLineLeak {
		add(AlertProductLeak)
	} else if d.AirLineLeak || d.HydrantLineLeak {
		add(AlertArrestLeak)
	}

	if JockeyRunsFrequently(d) && d.JockeyWarningConfirmed {
		add(AlertJockeyPumpCycling)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return AlertRank(alerts[i]) < AlertRank(alerts[j])
	})
	return alerts
}

// AlertRank orders alerts: critical leak, leak arrest, attention, jockey pump,
// then anything else.
func AlertRank(alert string) int {
	switch {
	case strings.Contains(alert, "CRITICAL ALERT"):
		return 0
	case strings.Contains(alert, "Please arrest"):
		return 1
	case strings.Contains(alert, "ATTENTION"):
		return 2
	case strings.Contains(alert, "Frequent running of jockey pump"):
		return 3
	default:
		return 4
	}
}

// JockeyRunsFrequently reports whether the recorded jockey pump runtime is a
// number below JockeyFrequentMinutes.
func JockeyRunsFrequently(d Data) bool {
	v, ok := ParseNumber(d.JockeyPumpRuntime)
	return ok && v < JockeyFrequentMinutes
}

func belowTankMinimum(level string) bool {
	v, ok := ParseNumber(level)
	return ok && v < MinTankLevel
}

func anyGeneratorOverrun(gens []GasGenerator) bool {
	for _, g := range gens {
		if !g.Used || g.StartTime == "" || g.EndTime == "" {
			continue
		}
		elapsed, ok := Elapsed(g.StartTime, g.EndTime)
		if ok && elapsed >= MaxGeneratorRun {
			return true
		}
	}
	return false
}

// Elapsed returns the run time between two times of day. An end before the
// start is taken to be on the next day.
func Elapsed(start, end string) (time.Duration, bool) {
	s, ok := ParseClock(start)
	if !ok {
		return 0, false
	}
	e, ok := ParseClock(end)
	if !ok {
		return 0, false
	}
	d := e - s
	if d < 0 {
		d += 24 * time.Hour
	}
	return d, true
}

// ParseClock parses HH:MM or HH:MM:SS into an offset from midnight. Hours run
// 0-23 and may be a single digit ("9:30"); "24:00" is rejected.
func ParseClock(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, v)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}

var numberPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

// ParseNumber reads the leading decimal number of v, ignoring leading
// whitespace and any trailing text ("12.5 m" reads as 12.5). "Infinity" and
// out-of-range exponents read as ±Inf. ok is false when v does not start with
// a number.
func ParseNumber(v string) (float64, bool) {
	m := numberPrefix.FindString(strings.TrimLeftFunc(v, isLeadingSpace))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func isLeadingSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
