package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAlerts_WaterThreshold(t *testing.T) {
	tests := []struct {
		tk13, tk29 string
		want       bool
	}{
		{"14", "20", false},
		{"13.9", "20", true},
		{"20", "13.9", true},
		{"", "", false},
		{"abc", "full", false},
		{"12m", "20", true},
		{" 13", "20", true},
	}
	for _, tt := range tests {
		d := patrolData()
		d.TK13Level = tt.tk13
		d.TK29Level = tt.tk29
		got := DeriveAlerts(d)
		if tt.want {
			assert.Contains(t, got, AlertWaterShortage, "tk13=%q tk29=%q", tt.tk13, tt.tk29)
		} else {
			assert.NotContains(t, got, AlertWaterShortage, "tk13=%q tk29=%q", tt.tk13, tt.tk29)
		}
	}
}

func TestDeriveAlerts_WaterAndGeneratorScenario(t *testing.T) {
	d := patrolData()
	d.TK13Level = "12"
	d.TK29Level = "20"
	d.Power33kvOn = false
	d.GasGenRunning = true
	d.GasGenerators[0].Used = true
	d.GasGenerators[0].StartTime = "20:00"
	d.GasGenerators[0].EndTime = "23:30"

	assert.Equal(t, []string{AlertWaterShortage, AlertGeneratorOverrun}, DeriveAlerts(d))
}

func TestDeriveAlerts_GeneratorBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		mainsOn    bool
		want       bool
	}{
		{"exactly three hours", "20:00", "23:00", false, true},
		{"just under", "20:00", "22:59", false, false},
		{"crossing midnight short", "23:00", "01:00", false, false},
		{"crossing midnight long", "22:30", "01:30", false, true},
		{"mains back on", "18:00", "23:00", true, false},
		{"bad time", "8pm", "23:00", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := patrolData()
			d.Power33kvOn = tt.mainsOn
			d.GasGenRunning = true
			d.GasGenerators[2].Used = true
			d.GasGenerators[2].StartTime = tt.start
			d.GasGenerators[2].EndTime = tt.end
			assert.Equal(t, tt.want, contains(DeriveAlerts(d), AlertGeneratorOverrun))
		})
	}
}

func TestDeriveAlerts_GeneratorUnusedIgnored(t *testing.T) {
	d := patrolData()
	d.Power33kvOn = false
	d.GasGenerators[0].StartTime = "10:00"
	d.GasGenerators[0].EndTime = "20:00"
	assert.NotContains(t, DeriveAlerts(d), AlertGeneratorOverrun)
}

func TestDeriveAlerts_GeneratorFiresOnce(t *testing.T) {
	d := patrolData()
	d.Power33kvOn = false
	d.GasGenRunning = true
	for i := range d.GasGenerators {
		d.GasGenerators[i].Used = true
		d.GasGenerators[i].StartTime = "18:00"
		d.GasGenerators[i].EndTime = "23:00"
	}
	assert.Equal(t, []string{AlertGeneratorOverrun}, DeriveAlerts(d))
}

func TestElapsed(t *testing.T) {
	got, ok := Elapsed("23:00", "01:00")
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, got)

	got, ok = Elapsed("06:15", "06:15")
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), got)

	got, ok = Elapsed("20:00:30", "23:00:30")
	require.True(t, ok)
	assert.Equal(t, 3*time.Hour, got)

	_, ok = Elapsed("", "01:00")
	assert.False(t, ok)
}

func TestDeriveAlerts_ProductLeakSuppressesGenericLeak(t *testing.T) {
	d := patrolData()
	d.ProductLineLeak = true
	d.LeakingProduct = ProductHSD
	d.ProductLineLeakLocation = "Pump House 3"
	d.AirLineLeak = true
	d.AirLineLeakLocation = "Compressor"

	assert.Equal(t, []string{AlertProductLeak}, DeriveAlerts(d))
}

func TestDeriveAlerts_AirOrHydrantLeak(t *testing.T) {
	d := patrolData()
	d.AirLineLeak = true
	assert.Equal(t, []string{AlertArrestLeak}, DeriveAlerts(d))

	d = patrolData()
	d.HydrantLineLeak = true
	assert.Equal(t, []string{AlertArrestLeak}, DeriveAlerts(d))

	d.AirLineLeak = true
	assert.Equal(t, []string{AlertArrestLeak}, DeriveAlerts(d))
}

func TestDeriveAlerts_JockeyNeedsThresholdAndConfirmation(t *testing.T) {
	tests := []struct {
		runtime   string
		confirmed bool
		want      bool
	}{
		{"30", true, true},
		{"30", false, false},
		{"45", true, false},
		{"60", true, false},
		{"", true, false},
		{"often", true, false},
	}
	for _, tt := range tests {
		d := patrolData()
		d.JockeyPumpRuntime = tt.runtime
		d.JockeyWarningConfirmed = tt.confirmed
		assert.Equal(t, tt.want, contains(DeriveAlerts(d), AlertJockeyPumpCycling), "runtime=%q confirmed=%v", tt.runtime, tt.confirmed)
	}
}

func TestDeriveAlerts_PriorityOrder(t *testing.T) {
	d := patrolData()
	d.TK13Level = "10"
	d.Power33kvOn = false
	d.GasGenRunning = true
	d.GasGenerators[1].Used = true
	d.GasGenerators[1].StartTime = "19:00"
	d.GasGenerators[1].EndTime = "23:00"
	d.ProductLineLeak = true
	d.JockeyPumpRuntime = "20"
	d.JockeyWarningConfirmed = true

	want := []string{AlertProductLeak, AlertWaterShortage, AlertGeneratorOverrun, AlertJockeyPumpCycling}
	assert.Equal(t, want, DeriveAlerts(d))

	d.ProductLineLeak = false
	d.HydrantLineLeak = true
	want = []string{AlertArrestLeak, AlertWaterShortage, AlertGeneratorOverrun, AlertJockeyPumpCycling}
	assert.Equal(t, want, DeriveAlerts(d))
}

func TestDeriveAlerts_Idempotent(t *testing.T) {
	d := patrolData()
	d.TK29Level = "3"
	d.AirLineLeak = true
	d.JockeyPumpRuntime = "10"
	d.JockeyWarningConfirmed = true
	first := DeriveAlerts(d)
	second := DeriveAlerts(d)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestDeriveAlerts_NeverNil(t *testing.T) {
	assert.NotNil(t, DeriveAlerts(Data{}))
	assert.NotNil(t, DeriveAlerts(patrolData()))
}

func TestAlertRank(t *testing.T) {
	assert.Equal(t, 0, AlertRank(AlertProductLeak))
	assert.Equal(t, 1, AlertRank(AlertArrestLeak))
	assert.Equal(t, 2, AlertRank(AlertWaterShortage))
	assert.Equal(t, 2, AlertRank(AlertGeneratorOverrun))
	assert.Equal(t, 3, AlertRank(AlertJockeyPumpCycling))
	assert.Equal(t, 4, AlertRank("something else"))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"14", 14, true},
		{"13.9", 13.9, true},
		{"  7.5", 7.5, true},
		{"12.5 m", 12.5, true},
		{".5", 0.5, true},
		{"-3", -3, true},
		{"1e2", 100, true},
		{"", 0, false},
		{"\u00a013", 13, true},
		{"\ufeff 9", 9, true},
		{"m12", 0, false},
		{"Inf", 0, false},
		{".", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestParseNumber_Infinities(t *testing.T) {
	for _, in := range []string{"-Infinity", "-1e999", "-Infinity m"} {
		got, ok := ParseNumber(in)
		require.True(t, ok, "input %q", in)
		assert.True(t, math.IsInf(got, -1), "input %q gave %v", in, got)
	}
	got, ok := ParseNumber("Infinity")
	require.True(t, ok)
	assert.True(t, math.IsInf(got, 1))
}

func TestDeriveAlerts_WaterThresholdLenientInputs(t *testing.T) {
	for _, level := range []string{"-Infinity", "-1e999", "\u00a013"} {
		d := patrolData()
		d.TK13Level = level
		d.TK29Level = "20"
		assert.Contains(t, DeriveAlerts(d), AlertWaterShortage, "tk13=%q", level)
	}
	d := patrolData()
	d.TK13Level = "1e999"
	d.TK29Level = "20"
	assert.NotContains(t, DeriveAlerts(d), AlertWaterShortage)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"18:00", 18 * time.Hour, true},
		{"06:05:30", 6*time.Hour + 5*time.Minute + 30*time.Second, true},
		{"9:30", 9*time.Hour + 30*time.Minute, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"8pm", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
