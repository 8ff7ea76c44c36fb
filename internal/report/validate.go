package report

import "fmt"

// Wizard steps.
const (
	StepGuard     = 1
	StepPumps     = 2
	StepStorage   = 3
	StepPower     = 4
	StepLogistics = 5
	StepSecurity  = 6

	FirstStep = StepGuard
	LastStep  = StepSecurity
)

var stepTitles = map[int]string{
	StepGuard:     "Patrol Guard",
	StepPumps:     "Fire Engines & Pumps",
	StepStorage:   "Storage & Leakage",
	StepPower:     "Power",
	StepLogistics: "Logistics",
	StepSecurity:  "Security Systems",
}

// StepTitle returns the heading shown for a step, or "" for unknown steps.
func StepTitle(step int) string {
	return stepTitles[step]
}

// rule requires field to be satisfied whenever when holds. A nil when means
// the field is always required.
type rule struct {
	field     string
	when      func(Data) bool
	satisfied func(Data) bool
}

func required(field string, value func(Data) string) rule {
	return rule{field: field, satisfied: func(d Data) bool { return value(d) != "" }}
}

func requiredWhen(field string, when func(Data) bool, value func(Data) string) rule {
	r := required(field, value)
	r.when = when
	return r
}

var stepRules = map[int][]rule{
	StepGuard: {
		required("guardName", func(d Data) string { return d.GuardName }),
		required("patrolStartTime", func(d Data) string { return d.PatrolStartTime }),
		required("patrolEndTime", func(d Data) string { return d.PatrolEndTime }),
	},
	StepPumps: {
		required("hydrantPressure", func(d Data) string { return d.HydrantPressure }),
		required("jockeyPumpRuntime", func(d Data) string { return d.JockeyPumpRuntime }),
	},
	StepStorage: {
		required("tk13Level", func(d Data) string { return d.TK13Level }),
		required("tk29Level", func(d Data) string { return d.TK29Level }),
		requiredWhen("airLineLeakLocation",
			func(d Data) bool { return d.AirLineLeak },
			func(d Data) string { return d.AirLineLeakLocation }),
		requiredWhen("hydrantLineLeakLocation",
			func(d Data) bool { return d.HydrantLineLeak },
			func(d Data) string { return d.HydrantLineLeakLocation }),
		requiredWhen("leakingProduct",
			func(d Data) bool { return d.ProductLineLeak },
			func(d Data) string { return string(d.LeakingProduct) }),
		requiredWhen("productLineLeakLocation",
			func(d Data) bool { return d.ProductLineLeak },
			func(d Data) string { return d.ProductLineLeakLocation }),
	},
	StepPower: powerRules(),
	StepLogistics: {
		requiredWhen("productName",
			func(d Data) bool { return d.ProductReceiptActive },
			func(d Data) string { return string(d.ProductName) }),
		requiredWhen("productReceiptTank",
			func(d Data) bool { return d.ProductReceiptActive },
			func(d Data) string { return d.ProductReceiptTank }),
		requiredWhen("rakePlacementTime",
			func(d Data) bool { return d.RakePlaced },
			func(d Data) string { return d.RakePlacementTime }),
		requiredWhen("rakeUnloadingStatus",
			func(d Data) bool { return d.RakePlaced },
			func(d Data) string { return string(d.RakeUnloadingStatus) }),
		// A rake can only be reported removed once unloading is completed.
		{
			field:     "rakeRemoved",
			when:      func(d Data) bool { return d.RakePlaced && d.RakeRemoved },
			satisfied: func(d Data) bool { return d.RakeUnloadingStatus == UnloadingCompleted },
		},
		requiredWhen("rakeRemovalTime",
			func(d Data) bool {
				return d.RakePlaced && d.RakeUnloadingStatus == UnloadingCompleted && d.RakeRemoved
			},
			func(d Data) string { return d.RakeRemovalTime }),
	},
	StepSecurity: {
		requiredWhen("cctvDownCount",
			func(d Data) bool { return !d.AllCCTVRunning },
			func(d Data) string { return d.CCTVDownCount }),
		requiredWhen("cctvDownRemarks",
			func(d Data) bool { return !d.AllCCTVRunning },
			func(d Data) string { return d.CCTVDownRemarks }),
		requiredWhen("cbacsRemarks",
			func(d Data) bool { return !d.CBACSRunning },
			func(d Data) string { return d.CBACSRemarks }),
		requiredWhen("watchTowerObservation",
			func(d Data) bool { return d.WatchTowerUsed },
			func(d Data) string { return d.WatchTowerObservation }),
		requiredWhen("nightVisionObservation",
			func(d Data) bool { return d.NightVisionUsed },
			func(d Data) string { return d.NightVisionObservation }),
	},
}

// generatorsClaimed is true when mains power is off and generators are
// reported in use; only then does the power step constrain anything.
func generatorsClaimed(d Data) bool {
	return !d.Power33kvOn && d.GasGenRunning
}

func powerRules() []rule {
	rules := []rule{{
		field: "gasGenerators",
		when:  generatorsClaimed,
		satisfied: func(d Data) bool {
			for _, g := range d.GasGenerators {
				if g.Used {
					return true
				}
			}
			return false
		},
	}}
	for i := 0; i < GeneratorCount; i++ {
		idx := i
		used := func(d Data) bool {
			return generatorsClaimed(d) && idx < len(d.GasGenerators) && d.GasGenerators[idx].Used
		}
		rules = append(rules,
			requiredWhen(fmt.Sprintf("gasGenerators[%d].startTime", idx), used,
				func(d Data) string { return d.GasGenerators[idx].StartTime }),
			requiredWhen(fmt.Sprintf("gasGenerators[%d].endTime", idx), used,
				func(d Data) string { return d.GasGenerators[idx].EndTime }),
		)
	}
	return rules
}

// MissingFields lists the fields that keep step from being complete. ok is
// false when step is not a wizard step.
func MissingFields(d Data, step int) (missing []string, ok bool) {
	rules, ok := stepRules[step]
	if !ok {
		return nil, false
	}
	for _, r := range rules {
		if r.when != nil && !r.when(d) {
			continue
		}
		if !r.satisfied(d) {
			missing = append(missing, r.field)
		}
	}
	return missing, true
}

// IsStepComplete reports whether the wizard may move forward from step.
// Unknown steps are never complete.
func IsStepComplete(d Data, step int) bool {
	missing, ok := MissingFields(d, step)
	return ok && len(missing) == 0
}
