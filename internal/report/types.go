package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Fixed list sizes for the facility.
const (
	EngineCount    = 5
	GeneratorCount = 3
)

var (
	ErrInvalidEdit  = errors.New("invalid edit")
	ErrUnknownEntry = errors.New("unknown entry")
)

// Product is a product that can leak from the product line.
type Product string

const (
	ProductMS        Product = "MS"
	ProductHSD       Product = "HSD"
	ProductEthanol   Product = "Ethanol"
	ProductBiodiesel Product = "Biodiesel"
	ProductLDO       Product = "LDO"
	ProductLSHSP     Product = "LSHSP"
)

var LeakProducts = []Product{ProductMS, ProductHSD, ProductEthanol, ProductBiodiesel, ProductLDO, ProductLSHSP}

// ReceiptProduct is a product received through the pipeline.
type ReceiptProduct string

const (
	ReceiptHSD ReceiptProduct = "HSD"
	ReceiptMS  ReceiptProduct = "MS"
)

type UnloadingStatus string

const (
	UnloadingNotStarted UnloadingStatus = "Not Started"
	UnloadingOngoing    UnloadingStatus = "Ongoing"
	UnloadingCompleted  UnloadingStatus = "Completed"
)

type Engine struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	IsUp bool   `json:"isUp"`
}

type GasGenerator struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Used      bool   `json:"used"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Data is the record collected by one wizard session. JSON names are the
// payload keys handed to the text generator.
type Data struct {
	GuardName       string `json:"guardName"`
	PatrolStartTime string `json:"patrolStartTime"`
	PatrolEndTime   string `json:"patrolEndTime"`

	Engines           []Engine `json:"engines"`
	FireEngineRemarks string   `json:"fireEngineRemarks"`

	TK13Level string `json:"tk13Level"`
	TK29Level string `json:"tk29Level"`

	HydrantPressure        string `json:"hydrantPressure"`
	JockeyPumpRuntime      string `json:"jockeyPumpRuntime"` // minutes between starts
	JockeyWarningConfirmed bool   `json:"jockeyWarningConfirmed"`

	AirLineLeak         bool   `json:"airLineLeak"`
	AirLineLeakLocation string `json:"airLineLeakLocation"`

	HydrantLineLeak         bool   `json:"hydrantLineLeak"`
	HydrantLineLeakLocation string `json:"hydrantLineLeakLocation"`

	ProductLineLeak         bool    `json:"productLineLeak"`
	LeakingProduct          Product `json:"leakingProduct"`
	ProductLineLeakLocation string  `json:"productLineLeakLocation"`

	Power33kvOn      bool           `json:"power33kvOn"`
	GasGenRunning    bool           `json:"gasGenRunning"`
	GasGenChangeover bool           `json:"gasGenChangeover"`
	GasGenerators    []GasGenerator `json:"gasGenerators"`

	ProductReceiptActive bool           `json:"productReceiptActive"`
	ProductReceiptTank   string         `json:"productReceiptTank"`
	ProductName          ReceiptProduct `json:"productName"`

	RakePlaced          bool            `json:"rakePlaced"`
	RakePlacementTime   string          `json:"rakePlacementTime"`
	RakeUnloadingStatus UnloadingStatus `json:"rakeUnloadingStatus"`
	RakeRemoved         bool            `json:"rakeRemoved"`
	RakeRemovalTime     string          `json:"rakeRemovalTime"`

	OfficeACLightingOn bool `json:"officeAcLightingOn"`

	AllCCTVRunning  bool   `json:"allCctvRunning"`
	CCTVDownCount   string `json:"cctvDownCount"`
	CCTVDownRemarks string `json:"cctvDownRemarks"`

	CBACSRunning           bool   `json:"cbacsRunning"`
	CBACSRemarks           string `json:"cbacsRemarks"`
	WatchTowerUsed         bool   `json:"watchTowerUsed"`
	WatchTowerObservation  string `json:"watchTowerObservation"`
	NightVisionUsed        bool   `json:"nightVisionUsed"`
	NightVisionObservation string `json:"nightVisionObservation"`

	// SystemAlerts is filled from DeriveAlerts at generation time only.
	SystemAlerts []string `json:"systemAlerts"`
}

// NewData returns the record a new session starts from.
func NewData() Data {
	engines := make([]Engine, EngineCount)
	for i := range engines {
		engines[i] = Engine{ID: i + 1, Name: fmt.Sprintf("Engine %d", i+1), IsUp: true}
	}
	gens := make([]GasGenerator, GeneratorCount)
	for i := range gens {
		gens[i] = GasGenerator{ID: i + 1, Name: fmt.Sprintf("Gas Gen %d", i+1)}
	}
	return Data{
		Engines:                engines,
		Power33kvOn:            true,
		GasGenerators:          gens,
		AllCCTVRunning:         true,
		CCTVDownCount:          "0",
		CBACSRunning:           true,
		WatchTowerUsed:         true,
		WatchTowerObservation:  "Normal",
		NightVisionUsed:        true,
		NightVisionObservation: "Nothing suspicious",
		SystemAlerts:           []string{},
	}
}

// Clone returns a copy that shares no slices with d.
func (d Data) Clone() Data {
	out := d
	out.Engines = append([]Engine(nil), d.Engines...)
	out.GasGenerators = append([]GasGenerator(nil), d.GasGenerators...)
	out.SystemAlerts = append([]string{}, d.SystemAlerts...)
	return out
}

// CheckShape reports list cardinality and enum violations.
func (d Data) CheckShape() error {
	if len(d.Engines) != EngineCount {
		return fmt.Errorf("%w: engines must have %d entries, got %d", ErrInvalidEdit, EngineCount, len(d.Engines))
	}
	if len(d.GasGenerators) != GeneratorCount {
		return fmt.Errorf("%w: gasGenerators must have %d entries, got %d", ErrInvalidEdit, GeneratorCount, len(d.GasGenerators))
	}
	if d.LeakingProduct != "" && !validLeakProduct(d.LeakingProduct) {
		return fmt.Errorf("%w: unknown leakingProduct %q", ErrInvalidEdit, d.LeakingProduct)
	}
	switch d.ProductName {
	case "", ReceiptHSD, ReceiptMS:
	default:
		return fmt.Errorf("%w: unknown productName %q", ErrInvalidEdit, d.ProductName)
	}
	switch d.RakeUnloadingStatus {
	case "", UnloadingNotStarted, UnloadingOngoing, UnloadingCompleted:
	default:
		return fmt.Errorf("%w: unknown rakeUnloadingStatus %q", ErrInvalidEdit, d.RakeUnloadingStatus)
	}
	return nil
}

func validLeakProduct(p Product) bool {
	for _, lp := range LeakProducts {
		if p == lp {
			return true
		}
	}
	return false
}

// Merge applies a JSON edit over d. List entries in the edit replace the
// stored entries whole. systemAlerts and jockeyWarningConfirmed are not user
// editable and keep their current values. On error d is left unchanged.
func (d *Data) Merge(patch []byte) error {
	next := d.Clone()
	if err := json.Unmarshal(patch, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEdit, err)
	}
	next.SystemAlerts = append([]string{}, d.SystemAlerts...)
	next.JockeyWarningConfirmed = d.JockeyWarningConfirmed
	if err := next.CheckShape(); err != nil {
		return err
	}
	*d = next
	return nil
}

// SetEngine records whether engine id is up.
func (d *Data) SetEngine(id int, up bool) error {
	for i := range d.Engines {
		if d.Engines[i].ID == id {
			d.Engines[i].IsUp = up
			return nil
		}
	}
	return fmt.Errorf("%w: engine %d", ErrUnknownEntry, id)
}

// GeneratorPatch carries the generator fields an edit touches; nil fields are
// left alone.
type GeneratorPatch struct {
	Used      *bool   `json:"used,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}

func (d *Data) UpdateGenerator(id int, p GeneratorPatch) error {
	for i := range d.GasGenerators {
		g := &d.GasGenerators[i]
		if g.ID != id {
			continue
		}
		if p.Used != nil {
			g.Used = *p.Used
		}
		if p.StartTime != nil {
			g.StartTime = *p.StartTime
		}
		if p.EndTime != nil {
			g.EndTime = *p.EndTime
		}
		return nil
	}
	return fmt.Errorf("%w: generator %d", ErrUnknownEntry, id)
}

// Generated is a report text produced for a session together with the alerts
// it was generated from.
type Generated struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Alerts      []string  `json:"alerts"`
	GeneratedAt time.Time `json:"generated_at"`
}
