package share

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/patrol-report/internal/report"
)

const (
	reportSheet = "Report"
	dataSheet   = "Data"
)

// ExportXLSX builds a workbook with the generated text and alerts on one
// sheet and the recorded field values on another.
func ExportXLSX(data report.Data, g report.Generated) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(dataSheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	alertStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "991B1B"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FEF2F2"}, Pattern: 1},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	f.SetCellValue(reportSheet, "A1", "Safety Status Report")
	f.SetCellStyle(reportSheet, "A1", "A1", titleStyle)
	f.SetRowHeight(reportSheet, 1, 30)
	f.SetCellValue(reportSheet, "A2", fmt.Sprintf("Generated: %s", g.GeneratedAt.Format("2006-01-02 15:04:05")))
	f.SetCellValue(reportSheet, "A3", fmt.Sprintf("Reference: %s", g.ID))
	f.SetColWidth(reportSheet, "A", "A", 100)

	row := 5
	for _, a := range g.Alerts {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(reportSheet, cell, a)
		f.SetCellStyle(reportSheet, cell, cell, alertStyle)
		row++
	}
	if len(g.Alerts) > 0 {
		row++
	}
	textCell, _ := excelize.CoordinatesToCellName(1, row)
	f.SetCellValue(reportSheet, textCell, g.Text)
	f.SetCellStyle(reportSheet, textCell, textCell, wrapStyle)

	f.SetCellValue(dataSheet, "A1", "Field")
	f.SetCellValue(dataSheet, "B1", "Value")
	f.SetCellStyle(dataSheet, "A1", "B1", headerStyle)
	f.SetColWidth(dataSheet, "A", "A", 32)
	f.SetColWidth(dataSheet, "B", "B", 40)
	for i, kv := range dataRows(data) {
		r := i + 2
		f.SetCellValue(dataSheet, "A"+strconv.Itoa(r), kv[0])
		f.SetCellValue(dataSheet, "B"+strconv.Itoa(r), kv[1])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// dataRows flattens the record into label/value pairs in wizard order.
func dataRows(d report.Data) [][2]string {
	rows := [][2]string{
		{"Guard", d.GuardName},
		{"Patrol start", d.PatrolStartTime},
		{"Patrol end", d.PatrolEndTime},
	}
	for _, e := range d.Engines {
		rows = append(rows, [2]string{e.Name, upDown(e.IsUp)})
	}
	rows = append(rows,
		[2]string{"Fire engine remarks", d.FireEngineRemarks},
		[2]string{"Hydrant pressure (kg/cm²)", d.HydrantPressure},
		[2]string{"Jockey pump runtime (mins)", d.JockeyPumpRuntime},
		[2]string{"Jockey warning confirmed", yesNo(d.JockeyWarningConfirmed)},
		[2]string{"TK13 level (m)", d.TK13Level},
		[2]string{"TK29 level (m)", d.TK29Level},
		[2]string{"Air line leak", leak(d.AirLineLeak, d.AirLineLeakLocation)},
		[2]string{"Hydrant line leak", leak(d.HydrantLineLeak, d.HydrantLineLeakLocation)},
		[2]string{"Product line leak", productLeak(d)},
		[2]string{"33KV", onOff(d.Power33kvOn)},
		[2]string{"Gas generator running", yesNo(d.GasGenRunning)},
		[2]string{"Changeover", yesNo(d.GasGenChangeover)},
	)
	for _, g := range d.GasGenerators {
		v := "Not used"
		if g.Used {
			v = g.StartTime + " - " + g.EndTime
		}
		rows = append(rows, [2]string{g.Name, v})
	}
	receipt := "Stopped"
	if d.ProductReceiptActive {
		receipt = fmt.Sprintf("Going on: Tank %s (%s)", d.ProductReceiptTank, d.ProductName)
	}
	rows = append(rows,
		[2]string{"Product receipt", receipt},
		[2]string{"Rake placed", timed(d.RakePlaced, d.RakePlacementTime)},
		[2]string{"Rake unloading", string(d.RakeUnloadingStatus)},
		[2]string{"Rake removed", timed(d.RakeRemoved, d.RakeRemovalTime)},
		[2]string{"Office AC & lighting", onOff(d.OfficeACLightingOn)},
		[2]string{"CCTV", cctv(d)},
		[2]string{"C-BACS", cbacs(d)},
		[2]string{"Watch tower", observation(d.WatchTowerUsed, d.WatchTowerObservation)},
		[2]string{"Night vision", observation(d.NightVisionUsed, d.NightVisionObservation)},
	)
	return rows
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func upDown(b bool) string {
	if b {
		return "Up"
	}
	return "Down"
}

func leak(on bool, loc string) string {
	if !on {
		return "No"
	}
	return "Yes, at " + loc
}

func productLeak(d report.Data) string {
	if !d.ProductLineLeak {
		return "No"
	}
	return fmt.Sprintf("Yes, %s at %s", d.LeakingProduct, d.ProductLineLeakLocation)
}

func timed(on bool, at string) string {
	if !on {
		return "No"
	}
	if at == "" {
		return "Yes"
	}
	return "Yes (" + at + ")"
}

func cctv(d report.Data) string {
	if d.AllCCTVRunning {
		return "All running"
	}
	return fmt.Sprintf("%s down (%s)", d.CCTVDownCount, d.CCTVDownRemarks)
}

func cbacs(d report.Data) string {
	if d.CBACSRunning {
		return "Running"
	}
	return fmt.Sprintf("Faulty (%s)", d.CBACSRemarks)
}

func observation(used bool, obs string) string {
	if !used {
		return "Not used"
	}
	return obs
}

// Filename names a download of g with the given extension.
func Filename(g report.Generated, ext string) string {
	stamp := g.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return "safety-report-" + stamp.Format("2006-01-02-1504") + "." + ext
}
