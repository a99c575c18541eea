package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	replay "sitewatch-cloud/internal/replay/domain"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// BuildReplayXLSX renders a site replay sequence as a workbook: a summary
// sheet plus one roster row per (snapshot, device).
func BuildReplayXLSX(siteID, programID string, seq []replay.ReconstructedSnapshot) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	rosterSheet := "rosters"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(rosterSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Site Replay Report")
	_ = f.SetCellValue(summarySheet, "A3", "Site")
	_ = f.SetCellValue(summarySheet, "B3", siteID)
	_ = f.SetCellValue(summarySheet, "A4", "Program")
	_ = f.SetCellValue(summarySheet, "B4", programID)
	_ = f.SetCellValue(summarySheet, "A5", "Snapshots")
	_ = f.SetCellValue(summarySheet, "B5", len(seq))
	if len(seq) > 0 {
		_ = f.SetCellValue(summarySheet, "A6", "From")
		_ = f.SetCellValue(summarySheet, "B6", seq[0].WakeRoundStart)
		_ = f.SetCellValue(summarySheet, "A7", "To")
		_ = f.SetCellValue(summarySheet, "B7", seq[len(seq)-1].WakeRoundStart)
	}

	headers := []string{
		"Wake Round", "Device ID", "Code", "Name", "X", "Y", "Status",
		"Battery %", "Temperature", "Humidity", "Pressure", "Gas Resistance",
		"Score", "Score Velocity",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(rosterSheet, cell, header)
	}

	row := 2
	for _, snapshot := range seq {
		for _, device := range snapshot.Devices {
			values := []any{
				snapshot.WakeRoundStart,
				device.DeviceID,
				strValue(device.DeviceCode),
				strValue(device.DeviceName),
				floatValue(positionX(device)),
				floatValue(positionY(device)),
				strValue(device.Status),
				floatValue(device.BatteryHealthPercent),
				floatValue(device.Temperature),
				floatValue(device.Humidity),
				floatValue(device.Pressure),
				floatValue(device.GasResistance),
				floatValue(device.LatestScore),
				floatValue(device.ScoreVelocity),
			}
			for i, value := range values {
				cell, err := excelize.CoordinatesToCellName(i+1, row)
				if err != nil {
					return nil, err
				}
				_ = f.SetCellValue(rosterSheet, cell, value)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReplayPDF renders a condensed replay report: site header plus one
// line per (snapshot, device) with the headline readings.
func BuildReplayPDF(siteID, programID string, seq []replay.ReconstructedSnapshot) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Site Replay Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Site: %s", siteID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Program: %s", programID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Snapshots: %d", len(seq)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(48, 6, "Wake Round", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Battery", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Temp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Humidity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Pressure", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Score", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, snapshot := range seq {
		for _, device := range snapshot.Devices {
			pdf.CellFormat(48, 6, snapshot.WakeRoundStart, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, device.DeviceID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(22, 6, strValue(device.Status), "1", 0, "C", false, 0, "")
			pdf.CellFormat(22, 6, floatCell(device.BatteryHealthPercent), "1", 0, "R", false, 0, "")
			pdf.CellFormat(22, 6, floatCell(device.Temperature), "1", 0, "R", false, 0, "")
			pdf.CellFormat(22, 6, floatCell(device.Humidity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(22, 6, floatCell(device.Pressure), "1", 0, "R", false, 0, "")
			pdf.CellFormat(22, 6, floatCell(device.LatestScore), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func strValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func floatValue(value *float64) any {
	if value == nil {
		return ""
	}
	return *value
}

func floatCell(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', 2, 64)
}

func positionX(device snapshots.DeviceState) *float64 {
	if device.Position == nil {
		return nil
	}
	return device.Position.X
}

func positionY(device snapshots.DeviceState) *float64 {
	if device.Position == nil {
		return nil
	}
	return device.Position.Y
}
