package stats

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	trendSheet = "Monthly Trend"
	// XLSXContentType is the media type of generated workbooks.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var trendHeader = []string{
	"Month",
	"Inquiries",
	"Reserved",
	"Reserved %",
	"Visited",
	"Visited %",
	"Treatment Started",
	"Treatment %",
	"Revenue",
	"Inquiries Δ",
	"Reserved %p Δ",
	"Visited %p Δ",
	"Treatment %p Δ",
	"Revenue Δ",
}

// TrendWorkbook renders the trend table as an xlsx file.
func TrendWorkbook(trend Trend) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", trendSheet); err != nil {
		return nil, fmt.Errorf("stats: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stats: header style: %w", err)
	}

	for col, header := range trendHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("stats: header cell: %w", err)
		}
		if err := f.SetCellValue(trendSheet, cell, header); err != nil {
			return nil, fmt.Errorf("stats: set header %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(trendHeader), 1)
	if err := f.SetCellStyle(trendSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("stats: apply header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(trendHeader))
	if err := f.SetColWidth(trendSheet, "A", lastCol, 14); err != nil {
		return nil, fmt.Errorf("stats: column width: %w", err)
	}

	for i, m := range trend.Months {
		row := []any{
			m.Month,
			m.Funnel.Total,
			m.Funnel.ReservationConfirmed.Count,
			m.Funnel.ReservationConfirmed.Percent,
			m.Funnel.VisitConfirmed.Count,
			m.Funnel.VisitConfirmed.Percent,
			m.Funnel.TreatmentStarted.Count,
			m.Funnel.TreatmentStarted.Percent,
			m.Revenue,
			deltaCell(m.Deltas.Inquiries),
			deltaCell(m.Deltas.ReservationRate),
			deltaCell(m.Deltas.VisitRate),
			deltaCell(m.Deltas.TreatmentRate),
			deltaCell(m.Deltas.Revenue),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("stats: row cell: %w", err)
		}
		if err := f.SetSheetRow(trendSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("stats: write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(trendSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("stats: freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("stats: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deltaCell(d Delta) any {
	if d.New {
		return "new"
	}
	return d.Value
}
