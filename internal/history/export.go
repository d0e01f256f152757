package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "executions"

var exportHeader = []string{
	"created_at", "email", "filename", "ext", "size_bytes", "model_vendor", "model_name",
	"score", "ats_score", "resume_lang", "jd_lang",
}

func exportRow(e Execution) []string {
	score := ""
	if e.JDScore != nil {
		score = strconv.Itoa(*e.JDScore)
	}
	return []string{
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.Email,
		e.Filename,
		e.Ext,
		strconv.FormatInt(e.Size, 10),
		e.Vendor,
		e.Model,
		score,
		strconv.Itoa(e.ATSScore),
		e.ResumeLang,
		e.JDLang,
	}
}

// WriteCSV writes executions as CSV with a header row.
func WriteCSV(w io.Writer, executions []Execution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range executions {
		if err := cw.Write(exportRow(e)); err != nil {
			return fmt.Errorf("write row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes executions as a single-sheet workbook.
// Numeric columns are stored as numbers.
func WriteXLSX(w io.Writer, executions []Execution) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range executions {
		row := make([]any, 0, len(exportHeader))
		for col, value := range exportRow(e) {
			switch exportHeader[col] {
			case "size_bytes":
				row = append(row, e.Size)
			case "ats_score":
				row = append(row, e.ATSScore)
			case "score":
				if e.JDScore != nil {
					row = append(row, *e.JDScore)
				} else {
					row = append(row, nil)
				}
			default:
				row = append(row, value)
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %s: %w", e.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
