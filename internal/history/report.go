package history

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	reportFont       = "Helvetica"
	reportLineHeight = 5.5
)

// WritePDF renders one execution as a printable report: the summary fields
// followed by the LLM feedback wrapped to the page width.
func WritePDF(w io.Writer, e Execution) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle("ATS report "+e.ID, true)
	pdf.SetCreator("ats-checker", true)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; the translator keeps accented Spanish text readable.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(reportFont, "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  |  page %d/{nb}", e.ID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(reportFont, "B", 16)
	pdf.CellFormat(0, 10, "ATS report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	jdScore := "n/a"
	if e.JDScore != nil {
		jdScore = strconv.Itoa(*e.JDScore) + "%"
	}

	rows := [][2]string{
		{"Date", e.CreatedAt.UTC().Format(time.RFC1123)},
		{"Email", orDash(e.Email)},
		{"File", fmt.Sprintf("%s (%s, %d bytes)", e.Filename, e.Ext, e.Size)},
		{"Model", fmt.Sprintf("%s / %s", orDash(e.Vendor), orDash(e.Model))},
		{"ATS score", fmt.Sprintf("%d/100", e.ATSScore)},
		{"Job match", jdScore},
		{"Languages", fmt.Sprintf("resume %s, job %s", orDash(e.ResumeLang), orDash(e.JDLang))},
	}
	if e.Occupation != "" {
		rows = append(rows, [2]string{"Occupation", e.Occupation})
	}
	for _, row := range rows {
		pdf.SetFont(reportFont, "B", 10)
		pdf.CellFormat(32, reportLineHeight+1, tr(row[0]), "", 0, "L", false, 0, "")
		pdf.SetFont(reportFont, "", 10)
		pdf.MultiCell(0, reportLineHeight+1, tr(row[1]), "", "L", false)
	}

	if d := e.ATSDetails; d != nil {
		pdf.Ln(3)
		pdf.SetFont(reportFont, "", 9)
		pdf.MultiCell(0, reportLineHeight, tr(fmt.Sprintf(
			"%d words, %d page(s), %d image(s), %d table(s), %d of %d sections found.",
			d.Words, d.Pages, d.Images, d.Tables, d.SectionsFound, len(d.SectionsPresent)+len(d.SectionsMissing),
		)), "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont(reportFont, "B", 12)
	pdf.CellFormat(0, 8, "Feedback", "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	writeFeedback(pdf, tr, e.Feedback)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// writeFeedback prints markdown-ish feedback: headings in bold, bullets indented, the rest wrapped.
func writeFeedback(pdf *fpdf.Fpdf, tr func(string) string, feedback string) {
	if strings.TrimSpace(feedback) == "" {
		pdf.SetFont(reportFont, "I", 10)
		pdf.CellFormat(0, reportLineHeight, "No feedback recorded.", "", 1, "L", false, 0, "")
		return
	}

	left, _, _, _ := pdf.GetMargins()
	for _, line := range strings.Split(feedback, "\n") {
		line = strings.TrimRight(line, " \t\r")
		switch {
		case strings.TrimSpace(line) == "":
			pdf.Ln(reportLineHeight / 2)
		case strings.HasPrefix(line, "#"):
			pdf.Ln(1)
			pdf.SetFont(reportFont, "B", 11)
			pdf.MultiCell(0, reportLineHeight+0.5, tr(strings.TrimSpace(strings.TrimLeft(line, "#"))), "", "L", false)
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			pdf.SetFont(reportFont, "", 10)
			pdf.SetX(left + 4)
			pdf.MultiCell(0, reportLineHeight, tr("- "+stripEmphasis(line[2:])), "", "L", false)
		default:
			pdf.SetFont(reportFont, "", 10)
			pdf.MultiCell(0, reportLineHeight, tr(stripEmphasis(line)), "", "L", false)
		}
	}
}

func stripEmphasis(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
