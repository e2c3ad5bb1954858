package reporting

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/turtacn/LegalLens/pkg/errors"
)

const (
	pdfFont       = "Helvetica"
	pdfBodySize   = 11
	pdfLineHeight = 5.5
	pdfMargin     = 25.4
)

// markdownToPDF lays out the Markdown subset the report templates and the
// reasoning providers emit: #/##/### headings, bullet lists, **bold** runs,
// pipe tables and --- rules (dropped). Other lines are paragraphs.
func markdownToPDF(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("LegalLens", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 10, pdf.UnicodeTranslatorFromDescriptor("")(title), "", 0, "L", false, 0, "")
		pdf.SetX(pdfMargin)
		pdf.CellFormat(0, 10, "Page "+strconv.Itoa(pdf.PageNo())+" of {nb}", "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	var table []string
	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") && len(line) > 1 {
			table = append(table, line)
			continue
		}
		if len(table) > 0 {
			w.table(table)
			table = nil
		}
		switch {
		case line == "":
		case strings.Trim(line, "-_") == "":
		case strings.HasPrefix(line, "# "):
			w.heading(line[2:], 16, 6)
		case strings.HasPrefix(line, "## "):
			w.heading(line[3:], 13, 4)
		case strings.HasPrefix(line, "### "):
			w.heading(line[4:], 11.5, 2)
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			w.bullet(line[2:])
		default:
			w.paragraph(line)
		}
	}
	if len(table) > 0 {
		w.table(table)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "failed to render PDF")
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) heading(text string, size, space float64) {
	w.pdf.Ln(space)
	w.pdf.SetFont(pdfFont, "B", size)
	w.pdf.MultiCell(0, size*0.5, w.tr(strings.ReplaceAll(text, "**", "")), "", "L", false)
	w.pdf.Ln(space / 2)
}

func (w *pdfWriter) paragraph(text string) {
	w.rich(text)
	w.pdf.Ln(pdfLineHeight + 1.5)
}

func (w *pdfWriter) bullet(text string) {
	left, top, right, _ := w.pdf.GetMargins()
	w.pdf.SetFont(pdfFont, "", pdfBodySize)
	w.pdf.CellFormat(5, pdfLineHeight, w.tr("•"), "", 0, "L", false, 0, "")
	w.pdf.SetLeftMargin(left + 5)
	w.rich(text)
	w.pdf.SetMargins(left, top, right)
	w.pdf.Ln(pdfLineHeight)
}

// rich writes text, switching to bold between ** markers.
func (w *pdfWriter) rich(text string) {
	bold := false
	for _, seg := range strings.Split(text, "**") {
		style := ""
		if bold {
			style = "B"
		}
		w.pdf.SetFont(pdfFont, style, pdfBodySize)
		if seg != "" {
			w.pdf.Write(pdfLineHeight, w.tr(seg))
		}
		bold = !bold
	}
}

// table draws pipe-table rows with equal column widths and a shaded header.
func (w *pdfWriter) table(rows []string) {
	var cells [][]string
	for _, r := range rows {
		parts := strings.Split(strings.Trim(r, "|"), "|")
		row := make([]string, 0, len(parts))
		for _, p := range parts {
			row = append(row, strings.TrimSpace(p))
		}
		if len(row) > 0 && strings.Trim(row[0], "-: ") == "" {
			continue
		}
		cells = append(cells, row)
	}
	if len(cells) == 0 {
		return
	}

	pageW, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	cols := len(cells[0])
	colW := (pageW - left - right) / float64(cols)

	for i, row := range cells {
		style := ""
		if i == 0 {
			style = "B"
			w.pdf.SetFillColor(211, 211, 211)
		}
		w.pdf.SetFont(pdfFont, style, 10)

		lines := 1
		for c := 0; c < cols && c < len(row); c++ {
			if n := len(w.pdf.SplitText(w.tr(strings.ReplaceAll(row[c], "**", "")), colW-2)); n > lines {
				lines = n
			}
		}
		h := float64(lines) * pdfLineHeight
		if w.pdf.GetY()+h > 297-pdfMargin {
			w.pdf.AddPage()
		}

		x, y := w.pdf.GetXY()
		for c := 0; c < cols; c++ {
			text := ""
			if c < len(row) {
				text = strings.ReplaceAll(row[c], "**", "")
			}
			cx := x + float64(c)*colW
			if i == 0 {
				w.pdf.Rect(cx, y, colW, h, "FD")
			} else {
				w.pdf.Rect(cx, y, colW, h, "D")
			}
			w.pdf.SetXY(cx+1, y)
			w.pdf.MultiCell(colW-2, pdfLineHeight, w.tr(text), "", "L", false)
		}
		w.pdf.SetXY(x, y+h)
	}
	w.pdf.Ln(3)
}
