package reports

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/practicanteticPX/docuprex/internal/signing"
)

type column struct {
	title string
	width float64
}

var columns = []column{
	{"#", 8},
	{"Participant", 38},
	{"Email", 46},
	{"Roles", 24},
	{"State", 20},
	{"Acted at", 34},
}

const (
	rowHeight   = 7
	reasonWidth = 170
)

// Render produces the status report pages for a snapshot and returns the PDF
// bytes together with the number of pages written.
func Render(s signing.Snapshot, generated time.Time) ([]byte, int, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Signature report", true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Signature report - page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Signature report"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr("Document: "+s.Title), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Status: "+statusLabel(s.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Generated: "+generated.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range columns {
			pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	for _, a := range s.Assignments {
		o, _ := s.Outcome(a.UserID)

		if pdf.GetY()+rowHeight*2 > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}

		cells := []string{
			fmt.Sprintf("%d", a.Position),
			a.Name,
			a.Email,
			strings.Join(a.RoleTags, ", "),
			string(o.State),
			actedAt(o),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, rowHeight, tr(fit(pdf, cells[i], c.width)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)

		if o.Reason != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.MultiCell(reasonWidth, 5, tr("Reason: "+o.Reason), "LRB", "L", false)
			pdf.SetFont("Helvetica", "", 9)
		}
	}

	if len(s.Assignments) == 0 {
		pdf.CellFormat(0, rowHeight, "No participants assigned.", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), pdf.PageCount(), nil
}

func statusLabel(s signing.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func actedAt(o signing.Outcome) string {
	if o.ActedAt == nil {
		return "-"
	}
	return o.ActedAt.UTC().Format("2006-01-02 15:04")
}

// fit truncates s with an ellipsis so it fits a cell of the given width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	const padding = 2
	if pdf.GetStringWidth(s) <= width-padding {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width-padding {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
