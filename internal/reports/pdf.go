package reports

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

type pdfColor struct {
	r, g, b int
}

var headerBlue = pdfColor{r: 68, g: 114, b: 196}

// RiskReportPDF renders a stored risk report as a one-page PDF: the score
// band up top, the itemized deductions below.
func RiskReportPDF(report *ledger.RiskReport) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Company Risk Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Report %s - generated %s", report.ID, report.CreatedAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(60, 10, fmt.Sprintf("Score: %d / 100", report.RiskScore), "1", 0, "C", false, 0, "")
	pdf.SetFillColor(headerBlue.r, headerBlue.g, headerBlue.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 10, report.RiskLevel, "1", 1, "C", true, 0, "")
	pdf.Ln(6)

	var deductions []struct {
		Factor string `json:"factor"`
		Points int    `json:"points"`
		Detail string `json:"detail"`
	}
	if len(report.Factors) > 0 {
		if err := json.Unmarshal(report.Factors, &deductions); err != nil {
			return nil, fmt.Errorf("failed to decode report factors: %w", err)
		}
	}

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 8, "Factor", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Points", "1", 0, "C", true, 0, "")
	pdf.CellFormat(100, 8, "Detail", "1", 1, "L", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(242, 242, 242)
	for i, d := range deductions {
		fill := i%2 == 1
		pdf.CellFormat(60, 7, d.Factor, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("-%d", d.Points), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(100, 7, d.Detail, "1", 1, "L", fill, 0, "")
	}
	if len(deductions) == 0 {
		pdf.CellFormat(180, 7, "No deductions applied", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return &buf, nil
}
